package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMilliseconds(t *testing.T) {
	c := Milliseconds(100)
	require.False(t, c.Update(60))
	require.True(t, c.Update(60))

	require.True(t, Milliseconds(0).Update(0), "zero duration is ready on first poll")
	require.True(t, Milliseconds(-5).Update(0))
}

func TestFramesIgnoresDelta(t *testing.T) {
	c := Frames(3)
	require.False(t, c.Update(1000))
	require.False(t, c.Update(0))
	require.True(t, c.Update(0))

	require.True(t, Frames(0).Update(0))
	require.True(t, Frames(-1).Update(0))
}

func TestUntilReevaluates(t *testing.T) {
	calls := 0
	flag := false
	c := Until(func() bool { calls++; return flag })

	require.False(t, c.Update(16))
	flag = true
	require.True(t, c.Update(16))
	require.Equal(t, 2, calls)
}

func TestTimersAreMarked(t *testing.T) {
	_, ok := Milliseconds(1).(Timer)
	require.True(t, ok)
	_, ok = Frames(1).(Timer)
	require.True(t, ok)
	_, ok = Until(func() bool { return false }).(Timer)
	require.False(t, ok)

	var c WaitCondition = Timeout(1, func() bool { return false })
	_, ok = c.(Timer)
	require.True(t, ok, "a timeout's deadline is tick time too")
}

func TestTimeoutChargeSkipsPredicate(t *testing.T) {
	calls := 0
	c := Timeout(50, func() bool { calls++; return true })
	require.False(t, c.charge(30))
	require.True(t, c.charge(30))
	require.Zero(t, calls)
	require.False(t, c.Satisfied())
}

func TestTimeout(t *testing.T) {
	flag := false
	c := Timeout(50, func() bool { return flag })
	require.False(t, c.Update(30))
	require.True(t, c.Update(30))
	require.False(t, c.Satisfied())

	c = Timeout(50, func() bool { return flag })
	require.False(t, c.Update(30))
	flag = true
	require.True(t, c.Update(0))
	require.True(t, c.Satisfied())
}

func TestForTaskUnknownIDIsReady(t *testing.T) {
	s := newTestScheduler(Config{})
	require.True(t, ForTask(s, 42).Update(0))
}
