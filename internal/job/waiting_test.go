package job

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ticktask/internal/sched"
)

func newScheduler() *sched.Scheduler {
	return sched.New(sched.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSleep(t *testing.T) {
	s := newScheduler()
	id := sched.Spawn(s, Sleep(50))
	s.Update(20)
	s.Update(20)
	require.NotNil(t, s.GetTask(id))
	s.Update(20)
	require.True(t, s.Empty())
}

func TestCountdownOnePerTick(t *testing.T) {
	s := newScheduler()
	var seen []int
	sched.Spawn(s, Countdown(3, func(left int) { seen = append(seen, left) }))

	s.Update(16)
	require.Equal(t, []int{2}, seen)
	s.Update(16)
	s.Update(16)
	require.Equal(t, []int{2, 1, 0}, seen)
	require.True(t, s.Empty())
}

func TestBlinkLogsEachToggle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := newScheduler()
	sched.Spawn(s, Blink(10, 3, logger))

	for i := 0; i < 5 && !s.Empty(); i++ {
		s.Update(10)
	}
	require.True(t, s.Empty())
	require.Equal(t, 3, strings.Count(buf.String(), "msg=blink"))
	require.Contains(t, buf.String(), "on=true")
	require.Contains(t, buf.String(), "on=false")
}

func TestAwaitAndJoin(t *testing.T) {
	s := newScheduler()
	open := false
	gate := sched.Spawn(s, Await(func() bool { return open }))
	nap := sched.Spawn(s, Sleep(16))
	joined := false
	sched.Spawn(s, Sequence(Join(gate, nap), func(*sched.Co) error {
		joined = true
		return nil
	}))

	for i := 0; i < 4; i++ {
		s.Update(16)
	}
	require.False(t, joined)
	require.Equal(t, 2, s.Len())

	open = true
	s.Update(16) // gate finishes
	s.Update(16) // joiner sees it
	require.True(t, joined)
	require.True(t, s.Empty())
}

func TestSequenceStopsAtError(t *testing.T) {
	s := newScheduler()
	boom := errors.New("boom")
	after := false
	task := sched.NewTask(Sequence(
		Sleep(1),
		func(*sched.Co) error { return boom },
		func(*sched.Co) error { after = true; return nil },
	))
	s.Start(task)
	s.Update(16)
	s.Update(16)

	require.True(t, s.Empty())
	require.ErrorIs(t, task.Err(), boom)
	require.False(t, after)
}
