// internal/sched/wait.go

package sched

// WaitCondition is the state a suspended task waits on. The scheduler polls
// it once per tick with the tick's delta time; returning true makes the task
// resume. A condition is single use and is dropped once it has reported ready.
type WaitCondition interface {
	Update(dt float64) bool
}

// Timer is a WaitCondition measured in tick time or tick count. The tick in
// which a task suspends on a Timer counts toward the wait: the scheduler
// charges it with that tick's dt and resumes on a later tick.
type Timer interface {
	WaitCondition
	charge(dt float64) bool
}

// milliseconds counts down tick time.
type milliseconds struct {
	remaining float64
}

// Milliseconds returns a condition that becomes ready once the accumulated
// delta time reaches ms. Overshoot is not carried over.
func Milliseconds(ms float64) WaitCondition {
	return &milliseconds{remaining: ms}
}

func (m *milliseconds) Update(dt float64) bool {
	m.remaining -= dt
	return m.remaining <= 0
}

func (m *milliseconds) charge(dt float64) bool { return m.Update(dt) }

// frames counts down ticks, ignoring their duration.
type frames struct {
	remaining int
}

// Frames returns a condition that becomes ready after n polls. n <= 0 is
// ready on the first poll.
func Frames(n int) WaitCondition {
	return &frames{remaining: n}
}

func (f *frames) Update(float64) bool {
	f.remaining--
	return f.remaining <= 0
}

func (f *frames) charge(dt float64) bool { return f.Update(dt) }

// until re-evaluates a predicate each tick.
type until struct {
	pred func() bool
}

// Until returns a condition that is ready whenever pred reports true.
func Until(pred func() bool) WaitCondition {
	return &until{pred: pred}
}

func (u *until) Update(float64) bool {
	return u.pred()
}

// ForTask returns a condition that is ready once the task registered under
// id is done. The task is resolved through s on every poll, so a waiter never
// holds the other task itself. An id that is not (or no longer) registered
// counts as done.
func ForTask(s *Scheduler, id TaskID) WaitCondition {
	return Until(func() bool { return s.finished(id) })
}

// TimeoutCondition is ready when its predicate holds or its time runs out,
// whichever comes first.
type TimeoutCondition struct {
	remaining float64
	pred      func() bool
	satisfied bool
}

// Timeout returns a condition racing pred against a millisecond deadline.
func Timeout(ms float64, pred func() bool) *TimeoutCondition {
	return &TimeoutCondition{remaining: ms, pred: pred}
}

func (c *TimeoutCondition) Update(dt float64) bool {
	if c.pred() {
		c.satisfied = true
		return true
	}
	c.remaining -= dt
	return c.remaining <= 0
}

// charge runs only the deadline; the predicate was checked on entry.
func (c *TimeoutCondition) charge(dt float64) bool {
	c.remaining -= dt
	return c.remaining <= 0
}

// Satisfied reports whether the predicate, rather than the deadline, made the
// condition ready.
func (c *TimeoutCondition) Satisfied() bool { return c.satisfied }
