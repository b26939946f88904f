package sched

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
)

// TaskID uniquely identifies a task in the scheduler.
type TaskID uint64

// TaskFunc is the body of a task. It runs in slices between suspension
// points; each call to one of co's Wait methods hands control back to the
// scheduler until the awaited condition is ready.
//
// A stopped task is torn down by a panic raised from its pending await. A
// body that recovers must re-panic any value it does not own.
type TaskFunc func(co *Co) error

// ErrCancelled is reported by Task.Err for a task that was cancelled before
// it ran to completion.
var ErrCancelled = errors.New("sched: task cancelled")

// ErrUnwindSwallowed is reported by Task.Err when a stopped body recovered
// the teardown panic and returned normally.
var ErrUnwindSwallowed = errors.New("sched: task body recovered its teardown")

// PanicError records a panic recovered from a task body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("sched: task panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// unwind is the panic value used to tear down a suspended body.
type unwind struct{}

// Task is one suspendable computation. It does not run until its first
// Resume and is owned by the Scheduler once started.
type Task struct {
	id    TaskID
	fn    TaskFunc
	sched *Scheduler
	fatal bool // re-panic instead of recording a PanicError

	next func() (WaitCondition, bool)
	stop func()
	cond WaitCondition

	started   bool
	running   bool
	completed bool
	cancelled bool
	panicked  bool
	deferStop bool // release requested while running
	unwinding bool // a pending await was refused by release
	err       error
}

// NewTask wraps fn in a task that has not started yet.
func NewTask(fn TaskFunc) *Task {
	return &Task{fn: fn}
}

// ID returns the id assigned by Scheduler.Start, or 0 before that.
func (t *Task) ID() TaskID { return t.id }

// Done reports whether the body returned, failed, or the task was cancelled.
func (t *Task) Done() bool { return t.completed || t.cancelled }

// Cancel marks the task as done without running any more of its body.
// A Resume already in progress is not interrupted.
func (t *Task) Cancel() { t.cancelled = true }

func (t *Task) Cancelled() bool { return t.cancelled }

// Suspended reports whether the body has started and is parked at an await.
func (t *Task) Suspended() bool { return t.started && !t.running && !t.Done() }

// Condition returns the condition the task is waiting on, if any.
func (t *Task) Condition() WaitCondition { return t.cond }

// Err returns the error the body returned, a *PanicError if it panicked, or
// ErrCancelled if it was cancelled.
func (t *Task) Err() error {
	if t.err != nil {
		return t.err
	}
	if t.cancelled {
		return ErrCancelled
	}
	return nil
}

// Resume runs the body until its next suspension point or until it returns.
// It does nothing on a task that is done or already running.
func (t *Task) Resume() {
	if t.Done() || t.running {
		return
	}
	if t.next == nil {
		t.next, t.stop = iter.Pull(t.seq())
	}
	t.started = true
	t.cond = nil

	t.running = true
	cond, ok := t.next()
	t.running = false

	if ok {
		t.cond = cond
	} else {
		t.completed = true
	}
	if t.deferStop {
		t.release()
	}
	if t.panicked && t.fatal {
		panic(t.err)
	}
}

// release tears down the body. A suspended body unwinds through its deferred
// calls; the await it is parked on never returns.
func (t *Task) release() {
	if t.running {
		t.deferStop = true
		return
	}
	t.deferStop = false
	t.cond = nil
	if t.stop != nil {
		stop := t.stop
		t.next, t.stop = nil, nil
		t.running = true
		stop()
		t.running = false
	}
}

func (t *Task) seq() iter.Seq[WaitCondition] {
	return func(yield func(WaitCondition) bool) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if _, ok := r.(unwind); ok {
				return
			}
			t.panicked = true
			t.err = &PanicError{Value: r, Stack: debug.Stack()}
		}()
		err := t.fn(&Co{task: t, yield: yield})
		if t.unwinding {
			t.err = ErrUnwindSwallowed
			return
		}
		if err != nil {
			t.err = err
		}
	}
}

// Co is the handle a task body uses to suspend itself. It must not be used
// outside the body it was passed to.
type Co struct {
	task  *Task
	yield func(WaitCondition) bool
}

// Await suspends the body until cond reports ready. A nil cond suspends
// until the next tick.
//
// If the task is stopped while suspended, Await never returns: it panics
// with a value private to this package. Deferred calls run; a recover in the
// body must re-panic that value.
func (co *Co) Await(cond WaitCondition) {
	if !co.task.running {
		panic("sched: Co used outside its task body")
	}
	if !co.yield(cond) {
		if co.task.unwinding {
			// the first teardown panic was recovered by the body
			co.task.err = ErrUnwindSwallowed
		}
		co.task.unwinding = true
		panic(unwind{})
	}
}

// Yield suspends the body until the next tick.
func (co *Co) Yield() { co.Await(nil) }

// WaitForMilliseconds suspends until ms of tick time has passed, counting the
// current tick.
func (co *Co) WaitForMilliseconds(ms float64) { co.Await(Milliseconds(ms)) }

// WaitForFrames suspends for n ticks, counting the current tick. n <= 0
// resumes on the next tick.
func (co *Co) WaitForFrames(n int) { co.Await(Frames(n)) }

// WaitUntil suspends until pred reports true. It returns at once if pred
// already holds.
func (co *Co) WaitUntil(pred func() bool) {
	if pred() {
		return
	}
	co.Await(Until(pred))
}

// WaitForTask suspends until the task registered under id is done.
func (co *Co) WaitForTask(id TaskID) {
	if id == co.task.id {
		panic("sched: task cannot wait for itself")
	}
	s := co.task.sched
	if s.finished(id) {
		return
	}
	co.Await(ForTask(s, id))
}

// WaitUntilOrTimeout suspends until pred holds or ms has passed, counting
// the current tick toward ms as WaitForMilliseconds does. It reports whether
// pred was satisfied.
func (co *Co) WaitUntilOrTimeout(pred func() bool, ms float64) bool {
	if pred() {
		return true
	}
	c := Timeout(ms, pred)
	co.Await(c)
	return c.Satisfied()
}

// ID returns the id of the running task.
func (co *Co) ID() TaskID { return co.task.id }

// Scheduler returns the scheduler the task is registered with.
func (co *Co) Scheduler() *Scheduler { return co.task.sched }

// Frame returns the number of ticks the scheduler has run.
func (co *Co) Frame() uint64 { return co.task.sched.Frame() }

// Logger returns a logger tagged with the task id.
func (co *Co) Logger() *slog.Logger {
	return co.task.sched.Logger().With("task_id", co.task.id)
}
