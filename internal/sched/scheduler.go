// internal/sched/scheduler.go

package sched

import (
	"errors"
	"log/slog"
	"math"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// Scheduler owns a set of tasks and advances them once per Update call.
// It is not safe for concurrent use; every method must be called from the
// goroutine driving the host loop (or from a task body it is running).
type Scheduler struct {
	logger   *slog.Logger
	policy   PanicPolicy
	tasks    *redblacktree.Tree // TaskID -> *entry
	lastID   TaskID
	frame    uint64
	retiring map[TaskID]struct{} // finished during the current tick
	updating bool
	observer func(StatusEvent)
}

// entry is one registered task and its scheduling flags.
type entry struct {
	task   *Task
	paused bool
	ready  bool // the pending Timer was already satisfied when charged
}

// New creates an empty Scheduler. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:   logger.With("component", "scheduler"),
		policy:   cfg.policy(logger),
		tasks:    redblacktree.NewWith(cmp),
		retiring: make(map[TaskID]struct{}),
	}
}

// SetObserver installs fn to receive every StatusEvent. Passing nil removes it.
func (s *Scheduler) SetObserver(fn func(StatusEvent)) { s.observer = fn }

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *slog.Logger {
	if s == nil {
		return slog.Default()
	}
	return s.logger
}

// Frame returns the number of Update calls made so far.
func (s *Scheduler) Frame() uint64 {
	if s == nil {
		return 0
	}
	return s.frame
}

// Start registers a task that has not run yet and returns its id. None of
// the task's body runs until the next Update.
func (s *Scheduler) Start(t *Task) TaskID {
	if t == nil {
		panic("sched: Start called with nil task")
	}
	if t.sched != nil || t.started {
		panic("sched: task already started")
	}
	if s.lastID == math.MaxUint64 {
		panic("sched: task id space exhausted")
	}
	s.lastID++
	id := s.lastID

	t.id = id
	t.sched = s
	t.fatal = s.policy == PanicFatal
	s.tasks.Put(id, &entry{task: t})

	s.logger.Debug("task started", "task_id", id, "frame", s.frame)
	s.emit(StatusEvent{Kind: StatusStart, TaskID: id})
	return id
}

// Stop cancels the task and removes it at once. It reports whether id was
// registered.
func (s *Scheduler) Stop(id TaskID) bool {
	e := s.lookup(id)
	if e == nil {
		return false
	}
	e.task.Cancel()
	s.remove(id, e)
	return true
}

// StopAll stops every registered task and returns how many there were.
func (s *Scheduler) StopAll() int {
	n := 0
	for _, k := range s.tasks.Keys() {
		if s.Stop(k.(TaskID)) {
			n++
		}
	}
	return n
}

// Pause keeps the task from being polled or resumed until Resume is called.
// Unknown ids are ignored.
func (s *Scheduler) Pause(id TaskID) {
	if e := s.lookup(id); e != nil && !e.paused {
		e.paused = true
		s.emit(StatusEvent{Kind: StatusPause, TaskID: id})
	}
}

// Resume clears the paused flag set by Pause. Unknown ids are ignored.
func (s *Scheduler) Resume(id TaskID) {
	if e := s.lookup(id); e != nil && e.paused {
		e.paused = false
		s.emit(StatusEvent{Kind: StatusUnpause, TaskID: id})
	}
}

// Paused reports whether id is registered and paused.
func (s *Scheduler) Paused(id TaskID) bool {
	e := s.lookup(id)
	return e != nil && e.paused
}

// GetTask returns the task registered under id, or nil. The task is still
// owned by the scheduler.
func (s *Scheduler) GetTask(id TaskID) *Task {
	if e := s.lookup(id); e != nil {
		return e.task
	}
	return nil
}

// Empty reports whether no tasks are registered.
func (s *Scheduler) Empty() bool { return s.tasks.Empty() }

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int { return s.tasks.Size() }

// Update runs one tick. Every task registered when the tick begins is visited
// once: finished tasks are removed, paused tasks are skipped, and the rest
// are resumed if they have no pending condition or their condition reports
// ready for dt. Tasks started during the tick are first visited on the next.
func (s *Scheduler) Update(dt float64) {
	if s.updating {
		s.logger.Warn("nested Update ignored", "frame", s.frame)
		return
	}
	s.updating = true
	defer func() { s.updating = false }()

	s.frame++
	clear(s.retiring)

	for _, k := range s.tasks.Keys() {
		id := k.(TaskID)
		e := s.lookup(id)
		if e == nil {
			// stopped earlier in this tick
			continue
		}
		t := e.task

		if t.Done() {
			s.remove(id, e)
			continue
		}
		if e.paused {
			continue
		}
		if t.cond != nil {
			if !e.ready && !t.cond.Update(dt) {
				continue
			}
			e.ready = false
		}

		t.Resume()

		if t.Done() {
			s.retiring[id] = struct{}{}
			s.remove(id, e)
			continue
		}
		// the suspension tick counts toward a Timer
		if tm, ok := t.cond.(Timer); ok && !e.paused {
			e.ready = tm.charge(dt)
		}
	}

	s.emit(StatusEvent{Kind: StatusTick})
}

// finished reports whether a task waiting on id may proceed. Unregistered ids
// count as finished; a task that finished during the current tick is
// reported from the next tick on.
func (s *Scheduler) finished(id TaskID) bool {
	if s == nil {
		return true
	}
	if _, ok := s.retiring[id]; ok {
		return false
	}
	e := s.lookup(id)
	return e == nil || e.task.Done()
}

func (s *Scheduler) lookup(id TaskID) *entry {
	v, ok := s.tasks.Get(id)
	if !ok {
		return nil
	}
	return v.(*entry)
}

// remove drops the entry and tears down its task.
func (s *Scheduler) remove(id TaskID, e *entry) {
	if s.lookup(id) != e {
		return
	}
	s.tasks.Remove(id)
	t := e.task
	t.release()

	ev := StatusEvent{TaskID: id, Err: t.Err()}
	switch {
	case t.cancelled:
		ev.Kind = StatusCancel
		if errors.Is(ev.Err, ErrUnwindSwallowed) {
			s.logger.Warn("task body recovered its teardown", "task_id", id, "frame", s.frame)
		} else {
			s.logger.Debug("task cancelled", "task_id", id, "frame", s.frame)
		}
	case ev.Err != nil:
		ev.Kind = StatusFail
		attrs := []any{"task_id", id, "frame", s.frame, "error", ev.Err}
		var pe *PanicError
		if errors.As(ev.Err, &pe) {
			attrs = append(attrs, "stack", string(pe.Stack))
		}
		s.logger.Error("task failed", attrs...)
	default:
		ev.Kind = StatusFinish
		s.logger.Debug("task finished", "task_id", id, "frame", s.frame)
	}
	s.emit(ev)
}

func (s *Scheduler) emit(ev StatusEvent) {
	if s.observer == nil {
		return
	}
	ev.Frame = s.frame
	s.observer(ev)
}

// cmp orders the task tree by id.
func cmp(a, b any) int {
	ka, kb := a.(TaskID), b.(TaskID)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}

// Spawn wraps fn in a new task and starts it on s.
func Spawn(s *Scheduler, fn TaskFunc) TaskID {
	return s.Start(NewTask(fn))
}

// SpawnWith builds a task body from factory and arg and starts it on s.
func SpawnWith[A any](s *Scheduler, factory func(A) TaskFunc, arg A) TaskID {
	return s.Start(NewTask(factory(arg)))
}
