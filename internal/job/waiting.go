package job

import (
	"log/slog"

	"ticktask/internal/sched"
)

// Sleep returns a body that waits ms of tick time and returns.
func Sleep(ms float64) sched.TaskFunc {
	return func(co *sched.Co) error {
		co.WaitForMilliseconds(ms)
		return nil
	}
}

// Countdown calls onTick with frames-1 down to 0, one call per tick.
func Countdown(frames int, onTick func(left int)) sched.TaskFunc {
	return func(co *sched.Co) error {
		for left := frames - 1; left >= 0; left-- {
			onTick(left)
			if left > 0 {
				co.WaitForFrames(1)
			}
		}
		return nil
	}
}

// Blink toggles a light every period milliseconds, times times, logging each
// change.
func Blink(period float64, times int, logger *slog.Logger) sched.TaskFunc {
	return func(co *sched.Co) error {
		on := false
		for i := 0; i < times; i++ {
			co.WaitForMilliseconds(period)
			on = !on
			logger.Info("blink", "task_id", co.ID(), "frame", co.Frame(), "on", on)
		}
		return nil
	}
}

// Await returns a body that waits until pred holds.
func Await(pred func() bool) sched.TaskFunc {
	return func(co *sched.Co) error {
		co.WaitUntil(pred)
		return nil
	}
}

// Join returns a body that waits for every task in ids to finish.
func Join(ids ...sched.TaskID) sched.TaskFunc {
	return func(co *sched.Co) error {
		for _, id := range ids {
			co.WaitForTask(id)
		}
		return nil
	}
}

// Sequence runs bodies one after another inside a single task and stops at
// the first error.
func Sequence(bodies ...sched.TaskFunc) sched.TaskFunc {
	return func(co *sched.Co) error {
		for _, body := range bodies {
			if err := body(co); err != nil {
				return err
			}
		}
		return nil
	}
}
