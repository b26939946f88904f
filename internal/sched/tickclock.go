// internal/sched/tickclock.go

package sched

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
)

// TickClock emits tick timestamps and counts them atomically.
type TickClock struct {
	Ch    chan time.Time
	count atomic.Int64
	stop  chan struct{}
	once  sync.Once
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan time.Time, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer close(c.Ch)
		for {
			select {
			case now := <-ticker.C:
				select {
				case c.Ch <- now:
					c.count.Add(1)
				case <-c.stop:
					return
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks. It is safe to call twice.
func (c *TickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Count returns the number of ticks delivered so far.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Driver is the host loop: it feeds wall-clock ticks into a Scheduler from a
// single goroutine.
type Driver struct {
	sched        *Scheduler
	interval     time.Duration
	maxTicks     uint64 // 0 = unbounded
	stopWhenIdle bool
	ticks        uint64
}

// NewDriver builds a driver for s using the tick settings in cfg. tick_ms must
// be positive and fit in a time.Duration; max_ticks must not be negative.
func NewDriver(s *Scheduler, cfg Config) (*Driver, error) {
	interval, err := tickInterval(cfg.TickMS)
	if err != nil {
		return nil, err
	}
	maxTicks, err := safecast.Conv[uint64](cfg.MaxTicks)
	if err != nil {
		return nil, fmt.Errorf("invalid max_ticks %d: %w", cfg.MaxTicks, err)
	}
	return &Driver{
		sched:        s,
		interval:     interval,
		maxTicks:     maxTicks,
		stopWhenIdle: cfg.StopWhenIdle,
	}, nil
}

// tickInterval converts tick_ms to a Duration, rejecting values whose
// nanosecond count would overflow int64.
func tickInterval(tickMS int) (time.Duration, error) {
	if tickMS <= 0 {
		return 0, fmt.Errorf("invalid tick_ms %d: must be positive", tickMS)
	}
	maxMs := uint64(math.MaxInt64 / int64(time.Millisecond))
	if uint64(tickMS) > maxMs {
		return 0, fmt.Errorf("invalid tick_ms %d: exceeds %d", tickMS, maxMs)
	}
	ms, err := safecast.Conv[int64](uint64(tickMS))
	if err != nil {
		return 0, fmt.Errorf("invalid tick_ms %d: %w", tickMS, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Run ticks the scheduler until ctx is done, the tick limit is reached, or
// (with stop_when_idle) no tasks remain. Each tick passes the wall-clock time
// since the previous one, in milliseconds.
func (d *Driver) Run(ctx context.Context) error {
	clock := NewTickClock(1)
	clock.Start(d.interval)
	defer clock.Stop()

	log := d.sched.Logger()
	log.Info("driver started", "interval", d.interval, "max_ticks", d.maxTicks)

	last := time.Now()
	for {
		if d.stopWhenIdle && d.sched.Empty() {
			log.Info("driver stopping (idle)", "ticks", d.ticks)
			return nil
		}
		select {
		case <-ctx.Done():
			log.Info("driver stopping (context cancelled)", "ticks", d.ticks)
			return ctx.Err()
		case now, ok := <-clock.Ch:
			if !ok {
				return nil
			}
			dt := float64(now.Sub(last)) / float64(time.Millisecond)
			last = now
			d.sched.Update(dt)
			d.ticks++
			if d.maxTicks > 0 && d.ticks >= d.maxTicks {
				log.Info("driver stopping (tick limit)", "ticks", d.ticks)
				return nil
			}
		}
	}
}

// Step runs n ticks of dt milliseconds each without a clock.
func (d *Driver) Step(n int, dt float64) {
	for range n {
		d.sched.Update(dt)
		d.ticks++
	}
}

// Ticks returns how many ticks the driver has run.
func (d *Driver) Ticks() uint64 { return d.ticks }
