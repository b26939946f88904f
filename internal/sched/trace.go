// internal/sched/trace.go

package sched

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// CSVTrace records scheduler events as CSV rows. Tick events are skipped to
// keep the output short.
type CSVTrace struct {
	w      *csv.Writer
	closer io.Closer
	now    func() time.Time
	err    error
}

// NewCSVTrace creates (or truncates) the file at path and writes the header.
func NewCSVTrace(path string) (*CSVTrace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	tr := NewCSVTraceWriter(f)
	tr.closer = f
	if tr.err != nil {
		f.Close()
		return nil, tr.err
	}
	return tr, nil
}

// NewCSVTraceWriter writes the trace to w.
func NewCSVTraceWriter(w io.Writer) *CSVTrace {
	tr := &CSVTrace{w: csv.NewWriter(w), now: time.Now}
	tr.write([]string{"timestamp", "frame", "event", "task_id", "error"})
	return tr
}

// Observe writes ev. It matches the signature expected by
// Scheduler.SetObserver.
func (tr *CSVTrace) Observe(ev StatusEvent) {
	if ev.Kind == StatusTick {
		return
	}
	errText := ""
	if ev.Err != nil {
		errText = ev.Err.Error()
	}
	tr.write([]string{
		tr.now().Format(time.RFC3339Nano),
		strconv.FormatUint(ev.Frame, 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		errText,
	})
}

// Err returns the first write error, if any.
func (tr *CSVTrace) Err() error { return tr.err }

// Close flushes the trace and closes the underlying file.
func (tr *CSVTrace) Close() error {
	tr.w.Flush()
	if err := tr.w.Error(); err != nil && tr.err == nil {
		tr.err = err
	}
	if tr.closer != nil {
		if err := tr.closer.Close(); err != nil && tr.err == nil {
			tr.err = err
		}
	}
	return tr.err
}

func (tr *CSVTrace) write(rec []string) {
	if tr.err != nil {
		return
	}
	if err := tr.w.Write(rec); err != nil {
		tr.err = fmt.Errorf("write trace: %w", err)
		return
	}
	tr.w.Flush()
	if err := tr.w.Error(); err != nil {
		tr.err = fmt.Errorf("write trace: %w", err)
	}
}
