// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusTick StatusKind = iota
	StatusStart
	StatusPause
	StatusUnpause
	StatusFinish
	StatusFail
	StatusCancel
)

// StatusEvent is emitted at the end of every tick and on task lifecycle changes
type StatusEvent struct {
	Frame  uint64
	Kind   StatusKind
	TaskID TaskID // zero for StatusTick
	Err    error  // set for StatusFail and StatusCancel
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusTick:
		return "Tick"
	case StatusStart:
		return "Start"
	case StatusPause:
		return "Pause"
	case StatusUnpause:
		return "Unpause"
	case StatusFinish:
		return "Finish"
	case StatusFail:
		return "Fail"
	case StatusCancel:
		return "Cancel"
	default:
		return "Unknown"
	}
}
