package rtos

import "strconv"

// Priority is a scheduling priority level. Higher values run first.
// PriorityError and PriorityNone are reserved sentinels that are never
// valid on a live thread; PriorityIdleBelow and PriorityIdle are reserved
// for the scheduler's own idle/reaper thread.
type Priority int32

const (
	// PriorityError is returned by a priority getter that fails (the
	// `priority::error` sentinel of the original).
	PriorityError Priority = -3
	// PriorityNone marks "no priority assigned"; never valid on a live thread.
	PriorityNone Priority = -2
	// PriorityIdleBelow is one level below PriorityIdle, used only when
	// Config.IdleBelowIdle is set, so the idle thread can never tie with a
	// misconfigured user thread at priority zero.
	PriorityIdleBelow Priority = -1
	// PriorityIdle is reserved for the scheduler's idle/reaper thread.
	PriorityIdle Priority = 0

	PriorityLowest      Priority = 1
	PriorityBelowNormal Priority = 32
	PriorityNormal      Priority = 64
	PriorityAboveNormal Priority = 96
	PriorityHighest     Priority = 127
)

// Valid reports whether p is usable as a live thread's priority.
func (p Priority) Valid() bool {
	return p >= PriorityLowest && p <= PriorityHighest
}

func (p Priority) String() string {
	switch p {
	case PriorityError:
		return "error"
	case PriorityNone:
		return "none"
	case PriorityIdleBelow:
		return "idle-below"
	case PriorityIdle:
		return "idle"
	default:
		return strconv.Itoa(int(p))
	}
}
