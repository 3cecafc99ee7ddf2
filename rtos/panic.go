package rtos

import (
	"sync"
	"sync/atomic"

	"rtoscore/rtos/port"
)

// PanicInfo describes a thread entry function that panicked instead of
// returning or calling Exit. Adapted from the teacher's
// sparkos/kernel/panic.go PanicInfo, renamed from the capability-IPC
// TaskID world to this package's Thread names.
type PanicInfo struct {
	ThreadName string
	Value      any
	Stack      []byte
}

var (
	panicActive  atomic.Bool
	panicOnce    sync.Once
	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether a thread has ever entered the single-shot
// panic handler. Once true it stays true for the life of the process.
func InPanicMode() bool { return panicActive.Load() }

// SetPanicHandler installs the function invoked the first time any
// thread panics. Each call replaces the previously installed handler;
// only the first panic invokes a handler, and later panics do not,
// matching the teacher's single-shot contract.
func SetPanicHandler(fn func(PanicInfo)) {
	if fn == nil {
		return
	}
	panicHandler.Store(fn)
}

func triggerPanic(info PanicInfo) {
	panicOnce.Do(func() {
		panicActive.Store(true)
		if info.Stack == nil {
			info.Stack = port.CaptureStack()
		}
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
