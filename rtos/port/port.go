// Package port names the runtime contract spec.md §1 and §6 require from
// the platform's context-switch / interrupt-entry layer, and supplies the
// one implementation that is always available: a Go-native substitute
// built on goroutines and a condition-style idle wait instead of the
// hardware WFI instruction.
//
// The kernel treats everything below this package as an external
// collaborator with a named interface only — it never assumes a specific
// CPU, tick source, or assembly context-switch routine.
package port

import (
	"context"
	"sync/atomic"
)

// handlerDepth tracks how many simulated interrupt service routines are
// currently active. The target hardware is single-processor, so at most
// one real execution context runs at a time; an atomic counter is enough
// to answer scheduler::in_handler_mode() for every goroutine without a
// per-goroutine key.
var handlerDepth atomic.Int32

// EnterHandlerMode marks the calling logical context as executing inside
// a simulated interrupt service routine. Callers must pair every call
// with LeaveHandlerMode, typically via defer.
func EnterHandlerMode() { handlerDepth.Add(1) }

// LeaveHandlerMode undoes one EnterHandlerMode call.
func LeaveHandlerMode() { handlerDepth.Add(-1) }

// InHandlerMode reports whether a simulated ISR is currently active.
func InHandlerMode() bool { return handlerDepth.Load() > 0 }

// Layer is the subset of the port contract the core schedules against:
// handler-mode detection and the idle-wait-for-interrupt hook. Thread and
// message-queue creation, suspend/wakeup, and the clock are implemented
// natively in the rtos package itself (on top of goroutines and channels,
// the Go equivalent of the assembly context-switch layer), so they are
// not re-abstracted here; Layer exists so a future non-native port can
// still override handler-mode detection and the idle hook.
type Layer interface {
	InHandlerMode() bool
	WaitForInterrupt(ctx context.Context)
}

// Native is the Go-native Layer: InHandlerMode delegates to the package
// level simulated-ISR counter, and WaitForInterrupt parks on a signal
// channel that Notify wakes, standing in for the hardware WFI instruction.
type Native struct {
	wake chan struct{}
}

// NewNative creates the default Layer implementation.
func NewNative() *Native {
	return &Native{wake: make(chan struct{}, 1)}
}

func (n *Native) InHandlerMode() bool { return InHandlerMode() }

// WaitForInterrupt blocks until Notify is called or ctx is done.
func (n *Native) WaitForInterrupt(ctx context.Context) {
	select {
	case <-n.wake:
	case <-ctx.Done():
	}
}

// Notify wakes a goroutine parked in WaitForInterrupt. Call it whenever
// scheduler state changes that the idle loop should react to (a thread
// terminated, a tick elapsed).
func (n *Native) Notify() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}
