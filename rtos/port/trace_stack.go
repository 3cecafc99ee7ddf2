//go:build !tinygo

package port

import "runtime/debug"

// CaptureStack returns a snapshot of the calling goroutine's stack, used
// to populate PanicInfo.Stack. Mirrors the teacher's stack_std.go.
func CaptureStack() []byte {
	return debug.Stack()
}
