//go:build tinygo

package port

// CaptureStack is a stub under TinyGo: runtime/debug.Stack is unavailable
// there, so panic reports carry no stack trace on-device.
func CaptureStack() []byte {
	return nil
}
