package port

import (
	"context"
	"testing"
	"time"
)

func TestHandlerModeNesting(t *testing.T) {
	if InHandlerMode() {
		t.Fatal("handler mode should start false")
	}
	EnterHandlerMode()
	EnterHandlerMode()
	if !InHandlerMode() {
		t.Fatal("handler mode should be true after EnterHandlerMode")
	}
	LeaveHandlerMode()
	if !InHandlerMode() {
		t.Fatal("handler mode should still be true with one nested ISR outstanding")
	}
	LeaveHandlerMode()
	if InHandlerMode() {
		t.Fatal("handler mode should be false once every ISR has left")
	}
}

func TestNativeWaitForInterruptWakesOnNotify(t *testing.T) {
	n := NewNative()
	woke := make(chan struct{})
	go func() {
		n.WaitForInterrupt(context.Background())
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond)
	n.Notify()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("WaitForInterrupt never woke after Notify")
	}
}

func TestNativeWaitForInterruptRespectsContext(t *testing.T) {
	n := NewNative()
	ctx, cancel := context.WithCancel(context.Background())
	woke := make(chan struct{})
	go func() {
		n.WaitForInterrupt(ctx)
		close(woke)
	}()

	cancel()
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("WaitForInterrupt never returned after context cancellation")
	}
}
