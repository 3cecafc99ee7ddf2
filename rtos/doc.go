// Package rtos implements a single-process, goroutine-backed rendition
// of a preemptive, priority-scheduled RTOS concurrency core: threads
// with a POSIX-flavored lifecycle, a per-thread signal-flag mailbox,
// and a bounded, priority-ordered message queue, coordinated by one
// kernel-wide critical section.
//
// Handler mode detection and the idle wait are reachable only through
// the rtos/port package's Layer interface, so a future non-native port
// (a real interrupt controller) can replace them without touching this
// package. The tick source (Clock) is part of this package.
package rtos
