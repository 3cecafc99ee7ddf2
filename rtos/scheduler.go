package rtos

import (
	"context"
	"sort"
	"sync/atomic"

	"rtoscore/rtos/port"
)

// Scheduler is the kernel singleton spec.md §4.5 describes: the
// CriticalSection every thread and queue shares, the set of registered
// threads, the list of terminated-but-not-yet-destroyed threads the
// idle/reaper loop drains, and the port.Layer it delegates handler-mode
// detection and idle waiting to. Real CPU scheduling is delegated
// entirely to the Go runtime's goroutine scheduler; Scheduler's ready
// queue bookkeeping (ReadyByPriority) is diagnostic, not load-bearing —
// it reports the priority order the kernel model expects, not a set of
// threads it hand-dispatches itself.
type Scheduler struct {
	cs     CriticalSection
	name   string
	tracer Tracer
	port   port.Layer

	idlePriority Priority

	seqCounter atomic.Uint64
	threads    map[*Thread]struct{}
	terminated []*Thread
}

// NewScheduler creates a Scheduler. A process may run more than one —
// spec.md's invariants are all per-Scheduler — but most programs share
// the package default returned by DefaultScheduler.
func NewScheduler(name string, opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Scheduler{
		name:         name,
		tracer:       cfg.Tracer,
		port:         cfg.Port,
		idlePriority: idlePriorityFor(cfg),
		threads:      make(map[*Thread]struct{}),
	}
}

var defaultScheduler = NewScheduler("default")

// DefaultScheduler returns the package-wide default Scheduler used by
// NewThread/NewMessageQueue when passed a nil Scheduler.
func DefaultScheduler() *Scheduler { return defaultScheduler }

func (s *Scheduler) Name() string { return s.name }

func (s *Scheduler) String() string { return "scheduler(" + s.name + ")" }

// IdlePriority returns the priority level reserved for this scheduler's
// idle/reaper thread.
func (s *Scheduler) IdlePriority() Priority { return s.idlePriority }

// InHandlerMode reports whether a simulated interrupt is currently
// active, delegating to the configured port.Layer.
func (s *Scheduler) InHandlerMode() bool { return s.port.InHandlerMode() }

func (s *Scheduler) register(t *Thread) {
	s.cs.Enter()
	t.seq = s.seqCounter.Add(1)
	s.threads[t] = struct{}{}
	s.cs.Leave()
}

func (s *Scheduler) unregisterLocked(t *Thread) {
	delete(s.threads, t)
}

func (s *Scheduler) appendTerminatedLocked(t *Thread) {
	s.terminated = append(s.terminated, t)
}

func (s *Scheduler) notifyIdle() {
	if n, ok := s.port.(*port.Native); ok {
		n.Notify()
	}
}

// ReadyByPriority snapshots the currently ready/running threads sorted
// by descending priority, ties broken by registration order (FIFO) —
// the bookkeeping view of the "ready queue" spec.md §4.5 describes.
// Actual dispatch is the Go runtime's, not this list's.
func (s *Scheduler) ReadyByPriority() []*Thread {
	type snapshot struct {
		t        *Thread
		priority Priority
		seq      uint64
	}

	s.cs.Enter()
	snaps := make([]snapshot, 0, len(s.threads))
	for t := range s.threads {
		if t.state == StateReady || t.state == StateRunning {
			snaps = append(snaps, snapshot{t: t, priority: t.priority, seq: t.seq})
		}
	}
	s.cs.Leave()

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].priority != snaps[j].priority {
			return snaps[i].priority > snaps[j].priority
		}
		return snaps[i].seq < snaps[j].seq
	})

	out := make([]*Thread, len(snaps))
	for i, sn := range snaps {
		out[i] = sn.t
	}
	return out
}

// destroy unregisters a terminated thread and marks it destroyed. Called
// only by RunReaper, the idle thread's job per spec.md §2/§4.5.
func (s *Scheduler) destroy(t *Thread) {
	s.cs.Enter()
	s.unregisterLocked(t)
	t.state = StateDestroyed
	s.cs.Leave()
	t.tracer.Trace("thread %q: terminated -> destroyed", t.name)
}

// RunReaper is the idle/reaper thread's loop: drain every terminated
// thread, destroy it, and otherwise block in the port's
// WaitForInterrupt until there is more work or ctx is cancelled. Run it
// on its own goroutine for the lifetime of the scheduler; NewThread
// rejects IdlePriority, so it does not run as a Thread.
func (s *Scheduler) RunReaper(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.cs.Enter()
		var batch []*Thread
		if len(s.terminated) > 0 {
			batch, s.terminated = s.terminated, nil
		}
		s.cs.Leave()

		for _, t := range batch {
			s.destroy(t)
		}
		if len(batch) == 0 {
			s.port.WaitForInterrupt(ctx)
		}
	}
}
