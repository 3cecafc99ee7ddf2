package rtos

import "time"

// SigGetMode selects whether SigGet also clears the bits it reports.
type SigGetMode int

const (
	SigGetPeek SigGetMode = iota
	SigGetClear
)

// SigWaitMode selects the match predicate a signal wait uses against its
// mask: SigWaitAny succeeds once any signal bit at all is set, whether or
// not it overlaps mask (the same rule applies to either mode when mask is
// zero, per the original), SigWaitAll requires every masked bit.
type SigWaitMode int

const (
	SigWaitAny SigWaitMode = iota
	SigWaitAll
)

// sigMatches reports whether sigMask satisfies mask under mode. On
// success it returns the thread's entire signal mask as of this
// pre-clear instant (full) — the snapshot callers receive, exactly as
// _try_wait's *oflags = sig_mask_ reports the whole mask rather than
// just the bits the caller asked about — plus the bits to actually
// clear (clear). SigWaitAll only clears the bits it matched against,
// leaving any unrelated bits set; SigWaitAny, and the mask == 0 case,
// clear the entire mask, matching the original's any branch, which
// succeeds on sig_mask_ != 0 regardless of overlap with mask.
func sigMatches(sigMask, mask uint32, mode SigWaitMode) (full, clear uint32, ok bool) {
	if mask == 0 {
		if sigMask == 0 {
			return 0, 0, false
		}
		return sigMask, sigMask, true
	}
	if mode == SigWaitAll {
		sel := sigMask & mask
		if sel != mask {
			return 0, 0, false
		}
		return sigMask, sel, true
	}
	if sigMask == 0 {
		return 0, 0, false
	}
	return sigMask, sigMask, true
}

// SigRaise ORs mask into t's signal flags and wakes t if it is suspended
// waiting on them. Safe to call from a simulated interrupt context and
// from any thread, not just t itself, since it targets a mailbox rather
// than the calling thread.
func (t *Thread) SigRaise(mask uint32) (uint32, error) {
	if mask == 0 {
		return 0, EINVAL
	}
	t.sched.cs.Enter()
	old := t.sigMask
	t.sigMask |= mask
	t.wakeupLocked()
	t.sched.cs.Leave()
	return old, nil
}

// SigClear clears mask from t's signal flags. Not callable from a
// simulated interrupt context.
func (t *Thread) SigClear(mask uint32) (uint32, error) {
	if t.sched.InHandlerMode() {
		return 0, EPERM
	}
	if mask == 0 {
		return 0, EINVAL
	}
	t.sched.cs.Enter()
	old := t.sigMask
	t.sigMask &^= mask
	t.sched.cs.Leave()
	return old, nil
}

// SigGet reads t's signal flags selected by mask (all of them if mask is
// zero), optionally clearing the bits it reports.
func (t *Thread) SigGet(mask uint32, mode SigGetMode) uint32 {
	t.sched.cs.Enter()
	defer t.sched.cs.Leave()

	var v uint32
	if mask == 0 {
		v = t.sigMask
	} else {
		v = t.sigMask & mask
	}
	if mode == SigGetClear {
		if mask == 0 {
			t.sigMask = 0
		} else {
			t.sigMask &^= mask
		}
	}
	return v
}

// SigWait blocks t (which must call this on itself) until its signal
// flags satisfy mask under mode, then clears the matched bits and
// returns the entire signal mask as it stood immediately before the
// clear — not just the bits overlapping mask — matching the original's
// *oflags = sig_mask_ snapshot. Not callable from a simulated interrupt
// context.
func (t *Thread) SigWait(mask uint32, mode SigWaitMode) (uint32, error) {
	if t.sched.InHandlerMode() {
		return 0, EPERM
	}
	for {
		t.sched.cs.Enter()
		full, clear, ok := sigMatches(t.sigMask, mask, mode)
		if ok {
			t.sigMask &^= clear
			t.sched.cs.Leave()
			return full, nil
		}
		t.sched.cs.Leave()

		t.Suspend()
		if t.Interrupted() {
			return 0, EINTR
		}
	}
}

// TrySigWait is the non-blocking variant: EAGAIN if mask is not yet
// satisfied.
func (t *Thread) TrySigWait(mask uint32, mode SigWaitMode) (uint32, error) {
	t.sched.cs.Enter()
	defer t.sched.cs.Leave()
	full, clear, ok := sigMatches(t.sigMask, mask, mode)
	if !ok {
		return 0, EAGAIN
	}
	t.sigMask &^= clear
	return full, nil
}

// TimedSigWait blocks up to ticks ticks (a zero timeout is treated as
// one tick), re-measuring elapsed ticks each loop iteration, matching
// the original's timed_sig_wait.
func (t *Thread) TimedSigWait(clk *Clock, mask uint32, mode SigWaitMode, ticks uint64) (uint32, error) {
	if t.sched.InHandlerMode() {
		return 0, EPERM
	}
	if ticks == 0 {
		ticks = 1
	}
	start := clk.Now()
	for {
		t.sched.cs.Enter()
		full, clear, ok := sigMatches(t.sigMask, mask, mode)
		if ok {
			t.sigMask &^= clear
			t.sched.cs.Leave()
			return full, nil
		}
		t.sched.cs.Leave()

		elapsed := clk.Elapsed(start)
		if elapsed >= ticks {
			return 0, ETIMEDOUT
		}
		remaining := ticks - elapsed

		t.suspendTimeout(clk.TickDuration() * time.Duration(remaining))
		if t.Interrupted() {
			return 0, EINTR
		}
	}
}
