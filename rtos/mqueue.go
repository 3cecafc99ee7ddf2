package rtos

import "time"

const noIndex = int32(-1)

// MessageQueue is a bounded, priority-ordered message ring of N slots of
// M bytes each, per spec.md §4.6. Slots are tracked by three parallel
// index arrays (prev/next/prio) forming an intrusive doubly-linked ring
// ordered by descending priority with FIFO among ties, plus a singly
// linked free list (freeNext) of unused slots.
//
// The original packs the free list's next-pointer into the unused
// payload bytes of each free slot to avoid a fourth array. This port
// keeps a dedicated freeNext []int32 instead: same O(1) push/pop
// complexity and the same "a slot is on exactly one of the free list or
// the ring" invariant, without encoding pointers into a byte buffer via
// unsafe casts, which Go's memory model does not make safe the way the
// original's raw memory region does.
type MessageQueue struct {
	sched   *Scheduler
	name    string
	cap     int
	msgSize int

	storage  []byte
	prev     []int32
	next     []int32
	prio     []int32
	freeNext []int32

	head      int32
	firstFree int32
	count     int

	senders   waitList
	receivers waitList

	owns   bool
	closed bool
	tracer Tracer
}

type queueConfig struct {
	storage []byte
	tracer  Tracer
}

// QueueOption configures a MessageQueue at construction.
type QueueOption func(*queueConfig)

// WithQueueStorage supplies the N*msgSize payload backing buffer, the Go
// analogue of the original's caller-provided storage pointer. The
// parallel index arrays are always allocated by the queue itself, since
// they must stay typed ([]int32) for memory safety.
func WithQueueStorage(buf []byte) QueueOption {
	return func(c *queueConfig) { c.storage = buf }
}

// WithQueueTracer overrides the queue's Tracer, otherwise inherited from
// the Scheduler.
func WithQueueTracer(tr Tracer) QueueOption {
	return func(c *queueConfig) {
		if tr != nil {
			c.tracer = tr
		}
	}
}

// NewMessageQueue creates a queue of n slots of msgSize bytes each. sched
// may be nil to use the package default scheduler.
func NewMessageQueue(sched *Scheduler, name string, n, msgSize int, opts ...QueueOption) (*MessageQueue, error) {
	if sched == nil {
		sched = defaultScheduler
	}
	if n <= 0 || msgSize <= 0 {
		return nil, EINVAL
	}

	cfg := queueConfig{tracer: sched.tracer}
	for _, o := range opts {
		o(&cfg)
	}

	storage := cfg.storage
	owns := false
	if storage == nil {
		storage = make([]byte, n*msgSize)
		owns = true
	} else if len(storage) < n*msgSize {
		return nil, EINVAL
	}

	q := &MessageQueue{
		sched:    sched,
		name:     name,
		cap:      n,
		msgSize:  msgSize,
		storage:  storage,
		prev:     make([]int32, n),
		next:     make([]int32, n),
		prio:     make([]int32, n),
		freeNext: make([]int32, n),
		owns:     owns,
		tracer:   cfg.tracer,
	}
	q.initFreeListLocked()
	return q, nil
}

func (q *MessageQueue) Name() string { return q.name }

func (q *MessageQueue) cs() *CriticalSection { return &q.sched.cs }

func (q *MessageQueue) initFreeListLocked() {
	for i := 0; i < q.cap-1; i++ {
		q.freeNext[i] = int32(i + 1)
	}
	q.firstFree = noIndex
	if q.cap > 0 {
		q.firstFree = 0
		q.freeNext[q.cap-1] = noIndex
	}
	q.head = noIndex
	q.count = 0
}

// trySendLocked implements _try_send: pop a free slot, insert it into
// the priority ring (strictly-greater-than-head becomes the new head;
// otherwise walk backward from the tail while strictly greater than the
// node compared against, splicing in right after the stopping point —
// this yields "new message after the last equal-priority message" for
// ties), copy the payload, and wake one receiver. Caller must hold cs().
func (q *MessageQueue) trySendLocked(buf []byte, prio int32) bool {
	if q.firstFree == noIndex {
		return false
	}
	i := q.firstFree
	q.firstFree = q.freeNext[i]
	q.prio[i] = prio

	if q.head == noIndex {
		q.head = i
		q.prev[i] = i
		q.next[i] = i
	} else {
		ix := q.prev[q.head] // tail
		if prio > q.prio[q.head] {
			q.head = i
		} else {
			for prio > q.prio[ix] {
				ix = q.prev[ix]
			}
		}
		q.prev[i] = ix
		q.next[i] = q.next[ix]
		tmp := q.next[ix]
		q.next[ix] = i
		q.prev[tmp] = i
	}
	q.count++

	off := int(i) * q.msgSize
	n := copy(q.storage[off:off+q.msgSize], buf)
	for j := off + n; j < off+q.msgSize; j++ {
		q.storage[j] = 0
	}

	q.receivers.wakeupOne()
	return true
}

// tryReceiveLocked implements _try_receive: copy the head slot's payload
// out, unlink it from the ring, push it onto the free list, and wake one
// sender. Caller must hold cs().
func (q *MessageQueue) tryReceiveLocked(buf []byte) (int32, bool) {
	if q.head == noIndex {
		return 0, false
	}
	h := q.head
	off := int(h) * q.msgSize
	copy(buf, q.storage[off:off+q.msgSize])
	prio := q.prio[h]

	if q.count > 1 {
		q.prev[q.next[h]] = q.prev[h]
		q.next[q.prev[h]] = q.next[h]
		q.head = q.next[h]
	} else {
		q.head = noIndex
	}

	q.freeNext[h] = q.firstFree
	q.firstFree = h
	q.count--

	q.senders.wakeupOne()
	return prio, true
}

// Send enqueues buf at priority prio, blocking the calling thread self
// while the queue is full. buf must be at most msgSize bytes.
func (q *MessageQueue) Send(self *Thread, buf []byte, prio int32) error {
	if q.sched.InHandlerMode() {
		return EPERM
	}
	if len(buf) > q.msgSize {
		return EMSGSIZE
	}
	for {
		q.cs().Enter()
		if q.closed {
			q.cs().Leave()
			return ESRCH
		}
		ok := q.trySendLocked(buf, prio)
		q.cs().Leave()
		if ok {
			q.tracer.Trace("mqueue %q: send ok (prio=%d)", q.name, prio)
			return nil
		}

		g := enterWait(q.cs(), &q.senders, self)
		self.Suspend()
		g.release()

		if self.Interrupted() {
			return EINTR
		}
	}
}

// TrySend is the non-blocking variant: EAGAIN if the queue is full.
func (q *MessageQueue) TrySend(buf []byte, prio int32) error {
	if len(buf) > q.msgSize {
		return EMSGSIZE
	}
	q.cs().Enter()
	if q.closed {
		q.cs().Leave()
		return ESRCH
	}
	ok := q.trySendLocked(buf, prio)
	q.cs().Leave()
	if !ok {
		return EAGAIN
	}
	return nil
}

// TimedSend blocks up to ticks ticks (a zero timeout is treated as one
// tick) before returning ETIMEDOUT.
func (q *MessageQueue) TimedSend(self *Thread, clk *Clock, buf []byte, prio int32, ticks uint64) error {
	if q.sched.InHandlerMode() {
		return EPERM
	}
	if len(buf) > q.msgSize {
		return EMSGSIZE
	}
	if ticks == 0 {
		ticks = 1
	}
	start := clk.Now()
	for {
		q.cs().Enter()
		if q.closed {
			q.cs().Leave()
			return ESRCH
		}
		ok := q.trySendLocked(buf, prio)
		q.cs().Leave()
		if ok {
			return nil
		}

		elapsed := clk.Elapsed(start)
		if elapsed >= ticks {
			return ETIMEDOUT
		}
		remaining := ticks - elapsed

		g := enterWait(q.cs(), &q.senders, self)
		self.suspendTimeout(clk.TickDuration() * time.Duration(remaining))
		g.release()

		if self.Interrupted() {
			return EINTR
		}
	}
}

// Receive dequeues the highest-priority message into buf, blocking self
// while the queue is empty. buf must be at least msgSize bytes.
func (q *MessageQueue) Receive(self *Thread, buf []byte) (int32, error) {
	if q.sched.InHandlerMode() {
		return 0, EPERM
	}
	if len(buf) < q.msgSize {
		return 0, EINVAL
	}
	for {
		q.cs().Enter()
		prio, ok := q.tryReceiveLocked(buf)
		closed := q.closed
		q.cs().Leave()
		if ok {
			return prio, nil
		}
		if closed {
			return 0, ESRCH
		}

		g := enterWait(q.cs(), &q.receivers, self)
		self.Suspend()
		g.release()

		if self.Interrupted() {
			return 0, EINTR
		}
	}
}

// TryReceive is the non-blocking variant: EAGAIN if the queue is empty.
func (q *MessageQueue) TryReceive(buf []byte) (int32, error) {
	if len(buf) < q.msgSize {
		return 0, EINVAL
	}
	q.cs().Enter()
	prio, ok := q.tryReceiveLocked(buf)
	closed := q.closed
	q.cs().Leave()
	if ok {
		return prio, nil
	}
	if closed {
		return 0, ESRCH
	}
	return 0, EAGAIN
}

// TimedReceive blocks up to ticks ticks before returning ETIMEDOUT.
func (q *MessageQueue) TimedReceive(self *Thread, clk *Clock, buf []byte, ticks uint64) (int32, error) {
	if q.sched.InHandlerMode() {
		return 0, EPERM
	}
	if len(buf) < q.msgSize {
		return 0, EINVAL
	}
	if ticks == 0 {
		ticks = 1
	}
	start := clk.Now()
	for {
		q.cs().Enter()
		prio, ok := q.tryReceiveLocked(buf)
		closed := q.closed
		q.cs().Leave()
		if ok {
			return prio, nil
		}
		if closed {
			return 0, ESRCH
		}

		elapsed := clk.Elapsed(start)
		if elapsed >= ticks {
			return 0, ETIMEDOUT
		}
		remaining := ticks - elapsed

		g := enterWait(q.cs(), &q.receivers, self)
		self.suspendTimeout(clk.TickDuration() * time.Duration(remaining))
		g.release()

		if self.Interrupted() {
			return 0, EINTR
		}
	}
}

// Reset drains the queue to empty, waking every blocked sender and
// receiver. The free list is reinitialized first and both wait lists
// are woken afterwards, all inside one critical section, so a woken
// thread re-enters its own retry loop and observes the now-empty queue
// rather than completing against pre-reset state.
func (q *MessageQueue) Reset() error {
	q.cs().Enter()
	q.initFreeListLocked()
	q.senders.wakeupAll()
	q.receivers.wakeupAll()
	q.cs().Leave()
	q.tracer.Trace("mqueue %q: reset", q.name)
	return nil
}

// Close marks the queue closed, waking every blocked sender and
// receiver so they observe ESRCH on their next loop iteration, and
// releases the payload storage if the queue owns it. Idempotent.
func (q *MessageQueue) Close() error {
	q.cs().Enter()
	if q.closed {
		q.cs().Leave()
		return nil
	}
	q.closed = true
	q.senders.wakeupAll()
	q.receivers.wakeupAll()
	owns := q.owns
	q.cs().Leave()

	if owns {
		q.storage = nil
	}
	q.tracer.Trace("mqueue %q: closed", q.name)
	return nil
}
