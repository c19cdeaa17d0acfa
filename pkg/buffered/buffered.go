// Package buffered wraps a native Go channel as a queue.QueueValidationInterface
// implementation. It is the one baseline that blocks via the runtime's own
// scheduler parking instead of a spin loop, benchmarked against
// pkg/ticketqueue to answer the question the ticketed design's whole
// existence is premised on: how much does avoiding a kernel-assisted wait
// actually buy you. Unlike the other baselines it also gets a real terminal
// signal for free from Go's channel close, so it additionally satisfies
// queue.TerminatingQueue. It does not run through
// internal/testbench.RunConservationTest, which takes a *ticketqueue.Queue.
package buffered

// BufferedQueue is a bounded FIFO backed by a buffered channel.
type BufferedQueue[T any] struct {
	ch chan T
}

// New creates a BufferedQueue with the given buffer size. A zero-capacity
// Go channel is an unbuffered synchronization primitive, not a
// zero-capacity buffer, so the minimum enforced size is 1.
func New[T any](bufferSize uint64) *BufferedQueue[T] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &BufferedQueue[T]{
		ch: make(chan T, bufferSize),
	}
}

// Enqueue blocks until the channel has room. Panics if called after Close,
// same as sending on a closed channel — this baseline doesn't paper over
// that with a recover, since pkg/ticketqueue's own contract also treats
// push-after-close as the caller's mistake to avoid.
func (q *BufferedQueue[T]) Enqueue(val T) {
	q.ch <- val
}

// Dequeue returns immediately: (value, true) if one was available,
// otherwise (zero, false).
func (q *BufferedQueue[T]) Dequeue() (val T, ok bool) {
	select {
	case val = <-q.ch:
		return val, true
	default:
		return val, false
	}
}

// FreeSlots returns how many more elements fit before Enqueue blocks.
func (q *BufferedQueue[T]) FreeSlots() uint64 {
	return uint64(cap(q.ch) - len(q.ch))
}

// UsedSlots returns how many elements are currently buffered.
func (q *BufferedQueue[T]) UsedSlots() uint64 {
	return uint64(len(q.ch))
}

// Push is an alias for Enqueue so BufferedQueue also satisfies
// queue.TerminatingQueue's naming.
func (q *BufferedQueue[T]) Push(val T) { q.Enqueue(val) }

// Pop blocks until an item is available or Close has been called and the
// channel is drained, mirroring pkg/ticketqueue.Queue.Pop's contract via
// the runtime's native channel-close semantics instead of a spin loop.
func (q *BufferedQueue[T]) Pop() (T, bool) {
	v, ok := <-q.ch
	return v, ok
}

// Close signals end-of-stream. Safe to call more than once? No — like a
// Go channel close in general, calling it twice panics; callers follow the
// same single-call discipline pkg/ticketqueue.Queue.Close relaxes with an
// atomic CompareAndSwap. That relaxation is one of the things
// pkg/ticketqueue improves on this baseline.
func (q *BufferedQueue[T]) Close() {
	close(q.ch)
}

// Len returns the current buffered count as a signed snapshot, matching
// queue.TerminatingQueue's signature even though a channel's length can
// never go negative the way pkg/ticketqueue.Queue.Len can.
func (q *BufferedQueue[T]) Len() int64 {
	return int64(len(q.ch))
}

// Describe summarizes what this baseline trades away relative to
// pkg/ticketqueue, for cmd/bench's comparison table.
func (q *BufferedQueue[T]) Describe() string {
	return "native channel: kernel-assisted parking instead of a spin wait, real Close(), no per-slot ticket fairness concept (channels are inherently FIFO)"
}
