// Package queue holds the compile-time interface constraints shared by
// every queue implementation this module benchmarks: the CAS-race
// baselines under pkg/, plus the ticketed queue under pkg/ticketqueue.
package queue

// QueueValidationInterface is a *type constraint* that ensures any type Q has
// these methods. We never store Q in a runtime interface—
// we only use QueueValidationInterface at compile time to ensure matching signatures.
// It describes the baseline queues: no termination protocol, best-effort
// accounting.
type QueueValidationInterface[T any] interface {
	// Enqueue adds an element to the queue and blocks if the queue is full.
	Enqueue(T)

	// Dequeue removes and returns the oldest element.
	// If the queue is empty (no element is available), it should return a empty T and false, otherwise true.
	Dequeue() (T, bool)

	// FreeSlots returns how many more elements can be enqueued before the queue is full.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64
}

// TerminatingQueue is the constraint pkg/ticketqueue.Queue satisfies. Unlike
// QueueValidationInterface it has a terminal signal and an exact,
// spec-guaranteed conservation property. The conservation-oriented
// benchmark (internal/testbench.RunConservationTest) is not written against
// this constraint: it takes a *ticketqueue.Queue directly.
type TerminatingQueue[T any] interface {
	Push(T)
	Pop() (T, bool)
	Close()
	Len() int64
}

// Pointer is a constraint that ensures T is always a pointer type.
type Pointer[T any] interface {
	*T
}

// Compile-time enforcement that T must be a pointer.
func enforcePointer[T any, PT interface{ ~*T }](q QueueValidationInterface[PT]) {}
