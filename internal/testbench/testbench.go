// Package testbench drives producer and consumer goroutines against a
// queue implementation. It has two harnesses: RunTimedTest, which measures
// throughput over a fixed wall-clock window and applies to any queue
// satisfying queue.QueueValidationInterface (the CAS-race baselines have no
// termination protocol to drive instead); and RunConservationTest, which
// exercises the ticketed queue's actual protocol — producers finish, Close
// is called, consumers drain to end-of-stream — and checks the conservation
// invariant spec'd for it.
package testbench

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sajty/circular-queue/internal/queue"
	"github.com/sajty/circular-queue/pkg/ticketqueue"
)

// Config describes concurrency: how many producers, how many consumers.
type Config struct {
	NumProducers int
	NumConsumers int
}

// TicketQueueOptions bundles the ticketqueue construction knobs that
// NewTicketQueue accepts, so a caller can flip wait
// strategy or safety toggles without importing pkg/ticketqueue directly.
type TicketQueueOptions struct {
	Capacity        uint32
	WaitStrategy    ticketqueue.WaitStrategy
	DebugAssertions bool
}

func (o TicketQueueOptions) toOptions() []ticketqueue.Option {
	var opts []ticketqueue.Option
	if o.WaitStrategy != nil {
		opts = append(opts, ticketqueue.WithWaitStrategy(o.WaitStrategy))
	}
	if o.DebugAssertions {
		opts = append(opts, ticketqueue.WithDebugAssertions())
	}
	return opts
}

// RunTimedTest spawns producers and consumers that run for the specified
// duration, measuring how many messages are actually enqueued/dequeued
// in that window. Once the context expires, producers stop and consumers
// drain any remaining messages in the queue.
// Returns the total messages enqueued, total consumed, and the actual elapsed time.
func RunTimedTest[T any, Q queue.QueueValidationInterface[T]](
	q Q,
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (producedCount int64, consumedCount int64, elapsed time.Duration) {

	// Create a context that will cancel after testDuration.
	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced int64
	var totalConsumed int64

	start := time.Now()

	var msgIndex int64
	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)

	// productionDone will be set to 1 when test duration expires.
	var productionDone int32 = 0

	// Launch a goroutine that waits for the test duration to expire and then
	// signals production is done.
	go func() {
		<-ctx.Done()
		atomic.StoreInt32(&productionDone, 1)
	}()

	// Spawn producers.
	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			// Tight loop that checks the atomic flag.
			for atomic.LoadInt32(&productionDone) == 0 {
				idx := atomic.AddInt64(&msgIndex, 1) - 1
				msg := valueGenerator(int(idx))
				q.Enqueue(msg)
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	// Spawn consumers.
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			for {
				// If production is done, drain remaining messages.
				if atomic.LoadInt32(&productionDone) == 1 {
					// Drain the queue until empty.
					for {
						if _, ok := q.Dequeue(); ok {
							atomic.AddInt64(&totalConsumed, 1)
						} else {
							break
						}
					}
					return
				}
				// Normal consumption.
				if _, ok := q.Dequeue(); ok {
					atomic.AddInt64(&totalConsumed, 1)
				} else {
					runtime.Gosched()
				}
			}
		}()
	}

	// Wait for the context to expire.
	<-ctx.Done()

	// Wait for all producers to finish.
	prodWg.Wait()

	// Give consumers a short period to drain the remaining messages.
	time.Sleep(100 * time.Millisecond)

	elapsed = time.Since(start)
	producedCount = atomic.LoadInt64(&totalProduced)
	consumedCount = atomic.LoadInt64(&totalConsumed)
	return producedCount, consumedCount, elapsed
}

// ConservationResult reports what RunConservationTest observed.
type ConservationResult struct {
	Produced       int64
	Delivered      int64
	Elapsed        time.Duration
	PerConsumer    []int64
	ConservationOK bool
}

// RunConservationTest drives cfg.NumProducers producers, each pushing
// perProducer items generated by valueGenerator, into q, while
// cfg.NumConsumers consumers pop from q concurrently. Once every producer
// has finished it calls q.Close(), and the consumers drain q to
// end-of-stream, each counting the items it received. It fails loudly
// (ConservationOK=false) if the delivered count doesn't match the produced
// count — the conservation invariant holds unconditionally, not just usually.
func RunConservationTest[T any](
	q *ticketqueue.Queue[T],
	cfg Config,
	perProducer int,
	valueGenerator func(producerIdx, itemIdx int) T,
) ConservationResult {
	start := time.Now()

	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)
	for p := 0; p < cfg.NumProducers; p++ {
		p := p
		go func() {
			defer prodWg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(valueGenerator(p, i))
			}
		}()
	}
	perConsumer := make([]int64, cfg.NumConsumers)
	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for c := 0; c < cfg.NumConsumers; c++ {
		c := c
		go func() {
			defer consWg.Done()
			var count int64
			for {
				if _, ok := q.Pop(); !ok {
					break
				}
				count++
			}
			perConsumer[c] = count
		}()
	}
	prodWg.Wait()
	q.Close()
	consWg.Wait()

	var delivered int64
	for _, c := range perConsumer {
		delivered += c
	}
	produced := int64(cfg.NumProducers) * int64(perProducer)

	return ConservationResult{
		Produced:       produced,
		Delivered:      delivered,
		Elapsed:        time.Since(start),
		PerConsumer:    perConsumer,
		ConservationOK: delivered == produced,
	}
}

// NewTicketQueue builds a ticketqueue.Queue[T] from a TicketQueueOptions
// value, defaulting capacity to 1024 and wait strategy to the queue's own
// default (cooperative yield) when unset.
func NewTicketQueue[T any](o TicketQueueOptions) *ticketqueue.Queue[T] {
	capacity := o.Capacity
	if capacity == 0 {
		capacity = 1024
	}
	if 0xFFFFFFFF%capacity != capacity-1 {
		panic(fmt.Sprintf("testbench: capacity %d does not divide 2^32", capacity))
	}
	return ticketqueue.New[T](capacity, o.toOptions()...)
}
