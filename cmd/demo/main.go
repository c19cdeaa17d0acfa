// Command demo runs the extreme test the ticketed queue was built for:
// 20 pushing goroutines and 20 popping goroutines racing on a 16-slot
// queue, ten million pushes total. It's a straight port of the reference
// stress harness this package's design is grounded on, with one change —
// pushed values are drawn from a per-goroutine fastrand.RNG instead of a
// constant, so a broken conservation check can't hide behind every value
// being identical.
package main

import (
	"fmt"
	"sync"

	"github.com/valyala/fastrand"

	"github.com/sajty/circular-queue/pkg/ticketqueue"
)

const (
	taskCount          = 10000000
	pushingThreadCount = 20
	poppingThreadCount = 20
	queueCapacity      = 16
)

func main() {
	tasks := ticketqueue.New[uint32](queueCapacity)

	var wantSum uint64
	pushSums := make([]uint64, pushingThreadCount)

	var pushWG sync.WaitGroup
	pushWG.Add(pushingThreadCount)
	for id := 0; id < pushingThreadCount; id++ {
		go func(id int) {
			defer pushWG.Done()
			count := taskCount / pushingThreadCount
			if taskCount%pushingThreadCount > id {
				count++
			}
			var rng fastrand.RNG
			var local uint64
			for i := 0; i < count; i++ {
				v := rng.Uint32n(100) + 1
				local += uint64(v)
				tasks.Push(v)
			}
			pushSums[id] = local
		}(id)
	}

	popResults := make([]uint64, poppingThreadCount)
	popCounts := make([]int, poppingThreadCount)
	var popWG sync.WaitGroup
	popWG.Add(poppingThreadCount)
	for id := 0; id < poppingThreadCount; id++ {
		go func(id int) {
			defer popWG.Done()
			for {
				v, ok := tasks.Pop()
				if !ok {
					return
				}
				popResults[id] += uint64(v)
				popCounts[id]++
			}
		}(id)
	}

	pushWG.Wait()
	for _, s := range pushSums {
		wantSum += s
	}
	fmt.Println("all pushing goroutines completed")
	tasks.Close()

	popWG.Wait()

	var finalResult uint64
	for id := 0; id < poppingThreadCount; id++ {
		finalResult += popResults[id]
		fmt.Printf("popping goroutine %d completed: %d elements popped\n", id, popCounts[id])
	}

	fmt.Printf("Value should be:  %d\n", wantSum)
	fmt.Printf("Calculated value: %d\n", finalResult)

	if err := tasks.CheckEmpty(); err != nil {
		fmt.Println("queue not empty after drain:", err)
	}
}
