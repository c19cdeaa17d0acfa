// Package config re-exports the concurrency and queue-construction options
// used by the benchmark harness, so callers can build a Config without
// pulling in the entire testbench package.
package config

import (
	"time"

	"github.com/sajty/circular-queue/internal/testbench"
	"github.com/sajty/circular-queue/pkg/ticketqueue"
)

// Config is an alias for testbench.Config.
type Config = testbench.Config

// TicketQueueOptions is an alias for testbench.TicketQueueOptions, the
// subset of ticketqueue.Option construction knobs that
// testbench.NewTicketQueue accepts.
type TicketQueueOptions = testbench.TicketQueueOptions

// SleepWait is a convenience constructor for a ticketqueue.SleepWaitStrategy,
// re-exported so callers configuring a Config don't need to import
// pkg/ticketqueue directly just to pick a wait policy.
func SleepWait(d time.Duration) ticketqueue.WaitStrategy {
	return ticketqueue.SleepWaitStrategy(d)
}
