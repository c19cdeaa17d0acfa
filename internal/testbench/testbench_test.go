package testbench

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sajty/circular-queue/pkg/ticketqueue"
)

func TestRunConservationTestConserves(t *testing.T) {
	q := ticketqueue.New[int](16)
	cfg := Config{NumProducers: 6, NumConsumers: 6}

	res := RunConservationTest(q, cfg, 5000, func(producerIdx, itemIdx int) int {
		return 1
	})

	require.True(t, res.ConservationOK, "produced=%d delivered=%d", res.Produced, res.Delivered)
	require.EqualValues(t, 6*5000, res.Delivered)
	require.NoError(t, q.CheckEmpty())
}

func TestNewTicketQueueDefaults(t *testing.T) {
	q := NewTicketQueue[int](TicketQueueOptions{})
	require.Equal(t, 1024, q.Cap())
}

func TestNewTicketQueuePanicsOnBadCapacity(t *testing.T) {
	require.Panics(t, func() {
		NewTicketQueue[int](TicketQueueOptions{Capacity: 3})
	})
}
