package outbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardguard/fraudengine/internal/metrics"
)

// testMetrics is shared across this package's test functions: metrics.New
// registers every series against the default Prometheus registerer, so a
// second call within the same test binary would panic on a duplicate
// registration.
var (
	testMetricsOnce sync.Once
	testMetricsInst *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetricsInst = metrics.New()
	})
	return testMetricsInst
}

func TestQueueEnqueueAndDrain(t *testing.T) {
	q := NewQueue(4, testMetrics())
	q.Enqueue(Event{TransactionID: "tx-1"})
	q.Enqueue(Event{TransactionID: "tx-2"})
	require.Equal(t, 2, q.Len())

	drained := q.Drain(10)
	require.Len(t, drained, 2)
	require.Equal(t, "tx-1", drained[0].TransactionID)
	require.Equal(t, "tx-2", drained[1].TransactionID)
	require.Equal(t, 0, q.Len())
}

func TestQueueEnqueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1, testMetrics())
	q.Enqueue(Event{TransactionID: "keep"})
	q.Enqueue(Event{TransactionID: "dropped"})

	drained := q.Drain(10)
	require.Len(t, drained, 1)
	require.Equal(t, "keep", drained[0].TransactionID)
}

func TestQueueDrainBlockingReturnsOnClose(t *testing.T) {
	q := NewQueue(4, testMetrics())
	q.Close()

	events, ok := q.DrainBlocking(4)
	require.False(t, ok)
	require.Nil(t, events)
}

func TestQueueDrainBlockingWaitsForFirstEvent(t *testing.T) {
	q := NewQueue(4, testMetrics())
	go q.Enqueue(Event{TransactionID: "async"})

	events, ok := q.DrainBlocking(4)
	require.True(t, ok)
	require.Len(t, events, 1)
	require.Equal(t, "async", events[0].TransactionID)
}
