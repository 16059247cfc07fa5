package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	before := testutil.ToFloat64(httpRequests.WithLabelValues("slots", "200"))
	ObserveHTTP("slots", 200, 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("slots", "200")))

	failed := testutil.ToFloat64(brokerPublished.WithLabelValues("order_created", "error"))
	IncBroker("order_created", errors.New("closed"))
	IncBroker("order_created", nil)
	assert.Equal(t, failed+1, testutil.ToFloat64(brokerPublished.WithLabelValues("order_created", "error")))
}
