package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(EnrichmentFallbackCount.WithLabelValues("quotes", "network_error"))
	IncrementEnrichmentFallback("quotes", "network_error")
	assert.Equal(t, before+1, testutil.ToFloat64(EnrichmentFallbackCount.WithLabelValues("quotes", "network_error")))

	SetCircuitBreakerState("items", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("items")))
}
