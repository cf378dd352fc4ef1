package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func vecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	c, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	return counterValue(t, c)
}

func TestRecordCacheHitAndMiss(t *testing.T) {
	hitsBefore := counterValue(t, CacheHits)
	missesBefore := counterValue(t, CacheMisses)

	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheMiss()

	assert.Equal(t, hitsBefore+1, counterValue(t, CacheHits))
	assert.Equal(t, missesBefore+2, counterValue(t, CacheMisses))
}

func TestRecordAPIRequest(t *testing.T) {
	APIRequests.Reset()
	APIFailures.Reset()

	RecordAPIRequest("search")
	RecordAPIRequest("search")
	RecordAPIFailure("search")

	assert.Equal(t, 2.0, vecValue(t, APIRequests, "search"))
	assert.Equal(t, 1.0, vecValue(t, APIFailures, "search"))
}

func TestRecordDBQuery(t *testing.T) {
	queriesBefore := counterValue(t, DBQueries)
	failuresBefore := counterValue(t, DBFailures)

	RecordDBQuery()
	RecordDBFailure()

	assert.Equal(t, queriesBefore+1, counterValue(t, DBQueries))
	assert.Equal(t, failuresBefore+1, counterValue(t, DBFailures))
}

func TestRecordQueryDuration(t *testing.T) {
	QueryDuration.Reset()

	RecordQueryDuration(PathCache, 5*time.Millisecond)
	RecordQueryDuration(PathDB, 50*time.Millisecond)

	h, err := QueryDuration.GetMetricWithLabelValues(PathCache)
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, h.(prometheus.Histogram).Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestUpdateOpenCircuits(t *testing.T) {
	UpdateOpenCircuits(2)

	var m dto.Metric
	require.NoError(t, CircuitsOpen.Write(&m))
	assert.Equal(t, 2.0, m.GetGauge().GetValue())

	UpdateOpenCircuits(0)
	require.NoError(t, CircuitsOpen.Write(&m))
	assert.Equal(t, 0.0, m.GetGauge().GetValue())
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("GET", "/api/groups", "200", 10*time.Millisecond)

	assert.Equal(t, 1.0, vecValue(t, HTTPRequestsTotal, "GET", "/api/groups", "200"))
}
