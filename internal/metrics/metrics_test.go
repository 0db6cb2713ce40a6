package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IncrementCounter(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter("test_counter", nil, "Test counter")
	labels := map[string]string{"status": "success"}
	registry.IncrementCounter("test_counter", labels, "Test counter")
	registry.IncrementCounter("test_counter", labels, "Test counter")

	snap := registry.GetAllMetrics()
	assert.Equal(t, float64(1), snap.Counters["test_counter"].Value)
	assert.Equal(t, float64(2), snap.Counters["test_counter_status:success"].Value)
	assert.Equal(t, Counter, snap.Counters["test_counter"].Type)
}

func TestRegistry_AddToCounter(t *testing.T) {
	registry := NewRegistry()

	registry.AddToCounter("bytes", 5.5, nil, "")
	registry.AddToCounter("bytes", 4.5, nil, "")

	assert.Equal(t, float64(10), registry.GetAllMetrics().Counters["bytes"].Value)
}

func TestRegistry_RecordTimer(t *testing.T) {
	registry := NewRegistry()

	for i := 1; i <= 20; i++ {
		registry.RecordTimer("op", time.Duration(i)*time.Millisecond, nil, "")
	}

	timer := registry.GetAllMetrics().Timers["op"]
	assert.Equal(t, int64(20), timer.Count)
	assert.InDelta(t, 1.0, timer.Min, 0.001)
	assert.InDelta(t, 20.0, timer.Max, 0.001)
	assert.InDelta(t, 10.5, timer.Average, 0.001)
	assert.InDelta(t, 20.0, timer.P95, 0.001)
	assert.InDelta(t, 20.0, timer.P99, 0.001)
}

func TestRegistry_SetGauge(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge("connections", 3, nil, "")
	registry.SetGauge("connections", 1, nil, "")

	assert.Equal(t, float64(1), registry.GetAllMetrics().Gauges["connections"].Value)
}

func TestMetricKey_IsDeterministic(t *testing.T) {
	labels := map[string]string{"b": "2", "a": "1", "c": "3"}
	for i := 0; i < 20; i++ {
		assert.Equal(t, "m_a:1_b:2_c:3", metricKey("m", labels))
	}
	assert.Equal(t, "m", metricKey("m", nil))
}

func TestSnapshot_IsACopy(t *testing.T) {
	registry := NewRegistry()
	labels := map[string]string{"k": "v"}
	registry.IncrementCounter("c", labels, "")

	snap := registry.GetAllMetrics()
	labels["k"] = "mutated"
	registry.IncrementCounter("c", map[string]string{"k": "v"}, "")

	assert.Equal(t, float64(1), snap.Counters["c_k:v"].Value)
	assert.Equal(t, "v", snap.Counters["c_k:v"].Labels["k"])
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.IncrementCounter("hits", nil, "")
			registry.RecordTimer("lat", time.Millisecond, nil, "")
			_ = registry.GetAllMetrics()
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(50), registry.GetAllMetrics().Counters["hits"].Value)
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.95))
	assert.Equal(t, 5.0, percentile([]float64{5, 1, 3}, 0.99))
	assert.Equal(t, 3.0, percentile([]float64{5, 1, 3}, 0.5))
}

func TestDomainHelpers_FeedRegistry(t *testing.T) {
	key := "webhook_messages_total_outcome:" + OutcomeDuplicate
	before := GetAllMetrics().Counters[key].Value
	RecordWebhookMessage(OutcomeDuplicate)
	assert.Equal(t, before+1, GetAllMetrics().Counters[key].Value)

	SetRealtimeGauges(4, 2)
	snap := GetAllMetrics()
	require.Contains(t, snap.Gauges, "realtime_connections")
	assert.Equal(t, float64(4), snap.Gauges["realtime_connections"].Value)
	assert.Equal(t, float64(2), snap.Gauges["realtime_rooms"].Value)

	RecordHTTPRequest("GET", "/api/health", 200, 3*time.Millisecond)
	assert.GreaterOrEqual(t, GetAllMetrics().Counters["http_requests_total_method:GET_route:/api/health_status:200"].Value, float64(1))
}
