package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragcache/internal/event"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_EmitCountsByKind(t *testing.T) {
	m := New()
	ctx := context.Background()
	m.Emit(ctx, event.Event{Kind: event.KindCacheHit, Key: "a", Distance: 0.02})
	m.Emit(ctx, event.Event{Kind: event.KindCacheMiss, Key: "b", Distance: 0.4})
	m.Emit(ctx, event.Event{Kind: event.KindCacheMiss, Distance: -1})
	m.Emit(ctx, event.Event{Kind: event.KindEviction, Key: "k"})
	m.Emit(ctx, event.Event{Kind: event.KindTaskDropped})
	m.Emit(ctx, event.Event{Kind: event.KindStateChange})

	assert.Equal(t, float64(1), counterValue(t, m, "ragcache_cache_events_total", map[string]string{"kind": "cache_hit"}))
	assert.Equal(t, float64(2), counterValue(t, m, "ragcache_cache_events_total", map[string]string{"kind": "cache_miss"}))
	assert.Equal(t, float64(2), counterValue(t, m, "ragcache_cache_lookup_distance", nil))
	assert.Equal(t, float64(1), counterValue(t, m, "ragcache_embedding_events_total", map[string]string{"kind": "embedding_eviction"}))
	assert.Equal(t, float64(1), counterValue(t, m, "ragcache_cache_write_tasks_total", map[string]string{"kind": "task_dropped"}))
}

func TestMetrics_GaugeFuncAndAPI(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterGaugeFunc(SubsystemEmbedding, "entries", "entries", func() float64 { return 7 }))
	assert.Error(t, m.RegisterGaugeFunc(SubsystemEmbedding, "entries", "entries", func() float64 { return 7 }))
	assert.Equal(t, float64(7), counterValue(t, m, "ragcache_embedding_entries", nil))

	m.ObserveAPIEndpointDuration("ask", "POST", "200", 0.01)
	assert.Equal(t, float64(1), counterValue(t, m, "ragcache_api_time_seconds", map[string]string{"handler": "ask", "method": "POST", "status_code": "200"}))
}
