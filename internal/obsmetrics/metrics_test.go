package obsmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockMetricsRecordsCountsAndHistograms(t *testing.T) {
	m := NewMockMetrics()
	m.IncCounter("retrieval_cache_hits_total", map[string]string{"intent": "fees"})
	m.IncCounter("retrieval_cache_hits_total", map[string]string{"intent": "fees"})
	m.ObserveHistogram("retrieval_stage_latency_ms", 12, map[string]string{"stage": "rerank"})
	m.ObserveHistogram("retrieval_stage_latency_ms", 34, map[string]string{"stage": "fusion"})

	assert.Equal(t, 2, m.Counters["retrieval_cache_hits_total"])
	assert.Len(t, m.Hists["retrieval_stage_latency_ms"], 2)
}

func TestMockMetricsNilLabelsAreNotStoredEmpty(t *testing.T) {
	m := NewMockMetrics()
	m.IncCounter("retrieval_requests_total", nil)
	assert.Equal(t, 1, m.Counters["retrieval_requests_total"])
	assert.Nil(t, m.Labels["retrieval_requests_total"][0])
}
