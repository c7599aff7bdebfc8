package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// counter is a monotonically increasing value rendered in registration order.
type counter struct {
	name, help string
	v          atomic.Uint64
}

var counters []*counter

func newCounter(name, help string) *counter {
	c := &counter{name: name, help: help}
	counters = append(counters, c)
	return c
}

var (
	analysisStarted   = newCounter("analysis_started_total", "Total analyses started")
	analysisCompleted = newCounter("analysis_completed_total", "Total analyses completed")
	analysisFailed    = newCounter("analysis_failed_total", "Total analyses failed")

	scoringFallback = newCounter("scoring_fallback_total", "Analyses answered with the fallback result")
	scoringDegraded = newCounter("scoring_degraded_total", "Scoring steps that degraded to a default")

	embeddingErrors = newCounter("embedding_errors_total", "Failed embedding calls")
	cacheHits       = newCounter("embedding_cache_hits_total", "Embedding cache hits")
	cacheMisses     = newCounter("embedding_cache_misses_total", "Embedding cache misses")

	jobsPublished = newCounter("jobs_published_total", "Analysis jobs published to the queue")
	jobsProcessed = newCounter("jobs_processed_total", "Analysis jobs processed by workers")
	jobsFailed    = newCounter("jobs_failed_total", "Analysis jobs that failed in workers")

	usageLimitReached = newCounter("usage_limit_reached_total", "Requests rejected by the free analysis quota")

	analysisDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000})
)

func IncAnalysisStarted()   { analysisStarted.v.Add(1) }
func IncAnalysisCompleted() { analysisCompleted.v.Add(1) }
func IncAnalysisFailed()    { analysisFailed.v.Add(1) }

// IncScoringFallback counts analyses answered with the fallback result.
func IncScoringFallback() { scoringFallback.v.Add(1) }

// IncScoringDegraded counts sub-steps that fell back to a default value.
func IncScoringDegraded() { scoringDegraded.v.Add(1) }

func IncEmbeddingError()     { embeddingErrors.v.Add(1) }
func IncEmbeddingCacheHit()  { cacheHits.v.Add(1) }
func IncEmbeddingCacheMiss() { cacheMisses.v.Add(1) }

func IncJobPublished() { jobsPublished.v.Add(1) }
func IncJobProcessed() { jobsProcessed.v.Add(1) }
func IncJobFailed()    { jobsFailed.v.Add(1) }

// IncUsageLimitReached counts requests rejected by the free quota.
func IncUsageLimitReached() { usageLimitReached.v.Add(1) }

// ObserveAnalysisDurationMs records how long one analysis took to score.
func ObserveAnalysisDurationMs(ms float64) {
	analysisDuration.Observe(max(ms, 0))
}

// Since returns the milliseconds elapsed since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// Handler serves GET /metrics in the Prometheus text exposition format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(Render()))
	}
}

// Render writes every counter, then the duration histogram.
func Render() string {
	var buf bytes.Buffer
	for _, c := range counters {
		header(&buf, c.name, c.help, "counter")
		fmt.Fprintf(&buf, "%s %d\n", c.name, c.v.Load())
	}
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	count  uint64
}

type histogramSnapshot struct {
	bounds []float64
	counts []uint64
	sum    float64
	count  uint64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{bounds: bounds, counts: make([]uint64, len(bounds))}
}

// Observe adds v to the first bucket whose upper bound covers it; values
// above every bound only show up in the +Inf bucket.
func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		bounds: append([]float64(nil), h.bounds...),
		counts: append([]uint64(nil), h.counts...),
		sum:    h.sum,
		count:  h.count,
	}
}

func header(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func writeHistogram(buf *bytes.Buffer, name, help string, s histogramSnapshot) {
	header(buf, name, help, "histogram")
	var running uint64
	for i, le := range s.bounds {
		running += s.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, number(le), running)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n%s_sum %s\n%s_count %d\n", name, s.count, name, number(s.sum), name, s.count)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
