package chart

import (
	"log/slog"
	"sync/atomic"
)

// Metrics tracks operational counters across the pipeline.
var metrics struct {
	FeedRequests     atomic.Int64
	FeedErrors       atomic.Int64
	MetadataRequests atomic.Int64
	MetadataErrors   atomic.Int64
	CacheHits        atomic.Int64
	CacheMisses      atomic.Int64
	NormalizeRejects atomic.Int64
	HistorySkipped   atomic.Int64

	RejectedDuration atomic.Int64
	RejectedText     atomic.Int64
}

func IncrFeedRequests()     { metrics.FeedRequests.Add(1) }
func IncrFeedErrors()       { metrics.FeedErrors.Add(1) }
func IncrMetadataRequests() { metrics.MetadataRequests.Add(1) }
func IncrMetadataErrors()   { metrics.MetadataErrors.Add(1) }
func IncrCacheHits()        { metrics.CacheHits.Add(1) }
func IncrCacheMisses()      { metrics.CacheMisses.Add(1) }
func IncrNormalizeRejects() { metrics.NormalizeRejects.Add(1) }
func IncrHistorySkipped()   { metrics.HistorySkipped.Add(1) }

// IncrRejected buckets classifier rejections by gate.
func IncrRejected(reason string) {
	switch reason {
	case "short_duration", "unknown_duration":
		metrics.RejectedDuration.Add(1)
	default:
		metrics.RejectedText.Add(1)
	}
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"feed_requests":     metrics.FeedRequests.Load(),
		"feed_errors":       metrics.FeedErrors.Load(),
		"metadata_requests": metrics.MetadataRequests.Load(),
		"metadata_errors":   metrics.MetadataErrors.Load(),
		"cache_hits":        metrics.CacheHits.Load(),
		"cache_misses":      metrics.CacheMisses.Load(),
		"normalize_rejects": metrics.NormalizeRejects.Load(),
		"history_skipped":   metrics.HistorySkipped.Load(),
		"rejected_duration": metrics.RejectedDuration.Load(),
		"rejected_text":     metrics.RejectedText.Load(),
	}
}

// LogMetrics dumps the counters at the end of a run.
func LogMetrics() {
	m := GetMetrics()
	attrs := make([]any, 0, len(m)*2)
	for _, k := range []string{
		"feed_requests", "feed_errors",
		"metadata_requests", "metadata_errors",
		"cache_hits", "cache_misses",
		"normalize_rejects", "history_skipped",
		"rejected_duration", "rejected_text",
	} {
		attrs = append(attrs, slog.Int64(k, m[k]))
	}
	slog.Info("run metrics", attrs...)
}
