package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalyzeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_analyze_duration_seconds",
			Help:    "Inquiry analysis duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	AnalyzeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_analyze_total",
			Help: "Total number of inquiry analyses",
		},
		[]string{"mode"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	VendorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_vendor_requests_total",
			Help: "Requests sent to helpdesk vendors",
		},
		[]string{"vendor", "status"},
	)

	VendorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_vendor_request_duration_seconds",
			Help:    "Vendor request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"vendor"},
	)

	FallbackAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_fallback_attempts_total",
			Help: "Fallback chain attempts by outcome",
		},
		[]string{"chain", "attempt", "outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RecordsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_records_ingested_total",
			Help: "Raw records written by ingestion jobs",
		},
		[]string{"source", "kind"},
	)

	CorpusExcluded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_corpus_excluded_total",
			Help: "Records dropped while building a customer corpus",
		},
		[]string{"reason"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Calling it
// more than once is harmless.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AnalyzeDuration,
			AnalyzeTotal,
			LLMTokensUsed,
			VendorRequests,
			VendorDuration,
			FallbackAttempts,
			CacheHits,
			CacheMisses,
			RecordsIngested,
			CorpusExcluded,
		)
	})
}

// ObserveFallback matches the fallback.Observer signature.
func ObserveFallback(chain, attempt, outcome string) {
	FallbackAttempts.WithLabelValues(chain, attempt, outcome).Inc()
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
