package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_search_requests_total",
			Help: "Search collaborator requests by outcome",
		},
		[]string{"status"},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atlas_search_results_count",
			Help:    "Resources returned per section search",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		},
	)

	ClassificationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_classification_requests_total",
			Help: "Aggregate classification calls by outcome",
		},
		[]string{"status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atlas_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	SectionPercentage = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atlas_section_percentage",
			Help:    "Section completeness percentage per evaluated model",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"section"},
	)

	SectionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_sections_processed_total",
			Help: "Sections evaluated by outcome",
		},
		[]string{"status"},
	)

	ModelsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_models_processed_total",
			Help: "Models fully evaluated",
		},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlas_circuit_breaker_state",
			Help: "Collaborator circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequests,
			SearchResultsCount,
			ClassificationRequests,
			LLMTokensUsed,
			StageDuration,
			SectionPercentage,
			SectionsProcessed,
			ModelsProcessed,
			CircuitState,
			CacheHits,
			CacheMisses,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
