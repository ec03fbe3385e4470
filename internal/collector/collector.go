// Package collector gathers external evidence for one (model, section) pair.
// One search covers every subsection of the section.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/catalog"
	"github.com/transparency-atlas/backend/internal/metrics"
	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/runlog"
	"github.com/transparency-atlas/backend/internal/search/perplexity"
	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/pkg/logger"
	"github.com/transparency-atlas/backend/pkg/utils"
)

const (
	DefaultMaxResults       = 5
	DefaultMaxTokensPerPage = 1024
)

type Searcher interface {
	Search(ctx context.Context, req perplexity.Request) (*perplexity.Response, error)
}

// ResultCache is optional; a nil cache disables caching.
type ResultCache interface {
	GetSearch(ctx context.Context, key string) ([]perplexity.Result, bool, error)
	SetSearch(ctx context.Context, key string, results []perplexity.Result) error
}

// CollectionError wraps a search failure for one model and section.
type CollectionError struct {
	Model   string
	Section string
	Err     error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("failed to collect resources for %s / %s: %v", e.Model, e.Section, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

type Options struct {
	MaxResults       int
	MaxTokensPerPage int
	Recorder         runlog.Recorder
	Cache            ResultCache
}

type Collector struct {
	searcher         Searcher
	recorder         runlog.Recorder
	cache            ResultCache
	maxResults       int
	maxTokensPerPage int
}

func New(searcher Searcher, opts Options) *Collector {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.MaxTokensPerPage <= 0 {
		opts.MaxTokensPerPage = DefaultMaxTokensPerPage
	}
	if opts.Recorder == nil {
		opts.Recorder = runlog.Discard{}
	}
	return &Collector{
		searcher:         searcher,
		recorder:         opts.Recorder,
		cache:            opts.Cache,
		maxResults:       opts.MaxResults,
		maxTokensPerPage: opts.MaxTokensPerPage,
	}
}

// BuildQuery names the model, its provider, the section and every subsection.
func BuildQuery(modelName, provider, sectionName string, subsectionNames []string) string {
	subsections := strings.Join(subsectionNames, ", ")
	return fmt.Sprintf("Find official model card documentation and technical details "+
		"for %s by %s, focusing on %q such as %s. Include authoritative links to documentation, "+
		"technical papers, GitHub, APIs, model cards, release notes, or blog posts "+
		"from %s and trusted sources.",
		modelName, provider, sectionName, subsections, provider)
}

// ResourceID is the deterministic id of the n-th (1-based) resource of a section.
func ResourceID(sectionID string, n int) string {
	return fmt.Sprintf("%s-snippet-%d", sectionID, n)
}

// Collect runs the section query and normalizes the results. Search failures
// are returned as *CollectionError and are not recovered here.
func (c *Collector) Collect(ctx context.Context, model catalog.Model, section rubric.Section) ([]models.Resource, error) {
	req := perplexity.Request{
		Query:            BuildQuery(model.Name, model.Provider, section.Name, section.SubsectionNames()),
		MaxResults:       c.maxResults,
		MaxTokensPerPage: c.maxTokensPerPage,
	}
	cacheKey := utils.HashParts(req.Query, fmt.Sprint(req.MaxResults), fmt.Sprint(req.MaxTokensPerPage))

	if results, ok := c.cached(ctx, cacheKey); ok {
		metrics.SearchRequests.WithLabelValues("cache_hit").Inc()
		return normalize(section.ID, results), nil
	}

	c.recorder.Record(runlog.ServiceSearch, runlog.KindRequest, map[string]any{
		"query":               req.Query,
		"max_results":         req.MaxResults,
		"max_tokens_per_page": req.MaxTokensPerPage,
	})

	start := time.Now()
	resp, err := c.searcher.Search(ctx, req)
	metrics.StageDuration.WithLabelValues("collect").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, &CollectionError{Model: model.Name, Section: section.ID, Err: err}
	}
	metrics.SearchRequests.WithLabelValues("success").Inc()
	metrics.SearchResultsCount.Observe(float64(len(resp.Results)))

	summaries := make([]map[string]any, len(resp.Results))
	for i, r := range resp.Results {
		summaries[i] = map[string]any{
			"title":         r.Title,
			"url":           r.URL,
			"snippetLength": len(r.Snippet),
		}
	}
	c.recorder.Record(runlog.ServiceSearch, runlog.KindResponse, map[string]any{
		"resultsCount": len(resp.Results),
		"results":      summaries,
	})

	if c.cache != nil {
		if err := c.cache.SetSearch(ctx, cacheKey, resp.Results); err != nil {
			logger.Warn("Failed to cache search results", zap.Error(err))
		}
	}

	logger.Info("Resources collected",
		zap.String("model", model.Name),
		zap.String("section", section.ID),
		zap.Int("results", len(resp.Results)),
	)

	return normalize(section.ID, resp.Results), nil
}

func (c *Collector) cached(ctx context.Context, key string) ([]perplexity.Result, bool) {
	if c.cache == nil {
		return nil, false
	}
	results, ok, err := c.cache.GetSearch(ctx, key)
	if err != nil {
		logger.Warn("Search cache lookup failed", zap.Error(err))
		return nil, false
	}
	return results, ok
}

func normalize(sectionID string, results []perplexity.Result) []models.Resource {
	resources := make([]models.Resource, len(results))
	for i, r := range results {
		resources[i] = models.Resource{
			ID:      ResourceID(sectionID, i+1),
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		}
	}
	return resources
}
