package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Pipeline struct {
	fetcher   Fetcher
	extractor *Extractor
	timeout   time.Duration
	now       func() time.Time
	runID     uuid.UUID
	logger    *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithFetchTimeout bounds each single fetch. Zero keeps DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func WithRunID(id uuid.UUID) PipelineOption {
	return func(p *Pipeline) { p.runID = id }
}

func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPipeline(f Fetcher, e *Extractor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher:   f,
		extractor: e,
		timeout:   DefaultFetchTimeout,
		now:       time.Now,
		runID:     uuid.New(),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) RunID() uuid.UUID {
	return p.runID
}

// Process checks every product once, in order. A product whose page can't be
// fetched is skipped; a product whose page has no usable price is recorded
// with an invalid price. The returned count is the number of products that
// produced an observation.
func (p *Pipeline) Process(ctx context.Context, products []TrackedProduct) (ObservationSet, int) {
	var set ObservationSet

	for _, product := range products {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run cancelled, remaining products not checked", "error", err)
			break
		}

		p.logger.Debug("visiting", "url", product.URL)
		markup, err := p.fetch(ctx, product.URL)
		if err != nil {
			p.logger.Warn("no response, skipping product", "product", product.Name, "url", product.URL, "error", err)
			continue
		}

		var price Price
		if amount, err := p.extractor.Lookup(markup); err != nil {
			p.logger.Info("no usable price", "product", product.Name, "url", product.URL, "reason", err)
		} else {
			price = PriceOf(amount)
		}

		o := NewObservation(product, price, p.now(), p.runID)
		set.add(o)
		p.logger.Debug("observation",
			"product", product.Name,
			"url", product.URL,
			"price", o.Price.String(),
			"alert_price", product.AlertPrice.String(),
			"alert", o.AlertTriggered,
		)
	}

	p.logger.Info("updated products", "count", set.Len(), "tracked", len(products))
	return set, set.Len()
}

func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.fetcher.Fetch(ctx, url)
}
