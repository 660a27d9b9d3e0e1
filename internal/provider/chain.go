package provider

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ledgerline/statements/internal/domain"
)

// Chain tries extractors in priority order and short-circuits on the first
// success. When every backend fails, it returns a single ProviderError
// listing each backend's categorized failure.
type Chain struct {
	extractors []Extractor
	log        zerolog.Logger
}

// NewChain builds a fallback chain over the given extractors, in order.
func NewChain(log zerolog.Logger, extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors, log: log}
}

// Name implements Extractor.
func (c *Chain) Name() string { return "chain" }

// Extract implements Extractor.
func (c *Chain) Extract(ctx context.Context, req ExtractRequest) (*StatementExtraction, error) {
	if len(c.extractors) == 0 {
		return nil, &domain.ProviderError{}
	}

	var failures []domain.ProviderFailure
	for _, e := range c.extractors {
		result, err := e.Extract(ctx, req)
		if err == nil {
			return result, nil
		}

		failure := domain.ProviderFailure{
			Provider: e.Name(),
			Category: domain.FailureUnknown,
			Err:      err,
		}
		var f *Failure
		if errors.As(err, &f) {
			failure.Category = f.Category
			failure.Err = f.Err
		}
		failures = append(failures, failure)

		c.log.Warn().
			Str("provider", e.Name()).
			Str("category", string(failure.Category)).
			Err(failure.Err).
			Msg("Extraction provider failed, trying next")
	}

	return nil, &domain.ProviderError{Failures: failures}
}

var _ Extractor = (*Chain)(nil)
