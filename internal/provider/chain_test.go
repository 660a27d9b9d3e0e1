package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/statements/internal/domain"
)

type stubExtractor struct {
	name   string
	result *StatementExtraction
	err    error
	calls  int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(ctx context.Context, req ExtractRequest) (*StatementExtraction, error) {
	s.calls++
	return s.result, s.err
}

func TestChainFirstSuccessShortCircuits(t *testing.T) {
	first := &stubExtractor{name: "google", result: &StatementExtraction{Currency: "EUR"}}
	second := &stubExtractor{name: "openai", result: &StatementExtraction{}}

	chain := NewChain(zerolog.Nop(), first, second)
	got, err := chain.Extract(context.Background(), ExtractRequest{})
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "later providers must not run after a success")
}

func TestChainFallsThrough(t *testing.T) {
	first := &stubExtractor{
		name: "google",
		err:  newFailure("google", domain.FailureAuth, errors.New("bad key")),
	}
	second := &stubExtractor{name: "ollama", result: &StatementExtraction{BankName: "Metro"}}

	chain := NewChain(zerolog.Nop(), first, second)
	got, err := chain.Extract(context.Background(), ExtractRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Metro", got.BankName)
}

func TestChainAggregatesFailures(t *testing.T) {
	chain := NewChain(zerolog.Nop(),
		&stubExtractor{name: "google", err: newFailure("google", domain.FailureRateLimit, errors.New("429"))},
		&stubExtractor{name: "openai", err: newFailure("openai", domain.FailureQuota, errors.New("insufficient quota"))},
		&stubExtractor{name: "mistral", err: errors.New("connection refused")},
	)

	_, err := chain.Extract(context.Background(), ExtractRequest{})
	require.Error(t, err)

	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Len(t, provErr.Failures, 3)
	assert.Equal(t, domain.FailureRateLimit, provErr.Failures[0].Category)
	assert.Equal(t, domain.FailureQuota, provErr.Failures[1].Category)
	assert.Equal(t, domain.FailureUnknown, provErr.Failures[2].Category)
	assert.Contains(t, err.Error(), "google")
	assert.Contains(t, err.Error(), "mistral")
}

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    domain.FailureCategory
	}{
		{"unauthorized", 401, "invalid api key", domain.FailureAuth},
		{"forbidden", 403, "", domain.FailureAuth},
		{"rate limited", 429, "slow down", domain.FailureRateLimit},
		{"quota exhausted", 429, "you exceeded your current quota", domain.FailureQuota},
		{"model not found", 404, "the model `gpt-9` does not exist", domain.FailureModelInvalid},
		{"model message without status", 0, "unknown model: llava", domain.FailureModelInvalid},
		{"other", 500, "internal", domain.FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categorizeStatus(tt.status, tt.message))
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	raw := "```json\n{\"transactions\": []}\n```"
	assert.Equal(t, `{"transactions": []}`, cleanModelJSON(raw))

	raw = "Here you go: {\"currency\": \"GBP\"} hope that helps"
	assert.Equal(t, `{"currency": "GBP"}`, cleanModelJSON(raw))
}
