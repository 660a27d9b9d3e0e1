package domain

import (
	"fmt"
	"strings"
)

// ParseError reports input that could not be turned into transactions: an
// unparseable date or amount, an undetectable column mapping, or a file that
// yielded nothing.
type ParseError struct {
	Reason string
	Value  string // the offending input, when there is one
}

func (e *ParseError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %q", e.Reason, e.Value)
	}
	return e.Reason
}

// NewParseError builds a ParseError with the offending value attached.
func NewParseError(reason, value string) *ParseError {
	return &ParseError{Reason: reason, Value: value}
}

// FailureCategory classifies an extraction-provider failure so the caller
// can render an actionable message.
type FailureCategory string

const (
	FailureAuth         FailureCategory = "authentication"
	FailureRateLimit    FailureCategory = "rate-limit"
	FailureQuota        FailureCategory = "quota"
	FailureModelInvalid FailureCategory = "model-invalid"
	FailureUnknown      FailureCategory = "unknown"
)

// ProviderFailure is one provider's categorized failure within a fallback
// sequence.
type ProviderFailure struct {
	Provider string
	Category FailureCategory
	Err      error
}

func (f ProviderFailure) String() string {
	return fmt.Sprintf("%s (%s): %v", f.Provider, f.Category, f.Err)
}

// ProviderError aggregates the failures of every configured provider. It is
// only returned when no provider succeeded.
type ProviderError struct {
	Failures []ProviderFailure
}

func (e *ProviderError) Error() string {
	if len(e.Failures) == 0 {
		return "no extraction providers configured"
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return "all extraction providers failed: " + strings.Join(parts, "; ")
}

// ImportError wraps any failure during the atomic import commit. The commit
// rolls back fully; no records exist after an ImportError.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed: %v", e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
