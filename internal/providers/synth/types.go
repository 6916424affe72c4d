// Package synth is the call boundary to external image-generation
// services. Every failure is reported as an *Error with a FailureKind
// so the retry layer and the pipeline can tell transient from fatal.
package synth

import (
	"context"
	"errors"
	"fmt"
	"net"

	"thumbforge/internal/domain"
)

// ErrMissingAPIKey indicates that a client was configured without credentials.
var ErrMissingAPIKey = errors.New("synth: api key is required")

// Request carries one synthesis attempt. RequestID ties provider logs
// back to the generation record.
type Request struct {
	Prompt         string
	NegativePrompt string
	Model          domain.Model
	RequestID      string
}

// Image is the normalized synthesis result.
type Image struct {
	URL      string
	Width    int
	Height   int
	Provider string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Image, error)
}

// FailureKind classifies a synthesis failure for retry decisions.
type FailureKind string

const (
	FailureRateLimited     FailureKind = "rate_limited"
	FailureTimeout         FailureKind = "timeout"
	FailureContentRejected FailureKind = "content_rejected"
	FailureUnknown         FailureKind = "unknown"
)

// Error wraps a provider failure with its kind.
type Error struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed. Only rate
// limits and timeouts qualify; content rejections and unknown failures
// propagate immediately.
func (e *Error) Retryable() bool {
	return e.Kind == FailureRateLimited || e.Kind == FailureTimeout
}

func newError(provider string, kind FailureKind, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// IsRetryable reports whether err carries a retryable FailureKind.
func IsRetryable(err error) bool {
	var synthErr *Error
	return errors.As(err, &synthErr) && synthErr.Retryable()
}

// transportKind classifies errors returned by an HTTP round trip.
func transportKind(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureUnknown
}
