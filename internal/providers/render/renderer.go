// Package render talks to the external post-production service that
// measures image quality and applies corrective effects.
package render

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"thumbforge/internal/domain"
)

type Renderer interface {
	// Probe measures the image and returns whatever metrics the
	// renderer could observe; partial sets are normal.
	Probe(ctx context.Context, imageURL string) (domain.MetricSet, error)
	// Apply runs the plan against the image and returns the processed
	// asset URL.
	Apply(ctx context.Context, imageURL string, plan domain.PostProductionPlan) (string, error)
}

// Error distinguishes a renderer that answered badly from one that
// could not be reached at all. Unreachable failures are fatal to the
// pipeline; everything else degrades.
type Error struct {
	Unreachable bool
	Err         error
}

func (e *Error) Error() string {
	if e.Unreachable {
		return fmt.Sprintf("render: unreachable: %v", e.Err)
	}
	return fmt.Sprintf("render: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnreachable reports whether err marks the renderer as unreachable.
func IsUnreachable(err error) bool {
	var renderErr *Error
	return errors.As(err, &renderErr) && renderErr.Unreachable
}

// StaticRenderer is the offline fallback: metrics are derived from the
// URL hash (stable per asset, spread across [35,95]) and Apply encodes
// the effect list into an fx query parameter instead of re-rendering.
type StaticRenderer struct{}

func NewStaticRenderer() *StaticRenderer {
	return &StaticRenderer{}
}

func (s *StaticRenderer) Probe(ctx context.Context, imageURL string) (domain.MetricSet, error) {
	sum := sha256.Sum256([]byte(imageURL))
	metrics := make(domain.MetricSet, len(domain.KnownMetrics()))
	for i, metric := range domain.KnownMetrics() {
		metrics[metric] = math.Round(35 + float64(sum[i])*60/255)
	}
	return metrics, nil
}

func (s *StaticRenderer) Apply(ctx context.Context, imageURL string, plan domain.PostProductionPlan) (string, error) {
	effects := plan.Effects()
	if len(effects) == 0 {
		return imageURL, nil
	}
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("parse image url: %w", err)}
	}
	q := parsed.Query()
	q.Set("fx", strings.Join(effects, ","))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

var _ Renderer = (*StaticRenderer)(nil)
