package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"thumbforge/internal/domain"
)

const staticProviderName = "static"

// StaticSynthesizer is the no-credentials degraded mode: it derives a
// deterministic asset URL from the request without any network call, so
// the rest of the pipeline stays exercisable in development.
type StaticSynthesizer struct {
	baseURL string
}

func NewStaticSynthesizer(baseURL string) *StaticSynthesizer {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "http://localhost:8080/static"
	}
	return &StaticSynthesizer{baseURL: base}
}

func (s *StaticSynthesizer) Synthesize(ctx context.Context, req Request) (*Image, error) {
	model := domain.NormalizeModel(string(req.Model))
	sum := sha256.Sum256([]byte(string(model) + "|" + req.Prompt))
	name := hex.EncodeToString(sum[:8])
	url := fmt.Sprintf("%s/%s-%s.png", s.baseURL, model, name)
	return &Image{URL: url, Width: 1280, Height: 720, Provider: staticProviderName}, nil
}

var _ Synthesizer = (*StaticSynthesizer)(nil)
