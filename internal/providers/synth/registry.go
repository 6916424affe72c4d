package synth

import "thumbforge/internal/domain"

// Registry routes a request's model to its synthesizer. Models without
// a registration use the fallback.
type Registry struct {
	byModel  map[domain.Model]Synthesizer
	fallback Synthesizer
}

func NewRegistry(fallback Synthesizer) *Registry {
	return &Registry{
		byModel:  make(map[domain.Model]Synthesizer),
		fallback: fallback,
	}
}

func (r *Registry) Register(model domain.Model, s Synthesizer) {
	r.byModel[model] = s
}

func (r *Registry) For(model domain.Model) Synthesizer {
	if s, ok := r.byModel[domain.NormalizeModel(string(model))]; ok {
		return s
	}
	return r.fallback
}
