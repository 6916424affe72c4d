package domain

// Metric names a measurable image quality dimension on a 0-100 scale.
type Metric string

const (
	MetricBrightness  Metric = "brightness"
	MetricContrast    Metric = "contrast"
	MetricSaturation  Metric = "saturation"
	MetricSharpness   Metric = "sharpness"
	MetricComposition Metric = "composition"
)

// KnownMetrics lists every metric in canonical order.
func KnownMetrics() []Metric {
	return []Metric{
		MetricBrightness,
		MetricContrast,
		MetricSaturation,
		MetricSharpness,
		MetricComposition,
	}
}

// MetricSet holds measured values keyed by metric. A missing key means
// the metric was not measured; it is excluded from aggregation rather
// than counted as zero.
type MetricSet map[Metric]float64

// QualityAssessment is the verdict on a synthesized image.
type QualityAssessment struct {
	Metrics         MetricSet `json:"metrics,omitempty"`
	OverallScore    float64   `json:"overallScore"`
	IsValid         bool      `json:"isValid"`
	Issues          []string  `json:"issues,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// PostProductionPlan selects the finishing effects applied after
// synthesis. Numeric magnitudes are normalized to [0,1]; zero disables
// the effect.
type PostProductionPlan struct {
	Vignette       bool    `json:"vignette"`
	Grain          bool    `json:"grain"`
	ContrastBoost  float64 `json:"contrastBoost,omitempty"`
	BrightnessLift float64 `json:"brightnessLift,omitempty"`
	SaturationGain float64 `json:"saturationGain,omitempty"`
	SharpenAmount  float64 `json:"sharpenAmount,omitempty"`
}

// Effects lists the enabled effect names in application order.
func (p PostProductionPlan) Effects() []string {
	var fx []string
	if p.ContrastBoost > 0 {
		fx = append(fx, "contrast-boost")
	}
	if p.BrightnessLift > 0 {
		fx = append(fx, "brightness-lift")
	}
	if p.SaturationGain > 0 {
		fx = append(fx, "saturation-gain")
	}
	if p.SharpenAmount > 0 {
		fx = append(fx, "unsharp-mask")
	}
	if p.Vignette {
		fx = append(fx, "vignette")
	}
	if p.Grain {
		fx = append(fx, "film-grain")
	}
	return fx
}
