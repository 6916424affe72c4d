package quality

import "thumbforge/internal/domain"

// PlanFor derives the corrective plan from an assessment. The vignette
// and grain polish pass is always enabled; each measured metric below
// its floor enables the matching correction with a magnitude
// proportional to the deficit, clamped to [0,1]. Composition has no
// post-production correction: reframing needs a new synthesis.
func PlanFor(assessment domain.QualityAssessment) domain.PostProductionPlan {
	plan := domain.PostProductionPlan{Vignette: true, Grain: true}
	for _, rule := range floorRules {
		v, ok := assessment.Metrics[rule.metric]
		if !ok || v >= rule.floor {
			continue
		}
		magnitude := clamp01((rule.floor - v) / rule.floor)
		switch rule.metric {
		case domain.MetricBrightness:
			plan.BrightnessLift = magnitude
		case domain.MetricContrast:
			plan.ContrastBoost = magnitude
		case domain.MetricSaturation:
			plan.SaturationGain = magnitude
		case domain.MetricSharpness:
			plan.SharpenAmount = magnitude
		}
	}
	return plan
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
