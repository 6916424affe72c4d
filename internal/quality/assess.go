// Package quality turns observed image metrics into a verdict and a
// corrective post-production plan. Everything here is pure: the same
// metrics always produce the same assessment and plan.
package quality

import (
	"thumbforge/internal/domain"
)

const passingScore = 60

// floorRule pairs a metric with the value below which the image is
// considered defective on that dimension.
type floorRule struct {
	metric         domain.Metric
	floor          float64
	issue          string
	recommendation string
}

var floorRules = []floorRule{
	{domain.MetricBrightness, 40, "image too dark", "increase exposure or lift shadows"},
	{domain.MetricContrast, 30, "contrast too flat", "boost contrast"},
	{domain.MetricSaturation, 30, "colors washed out", "raise saturation"},
	{domain.MetricSharpness, 50, "image too soft", "apply sharpening"},
	{domain.MetricComposition, 50, "weak composition", "reframe toward the rule of thirds"},
}

// FloorFor returns the low-quality threshold for a metric.
func FloorFor(metric domain.Metric) (float64, bool) {
	for _, rule := range floorRules {
		if rule.metric == metric {
			return rule.floor, true
		}
	}
	return 0, false
}

// Assess scores whatever metrics were actually measured. Missing
// metrics are excluded from the mean, never counted as zero. The
// result is valid exactly when the mean reaches the passing score;
// floor violations surface as issues and recommendations and drive
// the corrective plan, but they do not veto validity on their own.
func Assess(metrics domain.MetricSet) domain.QualityAssessment {
	assessment := domain.QualityAssessment{Metrics: metrics}
	if len(metrics) == 0 {
		assessment.Issues = append(assessment.Issues, "no metrics available")
		assessment.Recommendations = append(assessment.Recommendations, "probe the image before assessing quality")
		return assessment
	}

	var sum float64
	for _, v := range metrics {
		sum += v
	}
	assessment.OverallScore = sum / float64(len(metrics))

	for _, rule := range floorRules {
		v, ok := metrics[rule.metric]
		if !ok || v >= rule.floor {
			continue
		}
		assessment.Issues = append(assessment.Issues, rule.issue)
		assessment.Recommendations = append(assessment.Recommendations, rule.recommendation)
	}
	if assessment.OverallScore < passingScore {
		assessment.Issues = append(assessment.Issues, "overall quality below threshold")
		assessment.Recommendations = append(assessment.Recommendations, "regenerate or apply corrective effects")
	}

	assessment.IsValid = assessment.OverallScore >= passingScore
	return assessment
}
