package correlation

import "github.com/seenimoa/diligenceops/pkg/models"

// DefaultComposite stands in for the risk score when no assessment exists.
const DefaultComposite = 2.5

// Composite thresholds for the recommendation.
const (
	doNotProceedScore   = 4.5
	withConditionsScore = 3.5
)

// Recommend derives the deal recommendation. Any Critical flag forces
// DO_NOT_PROCEED regardless of the composite score.
func Recommend(flags []models.CrossWorkstreamFlag, risk *models.RiskAssessment) string {
	composite := DefaultComposite
	if risk != nil {
		composite = risk.CompositeScore
	}
	var critical, high bool
	for _, f := range flags {
		switch f.Severity {
		case models.SeverityCritical:
			critical = true
		case models.SeverityHigh:
			high = true
		}
	}
	switch {
	case critical || composite >= doNotProceedScore:
		return models.RecommendDoNotProceed
	case high || composite >= withConditionsScore:
		return models.RecommendWithConditions
	default:
		return models.RecommendProceed
	}
}

// Count returns the number of flags with the given severity.
func Count(flags []models.CrossWorkstreamFlag, severity string) int {
	n := 0
	for _, f := range flags {
		if f.Severity == severity {
			n++
		}
	}
	return n
}
