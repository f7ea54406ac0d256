package vendors

import (
	"fmt"
	"slices"

	"github.com/bissquit/oprisk/internal/domain"
)

// Recommendation messages.
const (
	MsgAssessmentMissing  = "No risk assessment on record - schedule an initial assessment immediately"
	MsgAssessmentOverdue  = "Assessment overdue by more than 1 year - schedule an urgent reassessment"
	MsgAssessmentStale    = "Assessment older than 6 months - plan a reassessment"
	MsgContractUrgent     = "Contract expires within 30 days - initiate renewal or exit planning urgently"
	MsgContractSoon       = "Contract expires within 90 days - begin renewal review"
	MsgSLAExpiring        = "SLA expires within 30 days - renegotiate or renew service levels"
	MsgStatusFlagged      = "Vendor status is flagged (%s) - review the relationship and access"
	MsgCriticalMonitoring = "Critical vendor — ensure regular assessments are scheduled"
	MsgFeedCredit         = "Credit rating indicates elevated financial risk - review financial stability (OCC 2023-17 third-party risk guidance)"
	MsgFeedCyber          = "Cyber risk score indicates elevated security exposure - review security posture (FFIEC CAT cybersecurity guidance)"
	MsgFeedSentiment      = "Negative market sentiment detected - review reputational risk (OCC 2023-17 third-party risk guidance)"
	MsgWellManaged        = "Vendor risk is well managed - continue monitoring"
	MsgDisclaimer         = "This assessment is for informational purposes only and does not constitute regulatory or legal advice."
)

const (
	staleAssessmentDays   = 180
	overdueAssessmentDays = 365
	urgentContractDays    = 30
	advisoryContractDays  = 90
	expiringSLADays       = 30
)

// RecommendationInput is what recommendation rules match against.
type RecommendationInput struct {
	Vendor  domain.VendorProfile
	Factors domain.FactorBreakdown
	Feed    []FeedCategory

	SinceAssessment *int
	UntilContract   *int
	UntilSLA        *int
}

// RecommendationRule appends Message when Match holds. Within one Group only the first
// matching rule fires. Render, when set, builds the message instead of Message.
type RecommendationRule struct {
	Group   string
	Match   func(RecommendationInput) bool
	Message string
	Render  func(RecommendationInput) string
}

// RecommendationRules is the ordered recommendation table. Fallback is used when no
// rule fires; Disclaimer is always appended last.
type RecommendationRules struct {
	Rules      []RecommendationRule
	Fallback   string
	Disclaimer string
}

// DefaultRecommendationRules returns the standard recommendation table.
func DefaultRecommendationRules() RecommendationRules {
	return RecommendationRules{
		Rules: []RecommendationRule{
			{
				Group:   "assessment",
				Match:   func(in RecommendationInput) bool { return in.SinceAssessment == nil },
				Message: MsgAssessmentMissing,
			},
			{
				Group:   "assessment",
				Match:   func(in RecommendationInput) bool { return daysOver(in.SinceAssessment, overdueAssessmentDays) },
				Message: MsgAssessmentOverdue,
			},
			{
				Group:   "assessment",
				Match:   func(in RecommendationInput) bool { return daysOver(in.SinceAssessment, staleAssessmentDays) },
				Message: MsgAssessmentStale,
			},
			{
				Group:   "contract",
				Match:   func(in RecommendationInput) bool { return daysWithin(in.UntilContract, urgentContractDays) },
				Message: MsgContractUrgent,
			},
			{
				Group:   "contract",
				Match:   func(in RecommendationInput) bool { return daysWithin(in.UntilContract, advisoryContractDays) },
				Message: MsgContractSoon,
			},
			{
				Group:   "sla",
				Match:   func(in RecommendationInput) bool { return daysWithin(in.UntilSLA, expiringSLADays) },
				Message: MsgSLAExpiring,
			},
			{
				Group: "status",
				Match: func(in RecommendationInput) bool { return in.Vendor.Status.IsFlagged() },
				Render: func(in RecommendationInput) string {
					return fmt.Sprintf(MsgStatusFlagged, in.Vendor.Status)
				},
			},
			{
				// Only a dated assessment older than six months suppresses this one.
				Group: "critical",
				Match: func(in RecommendationInput) bool {
					return in.Vendor.Criticality == domain.CriticalityCritical &&
						!daysOver(in.SinceAssessment, staleAssessmentDays)
				},
				Message: MsgCriticalMonitoring,
			},
			feedRule(FeedCategoryCredit, MsgFeedCredit),
			feedRule(FeedCategoryCyber, MsgFeedCyber),
			feedRule(FeedCategorySentiment, MsgFeedSentiment),
		},
		Fallback:   MsgWellManaged,
		Disclaimer: MsgDisclaimer,
	}
}

func feedRule(category FeedCategory, message string) RecommendationRule {
	return RecommendationRule{
		Group:   "feed_" + string(category),
		Match:   func(in RecommendationInput) bool { return slices.Contains(in.Feed, category) },
		Message: message,
	}
}

func daysOver(days *int, limit int) bool {
	return days != nil && *days > limit
}

func daysWithin(days *int, limit int) bool {
	return days != nil && *days <= limit
}

// Generate returns the recommendations for in. The list is never empty and always ends
// with the disclaimer.
func (r RecommendationRules) Generate(in RecommendationInput) []string {
	out := make([]string, 0, 4)
	fired := make(map[string]bool)

	for _, rule := range r.Rules {
		if fired[rule.Group] || !rule.Match(in) {
			continue
		}
		fired[rule.Group] = true

		if rule.Render != nil {
			out = append(out, rule.Render(in))
		} else {
			out = append(out, rule.Message)
		}
	}

	if len(out) == 0 {
		out = append(out, r.Fallback)
	}
	return append(out, r.Disclaimer)
}
