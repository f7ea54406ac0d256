package vendors

import (
	"reflect"
	"slices"
	"testing"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type vendorCase struct {
	Criticality     domain.Criticality
	Status          domain.VendorStatus
	SinceAssessment *int
	UntilContract   *int
	UntilSLA        *int
	Credit          *float64
	Cyber           *float64
	Sentiment       *float64
}

func (c vendorCase) vendor() domain.VendorProfile {
	v := domain.VendorProfile{ID: "v", Criticality: c.Criticality, Status: c.Status}
	if c.SinceAssessment != nil {
		v.LastAssessmentDate = daysAgo(float64(*c.SinceAssessment))
	}
	if c.UntilContract != nil {
		v.ContractEndDate = daysAhead(float64(*c.UntilContract))
	}
	if c.UntilSLA != nil {
		v.SLAExpiryDate = daysAhead(float64(*c.UntilSLA))
	}
	return v
}

func (c vendorCase) feed() *domain.FeedData {
	if c.Credit == nil && c.Cyber == nil && c.Sentiment == nil {
		return nil
	}
	return &domain.FeedData{CreditRating: c.Credit, CyberRiskScore: c.Cyber, SentimentScore: c.Sentiment}
}

func genVendorCase() gopter.Gen {
	return gen.Struct(reflect.TypeOf(vendorCase{}), map[string]gopter.Gen{
		"Criticality": gen.OneConstOf(
			domain.CriticalityCritical, domain.CriticalityHigh,
			domain.CriticalityMedium, domain.CriticalityLow,
		),
		"Status": gen.OneConstOf(
			domain.VendorStatusActive, domain.VendorStatusInactive,
			domain.VendorStatusUnderReview, domain.VendorStatusTerminated,
		),
		"SinceAssessment": gen.PtrOf(gen.IntRange(-30, 800)),
		"UntilContract":   gen.PtrOf(gen.IntRange(-60, 400)),
		"UntilSLA":        gen.PtrOf(gen.IntRange(-60, 400)),
		"Credit":          gen.PtrOf(gen.Float64Range(-10, 110)),
		"Cyber":           gen.PtrOf(gen.Float64Range(-10, 110)),
		"Sentiment":       gen.PtrOf(gen.Float64Range(-1.2, 1.2)),
	})
}

func scoringProperties(t *testing.T) *gopter.Properties {
	t.Helper()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	return gopter.NewProperties(parameters)
}

func TestScoreVendor_Properties(t *testing.T) {
	scorer := newTestScorer()
	rules := DefaultRules()
	properties := scoringProperties(t)

	properties.Property("scores stay within bounds", prop.ForAll(
		func(c vendorCase) bool {
			s := scorer.ScoreVendorAt(c.vendor(), c.feed(), now)
			return s.BaseScore >= 1 && s.BaseScore <= 5 &&
				s.RiskScore >= 1 && s.RiskScore <= 5 &&
				s.RiskScore >= s.BaseScore
		},
		genVendorCase(),
	))

	properties.Property("level matches the final score", prop.ForAll(
		func(c vendorCase) bool {
			s := scorer.ScoreVendorAt(c.vendor(), c.feed(), now)
			return s.RiskLevel == rules.Level(s.RiskScore)
		},
		genVendorCase(),
	))

	properties.Property("recommendations end with the disclaimer", prop.ForAll(
		func(c vendorCase) bool {
			recs := scorer.ScoreVendorAt(c.vendor(), c.feed(), now).Recommendations
			return len(recs) >= 2 && recs[len(recs)-1] == MsgDisclaimer &&
				!slices.Contains(recs[:len(recs)-1], MsgDisclaimer)
		},
		genVendorCase(),
	))

	properties.Property("scoring is deterministic", prop.ForAll(
		func(c vendorCase) bool {
			first := scorer.ScoreVendorAt(c.vendor(), c.feed(), now)
			second := scorer.ScoreVendorAt(c.vendor(), c.feed(), now)
			return reflect.DeepEqual(first, second)
		},
		genVendorCase(),
	))

	properties.Property("feed data never lowers the score", prop.ForAll(
		func(c vendorCase) bool {
			without := scorer.ScoreVendorAt(c.vendor(), nil, now)
			with := scorer.ScoreVendorAt(c.vendor(), c.feed(), now)
			return with.BaseScore == without.BaseScore && with.RiskScore >= without.RiskScore
		},
		genVendorCase(),
	))

	properties.Property("higher criticality never lowers the base score", prop.ForAll(
		func(c vendorCase) bool {
			order := []domain.Criticality{
				domain.CriticalityLow, domain.CriticalityMedium,
				domain.CriticalityHigh, domain.CriticalityCritical,
			}
			previous := 0.0
			for _, criticality := range order {
				c.Criticality = criticality
				base := scorer.ScoreVendorAt(c.vendor(), nil, now).BaseScore
				if base < previous {
					return false
				}
				previous = base
			}
			return true
		},
		genVendorCase(),
	))

	properties.TestingRun(t)
}
