// Package vendors implements vendor risk scoring: factor calculation, feed enhancement
// and recommendation generation.
package vendors

import (
	"math"

	"github.com/bissquit/oprisk/internal/domain"
)

// Tier adds Weight when a day count crosses Days. Whether "crosses" means "more than"
// or "at most" depends on the table the tier belongs to.
type Tier struct {
	Days   int
	Weight float64
}

// LevelCut maps scores up to and including Max to Level.
type LevelCut struct {
	Max   float64
	Level domain.RiskLevel
}

// Rules is the base-score rule table. Tier slices are ordered and the first matching
// tier wins.
type Rules struct {
	CriticalityWeights map[domain.Criticality]float64
	StatusWeights      map[domain.VendorStatus]float64

	MissingAssessmentWeight float64
	// StalenessTiers match when days since the last assessment exceed Days.
	StalenessTiers []Tier
	// ContractTiers and SLATiers match when days until expiry are at most Days.
	ContractTiers []Tier
	SLATiers      []Tier

	MinScore float64
	MaxScore float64

	// Levels are ascending; scores above the last cut get TopLevel.
	Levels   []LevelCut
	TopLevel domain.RiskLevel
}

// DefaultRules returns the standard vendor scoring table.
func DefaultRules() Rules {
	return Rules{
		CriticalityWeights: map[domain.Criticality]float64{
			domain.CriticalityCritical: 2,
			domain.CriticalityHigh:     1,
			domain.CriticalityMedium:   0,
			domain.CriticalityLow:      -1,
		},
		StatusWeights: map[domain.VendorStatus]float64{
			domain.VendorStatusInactive:    1,
			domain.VendorStatusUnderReview: 1,
			domain.VendorStatusTerminated:  3,
		},
		MissingAssessmentWeight: 2,
		StalenessTiers:          []Tier{{Days: 365, Weight: 2}, {Days: 180, Weight: 1}},
		ContractTiers:           []Tier{{Days: 30, Weight: 2}, {Days: 90, Weight: 1}},
		SLATiers:                []Tier{{Days: 30, Weight: 1}},
		MinScore:                1,
		MaxScore:                5,
		Levels: []LevelCut{
			{Max: 2, Level: domain.RiskLevelLow},
			{Max: 3, Level: domain.RiskLevelMedium},
			{Max: 4, Level: domain.RiskLevelHigh},
		},
		TopLevel: domain.RiskLevelCritical,
	}
}

// Clamp bounds score to [MinScore, MaxScore].
func (r Rules) Clamp(score float64) float64 {
	return math.Max(r.MinScore, math.Min(r.MaxScore, score))
}

// Level classifies a score.
func (r Rules) Level(score float64) domain.RiskLevel {
	for _, cut := range r.Levels {
		if score <= cut.Max {
			return cut.Level
		}
	}
	return r.TopLevel
}

func overTier(tiers []Tier, days int) float64 {
	for _, t := range tiers {
		if days > t.Days {
			return t.Weight
		}
	}
	return 0
}

func withinTier(tiers []Tier, days int) float64 {
	for _, t := range tiers {
		if days <= t.Days {
			return t.Weight
		}
	}
	return 0
}

// FeedCategory names a feed signal dimension.
type FeedCategory string

// Feed categories in evaluation order.
const (
	FeedCategoryCredit    FeedCategory = "credit"
	FeedCategoryCyber     FeedCategory = "cyber"
	FeedCategorySentiment FeedCategory = "sentiment"
)

// FeedTier adds Adjustment when the value is below Threshold (Below) or above it.
type FeedTier struct {
	Threshold  float64
	Below      bool
	Adjustment float64
}

func (t FeedTier) matches(v float64) bool {
	if t.Below {
		return v < t.Threshold
	}
	return v > t.Threshold
}

// FeedRule scores one feed category. Values outside [Min, Max] are ignored.
type FeedRule struct {
	Category FeedCategory
	Value    func(domain.FeedData) *float64
	Min      float64
	Max      float64
	Tiers    []FeedTier
}

// FeedRules is the ordered feed enhancement table.
type FeedRules struct {
	Rules    []FeedRule
	MaxScore float64
}

// DefaultFeedRules returns the standard feed enhancement table.
func DefaultFeedRules() FeedRules {
	return FeedRules{
		Rules: []FeedRule{
			{
				Category: FeedCategoryCredit,
				Value:    func(f domain.FeedData) *float64 { return f.CreditRating },
				Min:      0,
				Max:      100,
				Tiers: []FeedTier{
					{Threshold: 50, Below: true, Adjustment: 1.5},
					{Threshold: 70, Below: true, Adjustment: 0.5},
				},
			},
			{
				Category: FeedCategoryCyber,
				Value:    func(f domain.FeedData) *float64 { return f.CyberRiskScore },
				Min:      0,
				Max:      100,
				Tiers: []FeedTier{
					{Threshold: 85, Adjustment: 1.0},
					{Threshold: 70, Adjustment: 0.5},
				},
			},
			{
				Category: FeedCategorySentiment,
				Value:    func(f domain.FeedData) *float64 { return f.SentimentScore },
				Min:      -1,
				Max:      1,
				Tiers: []FeedTier{
					{Threshold: -0.7, Below: true, Adjustment: 0.8},
					{Threshold: -0.5, Below: true, Adjustment: 0.3},
				},
			},
		},
		MaxScore: 5,
	}
}
