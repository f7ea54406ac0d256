package vendors

import (
	"context"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchWorkers bounds ScoreBatch parallelism when no limit is given.
const DefaultBatchWorkers = 8

// Scorer computes vendor risk scores from rule tables. It holds no mutable state and
// is safe for concurrent use.
type Scorer struct {
	rules           Rules
	feedRules       FeedRules
	recommendations RecommendationRules
	clock           clockwork.Clock
}

// NewScorer creates a scorer. A nil clock uses the real clock.
func NewScorer(rules Rules, feedRules FeedRules, recommendations RecommendationRules, clock clockwork.Clock) *Scorer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scorer{
		rules:           rules,
		feedRules:       feedRules,
		recommendations: recommendations,
		clock:           clock,
	}
}

// NewDefaultScorer creates a scorer with the standard rule tables.
func NewDefaultScorer(clock clockwork.Clock) *Scorer {
	return NewScorer(DefaultRules(), DefaultFeedRules(), DefaultRecommendationRules(), clock)
}

// ScoreVendor scores v at the current time. feed may be nil.
func (s *Scorer) ScoreVendor(v domain.VendorProfile, feed *domain.FeedData) domain.VendorRiskScore {
	return s.ScoreVendorAt(v, feed, s.clock.Now())
}

// ScoreVendorAt scores v as of now. It never fails: unexpected input contributes nothing.
func (s *Scorer) ScoreVendorAt(v domain.VendorProfile, feed *domain.FeedData, now time.Time) domain.VendorRiskScore {
	days := countDays(v, now)
	factors := s.rules.factors(v, days)

	base := s.rules.Clamp(1 + factors.Sum())
	final, fired := s.feedRules.Enhance(base, feed)
	final = s.rules.Clamp(final)

	signals := make([]string, 0, len(fired))
	for _, c := range fired {
		signals = append(signals, string(c))
	}

	return domain.VendorRiskScore{
		VendorID:    v.ID,
		BaseScore:   base,
		RiskScore:   final,
		RiskLevel:   s.rules.Level(final),
		Factors:     factors,
		FeedSignals: signals,
		Recommendations: s.recommendations.Generate(RecommendationInput{
			Vendor:          v,
			Factors:         factors,
			Feed:            fired,
			SinceAssessment: days.sinceAssessment,
			UntilContract:   days.untilContract,
			UntilSLA:        days.untilSLA,
		}),
	}
}

// VendorInput pairs a vendor with its optional feed data.
type VendorInput struct {
	Vendor domain.VendorProfile
	Feed   *domain.FeedData
}

// ScoreBatch scores inputs in parallel with at most workers goroutines. Results are
// aligned with inputs. All vendors are scored against the same instant.
func (s *Scorer) ScoreBatch(ctx context.Context, inputs []VendorInput, workers int) ([]domain.VendorRiskScore, error) {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}

	now := s.clock.Now()
	results := make([]domain.VendorRiskScore, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.ScoreVendorAt(in.Vendor, in.Feed, now)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
