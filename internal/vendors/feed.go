package vendors

import (
	"math"

	"github.com/bissquit/oprisk/internal/domain"
)

// Enhance applies feed adjustments to base and returns the new score together with the
// categories that fired. The result is never below base and never above MaxScore.
// A nil feed returns base unchanged. NaN, infinite and out-of-range values are ignored.
func (r FeedRules) Enhance(base float64, feed *domain.FeedData) (float64, []FeedCategory) {
	if feed == nil {
		return base, nil
	}

	var total float64
	var fired []FeedCategory

	for _, rule := range r.Rules {
		v := rule.Value(*feed)
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < rule.Min || *v > rule.Max {
			continue
		}
		for _, tier := range rule.Tiers {
			if tier.matches(*v) {
				total += tier.Adjustment
				fired = append(fired, rule.Category)
				break
			}
		}
	}

	if total <= 0 {
		return base, fired
	}
	return math.Max(base, math.Min(r.MaxScore, base+total)), fired
}
