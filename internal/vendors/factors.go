package vendors

import (
	"math"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
)

const day = 24 * time.Hour

// vendorDays holds the day counts the rules look at. Nil means the date is unknown.
type vendorDays struct {
	sinceAssessment *int
	untilContract   *int
	untilSLA        *int
}

func countDays(v domain.VendorProfile, now time.Time) vendorDays {
	var d vendorDays
	if v.LastAssessmentDate != nil {
		n := int(math.Floor(float64(now.Sub(*v.LastAssessmentDate)) / float64(day)))
		d.sinceAssessment = &n
	}
	if v.ContractEndDate != nil {
		n := daysUntil(*v.ContractEndDate, now)
		d.untilContract = &n
	}
	if v.SLAExpiryDate != nil {
		n := daysUntil(*v.SLAExpiryDate, now)
		d.untilSLA = &n
	}
	return d
}

func daysUntil(date, now time.Time) int {
	return int(math.Ceil(float64(date.Sub(now)) / float64(day)))
}

// Factors computes the five factor contributions for v at now. An assessment dated
// in the future contributes nothing; contract and SLA dates already passed count as
// expiring.
func (r Rules) Factors(v domain.VendorProfile, now time.Time) domain.FactorBreakdown {
	return r.factors(v, countDays(v, now))
}

func (r Rules) factors(v domain.VendorProfile, d vendorDays) domain.FactorBreakdown {
	f := domain.FactorBreakdown{
		Criticality: r.CriticalityWeights[v.Criticality],
		Status:      r.StatusWeights[v.Status],
	}

	switch {
	case d.sinceAssessment == nil:
		f.Assessment = r.MissingAssessmentWeight
		f.AssessmentMissing = true
	case *d.sinceAssessment >= 0:
		f.Assessment = overTier(r.StalenessTiers, *d.sinceAssessment)
	}

	if d.untilContract != nil {
		f.Contract = withinTier(r.ContractTiers, *d.untilContract)
	}
	if d.untilSLA != nil {
		f.SLA = withinTier(r.SLATiers, *d.untilSLA)
	}

	return f
}
