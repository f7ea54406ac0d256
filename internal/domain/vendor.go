package domain

import "time"

// Criticality is the ordinal importance of a vendor.
type Criticality string

// Criticality levels.
const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// VendorStatus is the relationship status of a vendor.
type VendorStatus string

// Vendor statuses.
const (
	VendorStatusActive      VendorStatus = "active"
	VendorStatusInactive    VendorStatus = "inactive"
	VendorStatusUnderReview VendorStatus = "under_review"
	VendorStatusTerminated  VendorStatus = "terminated"
)

// IsFlagged reports whether the status requires a relationship review.
func (s VendorStatus) IsFlagged() bool {
	return s == VendorStatusInactive || s == VendorStatusUnderReview || s == VendorStatusTerminated
}

// VendorProfile holds the vendor attributes that drive risk scoring.
type VendorProfile struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Criticality        Criticality  `json:"criticality"`
	Status             VendorStatus `json:"status"`
	LastAssessmentDate *time.Time   `json:"last_assessment_date,omitempty"`
	ContractEndDate    *time.Time   `json:"contract_end_date,omitempty"`
	SLAExpiryDate      *time.Time   `json:"sla_expiry_date,omitempty"`
}

// RiskLevel is the bucketed classification of a risk score.
type RiskLevel string

// Risk levels.
const (
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelMedium   RiskLevel = "Medium"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelCritical RiskLevel = "Critical"
)

// FactorBreakdown lists the contribution of each scoring factor.
type FactorBreakdown struct {
	Criticality float64 `json:"criticality"`
	Assessment  float64 `json:"assessment"`
	Contract    float64 `json:"contract"`
	SLA         float64 `json:"sla"`
	Status      float64 `json:"status"`

	// AssessmentMissing is set when no assessment date is on record.
	AssessmentMissing bool `json:"assessment_missing"`
}

// Sum returns the total factor contribution.
func (f FactorBreakdown) Sum() float64 {
	return f.Criticality + f.Assessment + f.Contract + f.SLA + f.Status
}

// VendorRiskScore is the derived risk evaluation of a vendor. It is returned to the
// caller and never persisted by the scoring engine.
type VendorRiskScore struct {
	VendorID        string          `json:"vendor_id"`
	BaseScore       float64         `json:"base_score"`
	RiskScore       float64         `json:"risk_score"`
	RiskLevel       RiskLevel       `json:"risk_level"`
	Factors         FactorBreakdown `json:"factors"`
	FeedSignals     []string        `json:"feed_signals,omitempty"`
	Recommendations []string        `json:"recommendations"`
}

// FeedData carries optional external risk signals for a vendor.
type FeedData struct {
	// CreditRating is on a 0..100 scale, lower is worse.
	CreditRating *float64 `json:"credit_rating,omitempty"`
	// CyberRiskScore is on a 0..100 scale, higher is worse.
	CyberRiskScore *float64 `json:"cyber_risk_score,omitempty"`
	// SentimentScore is in -1..1, lower is worse.
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
}
