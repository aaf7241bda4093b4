package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RateKind distinguishes percentage tiers from flat-amount tiers
type RateKind string

const (
	RatePercentage RateKind = "percentage"
	RateFixed      RateKind = "fixed"
)

// Qualification is the predicate shared by tiers and bonus rules. Every
// field is optional; a tier or bonus applies only if all set thresholds
// pass.
type Qualification struct {
	MinPersonalVolume      *float64    `gorm:"type:decimal(20,2)" json:"min_personal_volume,omitempty"`
	MinTeamVolume          *float64    `gorm:"type:decimal(20,2)" json:"min_team_volume,omitempty"`
	MinActiveDownline      *int        `json:"min_active_downline,omitempty"`
	MinTenureMonths        *int        `json:"min_tenure_months,omitempty"`
	RequiredCertifications StringSlice `gorm:"type:jsonb" json:"required_certifications,omitempty"`
}

// Matches reports whether the partner satisfies every set threshold.
func (q Qualification) Matches(p *Partner) bool {
	if q.MinPersonalVolume != nil && p.PersonalVolume < *q.MinPersonalVolume {
		return false
	}
	if q.MinTeamVolume != nil && p.TeamVolume < *q.MinTeamVolume {
		return false
	}
	if q.MinActiveDownline != nil && p.ActiveDownline < *q.MinActiveDownline {
		return false
	}
	if q.MinTenureMonths != nil && p.TenureMonths < *q.MinTenureMonths {
		return false
	}
	return p.HasCertifications(q.RequiredCertifications)
}

// CommissionTier is a level-scoped commission rule.
type CommissionTier struct {
	Base
	Level         int           `gorm:"not null;index" json:"level"`
	Name          string        `gorm:"type:varchar(100)" json:"name"`
	Qualification Qualification `gorm:"embedded;embeddedPrefix:qual_" json:"qualification"`
	Rate          float64       `gorm:"type:decimal(10,4);not null" json:"rate"`
	RateKind      RateKind      `gorm:"type:varchar(20);not null;default:'percentage'" json:"rate_kind"`

	// Optional constraints
	MinTransactionVolume *float64 `gorm:"type:decimal(20,2)" json:"min_transaction_volume,omitempty"`
	MaxMonthlyEarnings   *float64 `gorm:"type:decimal(20,2)" json:"max_monthly_earnings,omitempty"`
}

// TriggerOperator is the comparison applied by a bonus trigger
type TriggerOperator string

const (
	OperatorEquals      TriggerOperator = "equals"
	OperatorGreaterThan TriggerOperator = "greater_than"
	OperatorLessThan    TriggerOperator = "less_than"
	OperatorBetween     TriggerOperator = "between"
)

// Bonus metric names understood by the trigger evaluator
const (
	MetricMonthlyVolume           = "monthly_volume"
	MetricActiveDownline          = "active_downline"
	MetricPersonalVolume          = "personal_volume"
	MetricConsecutiveActiveMonths = "consecutive_active_months"
)

// BonusTrigger names a stored partner metric and the condition it must
// meet for the bonus to fire.
type BonusTrigger struct {
	Metric     string          `gorm:"type:varchar(50);not null" json:"metric"`
	Operator   TriggerOperator `gorm:"type:varchar(20);not null" json:"operator"`
	Value      float64         `gorm:"type:decimal(20,2);not null" json:"value"`
	UpperValue *float64        `gorm:"type:decimal(20,2)" json:"upper_value,omitempty"`
}

// RewardKind distinguishes flat bonuses from transaction-percentage ones
type RewardKind string

const (
	RewardFixed      RewardKind = "fixed"
	RewardPercentage RewardKind = "percentage"
)

// BonusRule pays a reward when its qualification and trigger both hold.
type BonusRule struct {
	Base
	Name          string        `gorm:"type:varchar(100);not null" json:"name"`
	Qualification Qualification `gorm:"embedded;embeddedPrefix:qual_" json:"qualification"`
	Trigger       BonusTrigger  `gorm:"embedded;embeddedPrefix:trigger_" json:"trigger"`
	RewardKind    RewardKind    `gorm:"type:varchar(20);not null" json:"reward_kind"`
	RewardAmount  float64       `gorm:"type:decimal(20,2);not null" json:"reward_amount"`
}

// CommissionCap limits the payout at a single level, or globally when
// Level is nil.
type CommissionCap struct {
	Base
	Name      string  `gorm:"type:varchar(100)" json:"name"`
	Level     *int    `json:"level,omitempty"`
	MaxAmount float64 `gorm:"type:decimal(20,2);not null" json:"max_amount"`
}

// AppliesTo reports whether the cap constrains the given level.
func (c CommissionCap) AppliesTo(level int) bool {
	return c.Level == nil || *c.Level == level
}

// CommissionResult is the payout earned by one upline partner at one
// level for a single transaction.
type CommissionResult struct {
	PartnerID uuid.UUID `json:"partner_id"`
	Level     int       `json:"level"`
	Rate      float64   `json:"rate"`
	RateKind  RateKind  `json:"rate_kind"`
	Amount    float64   `json:"amount"`
}

// BonusResult is a bonus payout attributed to a single partner.
type BonusResult struct {
	PartnerID uuid.UUID `json:"partner_id"`
	RuleName  string    `json:"rule_name"`
	Amount    float64   `json:"amount"`
}

// CommissionResults stores the per-level results as a JSON column.
type CommissionResults []CommissionResult

// Value implements the driver.Valuer interface for CommissionResults
func (r CommissionResults) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for CommissionResults
func (r *CommissionResults) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// BonusResults stores bonus results as a JSON column.
type BonusResults []BonusResult

// Value implements the driver.Valuer interface for BonusResults
func (r BonusResults) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for BonusResults
func (r *BonusResults) Scan(value interface{}) error {
	return scanJSON(value, r)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, dest)
}

// CommissionDistribution is the full payout produced for one transaction.
// TotalPaid always equals the sum of commission and bonus amounts to
// within a rounding epsilon; recomputing for the same transaction id must
// not be persisted twice (unique index on TransactionID).
type CommissionDistribution struct {
	Base
	TransactionID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"transaction_id"`
	Commissions   CommissionResults `gorm:"type:jsonb" json:"commissions"`
	Bonuses       BonusResults      `gorm:"type:jsonb" json:"bonuses"`
	TotalPaid     float64           `gorm:"type:decimal(20,2);not null" json:"total_paid"`
	Residual      bool              `gorm:"default:false" json:"residual"`
	ComputedAt    time.Time         `gorm:"not null" json:"computed_at"`
}
