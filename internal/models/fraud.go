package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertCategory names the detector that produced an alert
type AlertCategory string

const (
	CategoryReferralVelocity    AlertCategory = "referral_velocity"
	CategoryGeoConcentration    AlertCategory = "geographic_concentration"
	CategoryPaymentPattern      AlertCategory = "payment_pattern"
	CategoryAccountSimilarity   AlertCategory = "account_similarity"
	CategoryNetworkManipulation AlertCategory = "network_manipulation"
	CategoryBehavioralPattern   AlertCategory = "behavioral_pattern"
)

// AlertSeverity ranks how urgent an alert is
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus tracks an alert through its lifecycle. Transitions are
// open -> investigating -> resolved or false_positive; resolution is a
// manual step taken outside the engine.
type AlertStatus string

const (
	AlertStatusOpen          AlertStatus = "open"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusResolved      AlertStatus = "resolved"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// Evidence is one weighted observation supporting an alert
type Evidence struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Value       float64   `json:"value"`
	Weight      float64   `json:"weight"`
	Timestamp   time.Time `json:"timestamp"`
}

// EvidenceList stores evidence as a JSON column.
type EvidenceList []Evidence

// Value implements the driver.Valuer interface for EvidenceList
func (e EvidenceList) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

// Scan implements the sql.Scanner interface for EvidenceList
func (e *EvidenceList) Scan(value interface{}) error {
	return scanJSON(value, e)
}

// ActionKind is a graduated response to a surviving alert
type ActionKind string

const (
	ActionFlag        ActionKind = "flag"
	ActionInvestigate ActionKind = "investigate"
	ActionSuspend     ActionKind = "suspend"
	ActionBlock       ActionKind = "block"
)

// AlertAction is one entry in an alert's append-only action log
type AlertAction struct {
	Kind      ActionKind `json:"kind"`
	Automated bool       `json:"automated"`
	Reason    string     `json:"reason"`
	Timestamp time.Time  `json:"timestamp"`
}

// ActionLog stores alert actions as a JSON column.
type ActionLog []AlertAction

// Value implements the driver.Valuer interface for ActionLog
func (a ActionLog) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for ActionLog
func (a *ActionLog) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// FraudAlert is the aggregated output of one detector for one partner.
type FraudAlert struct {
	Base
	PartnerID uuid.UUID     `gorm:"type:uuid;not null;index" json:"partner_id"`
	Category  AlertCategory `gorm:"type:varchar(50);not null" json:"category"`
	Severity  AlertSeverity `gorm:"type:varchar(20);not null" json:"severity"`
	RiskScore float64       `gorm:"type:decimal(4,3);not null" json:"risk_score"`
	Status    AlertStatus   `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	Summary   string        `gorm:"type:text" json:"summary"`
	Evidence  EvidenceList  `gorm:"type:jsonb" json:"evidence"`
	Actions   ActionLog     `gorm:"type:jsonb" json:"actions"`
}

// TransitionTo advances the alert status, rejecting transitions the
// lifecycle does not permit.
func (a *FraudAlert) TransitionTo(next AlertStatus) error {
	allowed := map[AlertStatus][]AlertStatus{
		AlertStatusOpen:          {AlertStatusInvestigating},
		AlertStatusInvestigating: {AlertStatusResolved, AlertStatusFalsePositive},
	}
	for _, s := range allowed[a.Status] {
		if s == next {
			a.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid alert transition %s -> %s", a.Status, next)
}

// RecordAction appends to the alert's action log.
func (a *FraudAlert) RecordAction(kind ActionKind, automated bool, reason string, at time.Time) {
	a.Actions = append(a.Actions, AlertAction{
		Kind:      kind,
		Automated: automated,
		Reason:    reason,
		Timestamp: at,
	})
}

// FraudThreshold configures the minimum risk score at which alerts of a
// category survive filtering, and the automated action they trigger.
type FraudThreshold struct {
	Base
	Metric      AlertCategory `gorm:"type:varchar(50);not null;uniqueIndex" json:"metric"`
	Value       float64       `gorm:"type:decimal(4,3);not null" json:"value"`
	WindowHours int           `gorm:"default:24" json:"window_hours"`
	Action      ActionKind    `gorm:"type:varchar(20);not null;default:'flag'" json:"action"`
	Severity    AlertSeverity `gorm:"type:varchar(20)" json:"severity,omitempty"`
}
