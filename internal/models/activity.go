package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralRecord captures one referral edge together with the acquisition
// context the fraud detectors inspect.
type ReferralRecord struct {
	Base
	ReferrerID     uuid.UUID `gorm:"type:uuid;not null;index" json:"referrer_id"`
	ReferredID     uuid.UUID `gorm:"type:uuid;not null;index" json:"referred_id"`
	SourceIP       string    `gorm:"type:varchar(45)" json:"source_ip"`
	Country        string    `gorm:"type:varchar(2)" json:"country"`
	InitialDeposit float64   `gorm:"type:decimal(20,2);default:0" json:"initial_deposit"`
	OccurredAt     time.Time `gorm:"not null;index" json:"occurred_at"`
}

// ActivityKind distinguishes event types in the activity log
type ActivityKind string

const (
	ActivityLogin   ActivityKind = "login"
	ActivityPayment ActivityKind = "payment"
)

// ActivityEvent is one row in the read-only activity log consumed by the
// fraud detectors.
type ActivityEvent struct {
	Base
	PartnerID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"partner_id"`
	Kind          ActivityKind `gorm:"type:varchar(20);not null" json:"kind"`
	PaymentMethod string       `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	Amount        float64      `gorm:"type:decimal(20,2);default:0" json:"amount,omitempty"`
	IP            string       `gorm:"type:varchar(45)" json:"ip,omitempty"`
	UserAgent     string       `gorm:"type:text" json:"user_agent,omitempty"`
	OccurredAt    time.Time    `gorm:"not null;index" json:"occurred_at"`
}
