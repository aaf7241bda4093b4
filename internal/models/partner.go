package models

import (
	"time"

	"github.com/google/uuid"
)

// PartnerStatus represents the lifecycle state of a partner
type PartnerStatus string

const (
	PartnerStatusPending    PartnerStatus = "pending"
	PartnerStatusActive     PartnerStatus = "active"
	PartnerStatusInactive   PartnerStatus = "inactive"
	PartnerStatusSuspended  PartnerStatus = "suspended"
	PartnerStatusTerminated PartnerStatus = "terminated"
)

// Partner represents a node in the referral tree.
//
// Path is the materialized path: the ids of every ancestor from the root
// down to (but excluding) this partner, joined with "/". A root partner
// has an empty path and level 1. Level is always len(path ids) + 1.
type Partner struct {
	Base
	Name         string        `gorm:"type:varchar(255);not null" json:"name"`
	Email        string        `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	ReferralCode string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"referral_code"`
	Status       PartnerStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	JoinedAt     time.Time     `json:"joined_at"`

	// Graph fields
	SponsorID *uuid.UUID `gorm:"type:uuid;index" json:"sponsor_id,omitempty"`
	Path      string     `gorm:"type:text;index" json:"path"`
	Level     int        `gorm:"not null;default:1" json:"level"`

	// Volume metrics
	PersonalVolume  float64 `gorm:"type:decimal(20,2);default:0" json:"personal_volume"`
	TeamVolume      float64 `gorm:"type:decimal(20,2);default:0" json:"team_volume"`
	MonthlyVolume   float64 `gorm:"type:decimal(20,2);default:0" json:"monthly_volume"`
	QuarterlyVolume float64 `gorm:"type:decimal(20,2);default:0" json:"quarterly_volume"`
	AnnualVolume    float64 `gorm:"type:decimal(20,2);default:0" json:"annual_volume"`
	MonthEarnings   float64 `gorm:"type:decimal(20,2);default:0" json:"month_earnings"`

	// Downline counters
	DirectReferrals int `gorm:"default:0" json:"direct_referrals"`
	TotalDownline   int `gorm:"default:0" json:"total_downline"`
	ActiveDownline  int `gorm:"default:0" json:"active_downline"`

	// Qualification inputs
	TenureMonths            int         `gorm:"default:0" json:"tenure_months"`
	ConsecutiveActiveMonths int         `gorm:"default:0" json:"consecutive_active_months"`
	Certifications          StringSlice `gorm:"type:jsonb" json:"certifications,omitempty"`

	// Scores, both normalised to [0,1]
	ComplianceScore float64 `gorm:"type:decimal(4,3);default:0" json:"compliance_score"`
	RiskScore       float64 `gorm:"type:decimal(4,3);default:0" json:"risk_score"`

	// Identity fields used by the account-similarity detector
	Phone         string `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Address       string `gorm:"type:text" json:"address,omitempty"`
	BankAccount   string `gorm:"type:varchar(64)" json:"-"`
	LastIP        string `gorm:"type:varchar(45)" json:"-"`
	LastUserAgent string `gorm:"type:text" json:"-"`

	DeactivationReason string `gorm:"type:text" json:"deactivation_reason,omitempty"`
}

// IsActive reports whether the partner currently counts toward active
// downline totals.
func (p *Partner) IsActive() bool {
	return p.Status == PartnerStatusActive
}

// HasCertifications reports whether the partner holds every certification
// in required.
func (p *Partner) HasCertifications(required []string) bool {
	if len(required) == 0 {
		return true
	}
	held := make(map[string]bool, len(p.Certifications))
	for _, c := range p.Certifications {
		held[c] = true
	}
	for _, r := range required {
		if !held[r] {
			return false
		}
	}
	return true
}
