package models

import (
	"time"

	"github.com/google/uuid"
)

// Currency represents supported currencies
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyNGN Currency = "NGN"
	CurrencyGHS Currency = "GHS"
)

// Transaction is an immutable sales fact attributed to a paying partner.
type Transaction struct {
	Base
	PartnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"partner_id"`
	Partner   Partner   `gorm:"foreignKey:PartnerID" json:"-"`
	Amount    float64   `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency  Currency  `gorm:"type:varchar(3);not null" json:"currency"`
	ProductID string    `gorm:"type:varchar(100);not null" json:"product_id"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	Metadata  JSON      `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// Subscription represents a recurring product purchase. Renewals within
// the residual period earn reduced-rate commissions for the upline.
type Subscription struct {
	Base
	PartnerID       uuid.UUID `gorm:"type:uuid;not null;index" json:"partner_id"`
	ProductID       string    `gorm:"type:varchar(100);not null" json:"product_id"`
	RecurringAmount float64   `gorm:"type:decimal(20,2);not null" json:"recurring_amount"`
	Currency        Currency  `gorm:"type:varchar(3);not null" json:"currency"`
	StartedAt       time.Time `gorm:"not null" json:"started_at"`
	Active          bool      `gorm:"default:true" json:"active"`
}

// ActiveMonths returns the number of whole months the subscription has
// been running as of now.
func (s *Subscription) ActiveMonths(now time.Time) int {
	if now.Before(s.StartedAt) {
		return 0
	}
	months := 0
	for t := s.StartedAt.AddDate(0, 1, 0); !t.After(now); t = t.AddDate(0, 1, 0) {
		months++
	}
	return months
}

// Product describes a catalog entry as seen by the commission engine:
// whether it is commissionable and any per-level rate overrides.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Commissionable bool            `json:"commissionable"`
	RateOverrides  map[int]float64 `json:"rate_overrides,omitempty"`
}

// ProductRecord is the persisted catalog row backing Product lookups.
type ProductRecord struct {
	ID             string    `gorm:"type:varchar(100);primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(255)" json:"name"`
	Commissionable bool      `gorm:"default:true" json:"commissionable"`
	RateOverrides  JSON      `gorm:"type:jsonb" json:"rate_overrides,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
