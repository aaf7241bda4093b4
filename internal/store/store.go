// Package store defines the collaborator contracts the engines depend
// on: partner persistence, the read-only activity log, the product
// catalog, alert storage, the compensation-plan snapshot and the
// side-effecting action executor. Implementations may suspend; the
// engines never retry internally.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CounterDeltas is an atomic read-modify-write increment applied to a
// partner's stored counters. Implementations must serialize concurrent
// deltas against the same partner; a lost update is a correctness bug.
type CounterDeltas struct {
	TeamVolume      float64
	MonthEarnings   float64
	DirectReferrals int
	TotalDownline   int
	ActiveDownline  int
}

// IsZero reports whether the deltas would change nothing.
func (d CounterDeltas) IsZero() bool {
	return d.TeamVolume == 0 && d.MonthEarnings == 0 && d.DirectReferrals == 0 && d.TotalDownline == 0 && d.ActiveDownline == 0
}

// PartnerStore persists partner rows.
type PartnerStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	// GetMany resolves ids preserving the requested order. A missing id
	// yields ErrNotFound.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Partner, error)
	ListAll(ctx context.Context) ([]models.Partner, error)
	ListDirectChildren(ctx context.Context, id uuid.UUID) ([]models.Partner, error)
	// ListDescendants returns every partner whose materialized path
	// contains id.
	ListDescendants(ctx context.Context, id uuid.UUID) ([]models.Partner, error)
	Create(ctx context.Context, p *models.Partner) error
	Save(ctx context.Context, p *models.Partner) error
	AddCounters(ctx context.Context, id uuid.UUID, deltas CounterDeltas) error
}

// ActivityLog exposes read-only referral and activity queries within a
// time window, feeding the fraud detectors.
type ActivityLog interface {
	Referrals(ctx context.Context, referrerID uuid.UUID, since time.Time) ([]models.ReferralRecord, error)
	// HasReferral reports whether referrerID has a referral record for
	// referredID, used for back-reference detection.
	HasReferral(ctx context.Context, referrerID, referredID uuid.UUID) (bool, error)
	Events(ctx context.Context, partnerID uuid.UUID, kind models.ActivityKind, since time.Time) ([]models.ActivityEvent, error)
}

// AlertStore persists fraud alerts keyed by partner.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *models.FraudAlert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*models.FraudAlert, error)
	ListAlerts(ctx context.Context, partnerID uuid.UUID) ([]models.FraudAlert, error)
}

// ProductCatalog resolves a transaction's product id to commission
// eligibility and per-level rate overrides.
type ProductCatalog interface {
	Lookup(ctx context.Context, productID string) (*models.Product, error)
}

// ActionExecutor performs the graduated fraud responses that mutate
// state outside the engines.
type ActionExecutor interface {
	Suspend(ctx context.Context, partnerID uuid.UUID, reason string) error
	Block(ctx context.Context, partnerID uuid.UUID, reason string) error
}

// ConfigProvider supplies an immutable rule-set snapshot per
// calculation.
type ConfigProvider interface {
	RuleSet(ctx context.Context) (*models.RuleSet, error)
}
