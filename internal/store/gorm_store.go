package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
	"gorm.io/gorm"
)

// GormStore is the postgres-backed implementation of PartnerStore,
// AlertStore, ActivityLog and ProductCatalog.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by the given database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get retrieves a partner by id.
func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var p models.Partner
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding partner: %w", err)
	}
	return &p, nil
}

// GetMany resolves ids in one query, returning them in requested order.
func (s *GormStore) GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Partner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Partner
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error finding partners: %w", err)
	}
	byID := make(map[uuid.UUID]models.Partner, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	out := make([]models.Partner, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, p)
	}
	return out, nil
}

// ListAll returns every partner.
func (s *GormStore) ListAll(ctx context.Context) ([]models.Partner, error) {
	var rows []models.Partner
	if err := s.db.WithContext(ctx).Order("joined_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing partners: %w", err)
	}
	return rows, nil
}

// ListDirectChildren returns partners sponsored directly by id.
func (s *GormStore) ListDirectChildren(ctx context.Context, id uuid.UUID) ([]models.Partner, error) {
	var rows []models.Partner
	if err := s.db.WithContext(ctx).Where("sponsor_id = ?", id).Order("joined_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing children: %w", err)
	}
	return rows, nil
}

// ListDescendants returns every partner whose path contains id as a
// segment.
func (s *GormStore) ListDescendants(ctx context.Context, id uuid.UUID) ([]models.Partner, error) {
	seg := id.String()
	var rows []models.Partner
	err := s.db.WithContext(ctx).
		Where("path = ? OR path LIKE ? OR path LIKE ? OR path LIKE ?",
			seg, seg+models.PathDelimiter+"%", "%"+models.PathDelimiter+seg, "%"+models.PathDelimiter+seg+models.PathDelimiter+"%").
		Order("level, joined_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing descendants: %w", err)
	}
	return rows, nil
}

// Create stores a new partner.
func (s *GormStore) Create(ctx context.Context, p *models.Partner) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("error creating partner: %w", err)
	}
	return nil
}

// Save overwrites an existing partner row.
func (s *GormStore) Save(ctx context.Context, p *models.Partner) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("error saving partner: %w", err)
	}
	return nil
}

// AddCounters applies counter deltas as an atomic in-database increment,
// so concurrent propagations along the same chain cannot lose updates.
func (s *GormStore) AddCounters(ctx context.Context, id uuid.UUID, deltas CounterDeltas) error {
	if deltas.IsZero() {
		return nil
	}
	updates := map[string]interface{}{}
	if deltas.TeamVolume != 0 {
		updates["team_volume"] = gorm.Expr("team_volume + ?", deltas.TeamVolume)
	}
	if deltas.MonthEarnings != 0 {
		updates["month_earnings"] = gorm.Expr("month_earnings + ?", deltas.MonthEarnings)
	}
	if deltas.DirectReferrals != 0 {
		updates["direct_referrals"] = gorm.Expr("direct_referrals + ?", deltas.DirectReferrals)
	}
	if deltas.TotalDownline != 0 {
		updates["total_downline"] = gorm.Expr("total_downline + ?", deltas.TotalDownline)
	}
	if deltas.ActiveDownline != 0 {
		updates["active_downline"] = gorm.Expr("active_downline + ?", deltas.ActiveDownline)
	}
	result := s.db.WithContext(ctx).Model(&models.Partner{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("error updating counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveAlert stores or updates a fraud alert.
func (s *GormStore) SaveAlert(ctx context.Context, alert *models.FraudAlert) error {
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return fmt.Errorf("error saving alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by id.
func (s *GormStore) GetAlert(ctx context.Context, id uuid.UUID) (*models.FraudAlert, error) {
	var a models.FraudAlert
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding alert: %w", err)
	}
	return &a, nil
}

// ListAlerts returns all alerts for a partner, oldest first.
func (s *GormStore) ListAlerts(ctx context.Context, partnerID uuid.UUID) ([]models.FraudAlert, error) {
	var rows []models.FraudAlert
	if err := s.db.WithContext(ctx).Where("partner_id = ?", partnerID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	return rows, nil
}

// Referrals returns referral records by referrerID since a point in time.
func (s *GormStore) Referrals(ctx context.Context, referrerID uuid.UUID, since time.Time) ([]models.ReferralRecord, error) {
	var rows []models.ReferralRecord
	err := s.db.WithContext(ctx).
		Where("referrer_id = ? AND occurred_at >= ?", referrerID, since).
		Order("occurred_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing referrals: %w", err)
	}
	return rows, nil
}

// HasReferral reports whether a referrer->referred edge exists.
func (s *GormStore) HasReferral(ctx context.Context, referrerID, referredID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ReferralRecord{}).
		Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error checking referral: %w", err)
	}
	return count > 0, nil
}

// Events returns activity events of a kind since a point in time.
func (s *GormStore) Events(ctx context.Context, partnerID uuid.UUID, kind models.ActivityKind, since time.Time) ([]models.ActivityEvent, error) {
	var rows []models.ActivityEvent
	err := s.db.WithContext(ctx).
		Where("partner_id = ? AND kind = ? AND occurred_at >= ?", partnerID, kind, since).
		Order("occurred_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	return rows, nil
}

// Lookup resolves a product id against the catalog table.
func (s *GormStore) Lookup(ctx context.Context, productID string) (*models.Product, error) {
	var rec models.ProductRecord
	if err := s.db.WithContext(ctx).Where("id = ?", productID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding product: %w", err)
	}
	product := models.Product{
		ID:             rec.ID,
		Name:           rec.Name,
		Commissionable: rec.Commissionable,
	}
	if len(rec.RateOverrides) > 0 {
		product.RateOverrides = make(map[int]float64, len(rec.RateOverrides))
		for level, rate := range rec.RateOverrides {
			l, err := parseLevelKey(level)
			if err != nil {
				continue
			}
			if f, ok := rate.(float64); ok {
				product.RateOverrides[l] = f
			}
		}
	}
	return &product, nil
}

func parseLevelKey(key string) (int, error) {
	var level int
	_, err := fmt.Sscanf(key, "%d", &level)
	return level, err
}

// GormRules loads the commission and fraud configuration tables into a
// rule-set snapshot. Scalar plan settings come from the base snapshot
// supplied at construction.
type GormRules struct {
	db   *gorm.DB
	base models.RuleSet
}

// NewGormRules creates a database-backed ConfigProvider.
func NewGormRules(db *gorm.DB, base models.RuleSet) *GormRules {
	return &GormRules{db: db, base: base}
}

// RuleSet assembles a fresh snapshot from the configuration tables.
func (r *GormRules) RuleSet(ctx context.Context) (*models.RuleSet, error) {
	rules := r.base
	if err := r.db.WithContext(ctx).Order("level, rate desc").Find(&rules.Tiers).Error; err != nil {
		return nil, fmt.Errorf("error loading tiers: %w", err)
	}
	if err := r.db.WithContext(ctx).Find(&rules.BonusRules).Error; err != nil {
		return nil, fmt.Errorf("error loading bonus rules: %w", err)
	}
	if err := r.db.WithContext(ctx).Find(&rules.Caps).Error; err != nil {
		return nil, fmt.Errorf("error loading caps: %w", err)
	}
	if err := r.db.WithContext(ctx).Find(&rules.FraudThresholds).Error; err != nil {
		return nil, fmt.Errorf("error loading fraud thresholds: %w", err)
	}
	return &rules, nil
}
