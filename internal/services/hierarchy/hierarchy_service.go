// Package hierarchy maintains the partner referral tree and its
// materialized-path encoding: enrollment, upline/downline traversal,
// metric propagation, reparenting and deactivation.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/store"
	"github.com/uplinepay/backend/internal/utils"
)

var (
	// ErrInvalidSponsor is returned when a sponsor id does not resolve
	// to an existing, active partner.
	ErrInvalidSponsor = errors.New("invalid or inactive sponsor")
	// ErrDepthExceeded is returned when an operation would push a
	// partner past the configured maximum hierarchy depth.
	ErrDepthExceeded = errors.New("maximum hierarchy depth exceeded")
	// ErrSelfCycle is returned when a move would place a partner under
	// its own downline.
	ErrSelfCycle = errors.New("move would create a cycle")
	// ErrPartnerNotFound is returned when the referenced partner does
	// not exist.
	ErrPartnerNotFound = errors.New("partner not found")
)

// Service owns the referral tree. Structural mutations are serialized by
// a service-level mutex so concurrent moves over overlapping subtrees
// cannot interleave; reads go straight to the store snapshot.
type Service struct {
	partners store.PartnerStore
	rules    store.ConfigProvider

	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a hierarchy service.
func NewService(partners store.PartnerStore, rules store.ConfigProvider) *Service {
	return &Service{
		partners: partners,
		rules:    rules,
		now:      time.Now,
	}
}

// NewPartnerInput carries the enrollment data for a new partner.
type NewPartnerInput struct {
	Name         string
	Email        string
	Phone        string
	Address      string
	ReferralCode string
}

// AddPartner enrolls a partner under an optional sponsor. The sponsor
// must exist and be active. Level and path are derived from the sponsor
// at creation time; sponsor and ancestor counters are incremented once
// the partner row exists.
func (s *Service) AddPartner(ctx context.Context, input NewPartnerInput, sponsorID *uuid.UUID) (*models.Partner, error) {
	rules, err := s.rules.RuleSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading rule set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	level := 1
	path := ""
	if sponsorID != nil {
		sponsor, err := s.partners.Get(ctx, *sponsorID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: sponsor %s", ErrInvalidSponsor, *sponsorID)
			}
			return nil, err
		}
		if !sponsor.IsActive() {
			return nil, fmt.Errorf("%w: sponsor %s has status %s", ErrInvalidSponsor, sponsor.ID, sponsor.Status)
		}
		level = sponsor.Level + 1
		if rules.MaxHierarchyLevels > 0 && level > rules.MaxHierarchyLevels {
			return nil, fmt.Errorf("%w: level %d exceeds maximum %d", ErrDepthExceeded, level, rules.MaxHierarchyLevels)
		}
		if sponsor.Path == "" {
			path = sponsor.ID.String()
		} else {
			path = sponsor.Path + models.PathDelimiter + sponsor.ID.String()
		}
	}

	status := models.PartnerStatusPending
	if rules.AutoActivation {
		status = models.PartnerStatusActive
	}

	code := input.ReferralCode
	if code == "" {
		code = utils.GeneratePartnerCode(input.Name)
	}

	partner := &models.Partner{
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Address:      input.Address,
		ReferralCode: code,
		Status:       status,
		JoinedAt:     s.now(),
		SponsorID:    sponsorID,
		Path:         path,
		Level:        level,
	}
	if err := s.partners.Create(ctx, partner); err != nil {
		return nil, err
	}

	// One total-downline increment per ancestor, regardless of the
	// ancestor's own status. The direct sponsor also gains a direct
	// referral.
	ancestors, err := models.DecodePath(path)
	if err != nil {
		return nil, fmt.Errorf("error decoding path: %w", err)
	}
	for _, ancestorID := range ancestors {
		deltas := store.CounterDeltas{TotalDownline: 1}
		if partner.IsActive() {
			deltas.ActiveDownline = 1
		}
		if ancestorID == *sponsorID {
			deltas.DirectReferrals = 1
		}
		if err := s.partners.AddCounters(ctx, ancestorID, deltas); err != nil {
			return nil, fmt.Errorf("error updating ancestor counters: %w", err)
		}
	}

	return partner, nil
}

// GetUpline resolves a partner's ancestor chain, ordered root first
// (top-level sponsor first, immediate sponsor last).
func (s *Service) GetUpline(ctx context.Context, partnerID uuid.UUID) ([]models.Partner, error) {
	partner, err := s.getPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	ids, err := models.DecodePath(partner.Path)
	if err != nil {
		return nil, fmt.Errorf("error decoding path: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.partners.GetMany(ctx, ids)
}

// SponsorFirst reverses a root-first upline into the immediate-sponsor-
// first order the commission engine consumes. Swapping the order
// silently reassigns commission levels, so every caller handing an
// upline to the engine must go through this adapter.
func SponsorFirst(upline []models.Partner) []models.Partner {
	out := make([]models.Partner, len(upline))
	for i, p := range upline {
		out[len(upline)-1-i] = p
	}
	return out
}

// GetDownline returns all partners beneath partnerID, at most maxLevels
// deep (0 means unlimited), optionally restricted to active partners,
// sorted by level then join date.
func (s *Service) GetDownline(ctx context.Context, partnerID uuid.UUID, maxLevels int, activeOnly bool) ([]models.Partner, error) {
	root, err := s.getPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	descendants, err := s.partners.ListDescendants(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	var out []models.Partner
	for _, p := range descendants {
		if maxLevels > 0 && p.Level-root.Level > maxLevels {
			continue
		}
		if activeOnly && !p.IsActive() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// MetricsUpdate is a partial update of a partner's stored metrics. Nil
// fields are left untouched.
type MetricsUpdate struct {
	PersonalVolume          *float64 `json:"personal_volume"`
	TeamVolume              *float64 `json:"team_volume"`
	MonthlyVolume           *float64 `json:"monthly_volume"`
	QuarterlyVolume         *float64 `json:"quarterly_volume"`
	AnnualVolume            *float64 `json:"annual_volume"`
	MonthEarnings           *float64 `json:"month_earnings"`
	ComplianceScore         *float64 `json:"compliance_score"`
	RiskScore               *float64 `json:"risk_score"`
	TenureMonths            *int     `json:"tenure_months"`
	ConsecutiveActiveMonths *int     `json:"consecutive_active_months"`
}

// UpdateMetrics applies a partial metric update. A team-volume change
// propagates its delta up the ancestor chain, one atomic increment per
// ancestor, terminating at the root.
func (s *Service) UpdateMetrics(ctx context.Context, partnerID uuid.UUID, update MetricsUpdate) (*models.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partner, err := s.getPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	teamDelta := 0.0
	if update.TeamVolume != nil {
		teamDelta = *update.TeamVolume - partner.TeamVolume
		partner.TeamVolume = *update.TeamVolume
	}
	if update.PersonalVolume != nil {
		partner.PersonalVolume = *update.PersonalVolume
	}
	if update.MonthlyVolume != nil {
		partner.MonthlyVolume = *update.MonthlyVolume
	}
	if update.QuarterlyVolume != nil {
		partner.QuarterlyVolume = *update.QuarterlyVolume
	}
	if update.AnnualVolume != nil {
		partner.AnnualVolume = *update.AnnualVolume
	}
	if update.MonthEarnings != nil {
		partner.MonthEarnings = *update.MonthEarnings
	}
	if update.ComplianceScore != nil {
		partner.ComplianceScore = *update.ComplianceScore
	}
	if update.RiskScore != nil {
		partner.RiskScore = *update.RiskScore
	}
	if update.TenureMonths != nil {
		partner.TenureMonths = *update.TenureMonths
	}
	if update.ConsecutiveActiveMonths != nil {
		partner.ConsecutiveActiveMonths = *update.ConsecutiveActiveMonths
	}

	if err := s.partners.Save(ctx, partner); err != nil {
		return nil, err
	}

	if teamDelta != 0 {
		ancestors, err := models.DecodePath(partner.Path)
		if err != nil {
			return nil, fmt.Errorf("error decoding path: %w", err)
		}
		// Walk from immediate sponsor up to the root.
		for i := len(ancestors) - 1; i >= 0; i-- {
			if err := s.partners.AddCounters(ctx, ancestors[i], store.CounterDeltas{TeamVolume: teamDelta}); err != nil {
				return nil, fmt.Errorf("error propagating team volume: %w", err)
			}
		}
	}

	return partner, nil
}

// RecordSale credits a sale to the selling partner's personal and period
// volumes and increments every ancestor's team volume by the amount.
func (s *Service) RecordSale(ctx context.Context, partnerID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("sale amount must be positive, got %.2f", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partner, err := s.getPartner(ctx, partnerID)
	if err != nil {
		return err
	}

	partner.PersonalVolume += amount
	partner.MonthlyVolume += amount
	partner.QuarterlyVolume += amount
	partner.AnnualVolume += amount
	if err := s.partners.Save(ctx, partner); err != nil {
		return err
	}

	ancestors, err := models.DecodePath(partner.Path)
	if err != nil {
		return fmt.Errorf("error decoding path: %w", err)
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		if err := s.partners.AddCounters(ctx, ancestors[i], store.CounterDeltas{TeamVolume: amount}); err != nil {
			return fmt.Errorf("error propagating team volume: %w", err)
		}
	}
	return nil
}

// CreditEarnings adds a paid commission amount to a partner's running
// monthly earnings, which the tier earnings cap is checked against.
func (s *Service) CreditEarnings(ctx context.Context, partnerID uuid.UUID, amount float64) error {
	if amount == 0 {
		return nil
	}
	return s.partners.AddCounters(ctx, partnerID, store.CounterDeltas{MonthEarnings: amount})
}

// MovePartner reparents a partner (and its whole subtree) under a new
// sponsor. The move is rejected before any write if it would create a
// cycle or exceed the configured depth.
func (s *Service) MovePartner(ctx context.Context, partnerID, newSponsorID uuid.UUID) error {
	rules, err := s.rules.RuleSet(ctx)
	if err != nil {
		return fmt.Errorf("error loading rule set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partner, err := s.getPartner(ctx, partnerID)
	if err != nil {
		return err
	}
	if newSponsorID == partnerID {
		return fmt.Errorf("%w: partner %s cannot sponsor itself", ErrSelfCycle, partnerID)
	}

	newSponsor, err := s.partners.Get(ctx, newSponsorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: sponsor %s", ErrInvalidSponsor, newSponsorID)
		}
		return err
	}

	descendants, err := s.partners.ListDescendants(ctx, partnerID)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if d.ID == newSponsorID {
			return fmt.Errorf("%w: %s is in the downline of %s", ErrSelfCycle, newSponsorID, partnerID)
		}
	}

	// The whole subtree shifts by the same level delta, so the deepest
	// descendant decides whether the move fits under the depth cap.
	if rules.MaxHierarchyLevels > 0 {
		deepest := partner.Level
		for _, d := range descendants {
			if d.Level > deepest {
				deepest = d.Level
			}
		}
		newDeepest := newSponsor.Level + 1 + deepest - partner.Level
		if newDeepest > rules.MaxHierarchyLevels {
			return fmt.Errorf("%w: level %d exceeds maximum %d", ErrDepthExceeded, newDeepest, rules.MaxHierarchyLevels)
		}
	}

	return s.reparentLocked(ctx, partner, newSponsor, descendants)
}

// DeactivatePartner marks a partner inactive, recording the reason. With
// redistribute, every direct child is moved to the partner's own
// sponsor; children of a sponsorless partner become new roots.
func (s *Service) DeactivatePartner(ctx context.Context, partnerID uuid.UUID, reason string, redistribute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partner, err := s.getPartner(ctx, partnerID)
	if err != nil {
		return err
	}
	wasActive := partner.IsActive()

	children, err := s.partners.ListDirectChildren(ctx, partnerID)
	if err != nil {
		return err
	}

	partner.Status = models.PartnerStatusInactive
	partner.DeactivationReason = reason
	if err := s.partners.Save(ctx, partner); err != nil {
		return err
	}

	if wasActive {
		ancestors, err := models.DecodePath(partner.Path)
		if err != nil {
			return fmt.Errorf("error decoding path: %w", err)
		}
		for _, ancestorID := range ancestors {
			if err := s.partners.AddCounters(ctx, ancestorID, store.CounterDeltas{ActiveDownline: -1}); err != nil {
				return fmt.Errorf("error updating ancestor counters: %w", err)
			}
		}
	}

	if !redistribute {
		return nil
	}

	var newSponsor *models.Partner
	if partner.SponsorID != nil {
		newSponsor, err = s.partners.Get(ctx, *partner.SponsorID)
		if err != nil {
			return fmt.Errorf("error loading sponsor for redistribution: %w", err)
		}
	}
	for _, child := range children {
		c := child
		childDescendants, err := s.partners.ListDescendants(ctx, c.ID)
		if err != nil {
			return err
		}
		if err := s.reparentLocked(ctx, &c, newSponsor, childDescendants); err != nil {
			return fmt.Errorf("error redistributing child %s: %w", c.ID, err)
		}
	}
	return nil
}

// reparentLocked rewires partner under newSponsor (nil makes it a root),
// transfers counters and team volume between the old and new ancestor
// chains, and rewrites level and path for every descendant. The caller
// holds the service mutex and has already validated the move.
func (s *Service) reparentLocked(ctx context.Context, partner *models.Partner, newSponsor *models.Partner, descendants []models.Partner) error {
	oldAncestors, err := models.DecodePath(partner.Path)
	if err != nil {
		return fmt.Errorf("error decoding path: %w", err)
	}
	oldLevel := partner.Level
	oldSponsorID := partner.SponsorID

	subtreeSize := 1 + len(descendants)
	activeCount := 0
	if partner.IsActive() {
		activeCount++
	}
	for _, d := range descendants {
		if d.IsActive() {
			activeCount++
		}
	}
	volume := partner.PersonalVolume + partner.TeamVolume

	newLevel := 1
	newPath := ""
	if newSponsor != nil {
		newLevel = newSponsor.Level + 1
		if newSponsor.Path == "" {
			newPath = newSponsor.ID.String()
		} else {
			newPath = newSponsor.Path + models.PathDelimiter + newSponsor.ID.String()
		}
	}

	partner.Level = newLevel
	partner.Path = newPath
	if newSponsor != nil {
		id := newSponsor.ID
		partner.SponsorID = &id
	} else {
		partner.SponsorID = nil
	}
	if err := s.partners.Save(ctx, partner); err != nil {
		return err
	}

	// Settle the old chain, then credit the new one.
	for _, ancestorID := range oldAncestors {
		deltas := store.CounterDeltas{
			TotalDownline:  -subtreeSize,
			ActiveDownline: -activeCount,
			TeamVolume:     -volume,
		}
		if oldSponsorID != nil && ancestorID == *oldSponsorID {
			deltas.DirectReferrals = -1
		}
		if err := s.partners.AddCounters(ctx, ancestorID, deltas); err != nil {
			return fmt.Errorf("error updating old ancestor counters: %w", err)
		}
	}
	newAncestors, err := models.DecodePath(newPath)
	if err != nil {
		return fmt.Errorf("error decoding path: %w", err)
	}
	for _, ancestorID := range newAncestors {
		deltas := store.CounterDeltas{
			TotalDownline:  subtreeSize,
			ActiveDownline: activeCount,
			TeamVolume:     volume,
		}
		if ancestorID == newSponsor.ID {
			deltas.DirectReferrals = 1
		}
		if err := s.partners.AddCounters(ctx, ancestorID, deltas); err != nil {
			return fmt.Errorf("error updating new ancestor counters: %w", err)
		}
	}

	// Rewrite descendant prefixes; depth offsets inside the subtree are
	// preserved.
	levelDelta := newLevel - oldLevel
	prefix, err := models.DecodePath(newPath)
	if err != nil {
		return fmt.Errorf("error decoding path: %w", err)
	}
	prefix = append(prefix, partner.ID)
	for _, d := range descendants {
		desc := d
		chain, err := models.DecodePath(desc.Path)
		if err != nil {
			return fmt.Errorf("error decoding descendant path: %w", err)
		}
		idx := -1
		for i, id := range chain {
			if id == partner.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("descendant %s does not contain %s in its path", desc.ID, partner.ID)
		}
		rewritten := make([]uuid.UUID, 0, len(prefix)+len(chain)-idx-1)
		rewritten = append(rewritten, prefix...)
		rewritten = append(rewritten, chain[idx+1:]...)
		desc.Path = models.EncodePath(rewritten)
		desc.Level += levelDelta
		if err := s.partners.Save(ctx, &desc); err != nil {
			return fmt.Errorf("error rewriting descendant %s: %w", desc.ID, err)
		}
	}
	return nil
}

func (s *Service) getPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	p, err := s.partners.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPartnerNotFound, id)
		}
		return nil, err
	}
	return p, nil
}
