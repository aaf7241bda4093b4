package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
)

// MemoryStore is an in-memory PartnerStore and AlertStore. Reads return
// copies taken under the lock, so traversals never observe a torn write.
type MemoryStore struct {
	mu       sync.RWMutex
	partners map[uuid.UUID]models.Partner
	alerts   map[uuid.UUID]models.FraudAlert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partners: make(map[uuid.UUID]models.Partner),
		alerts:   make(map[uuid.UUID]models.FraudAlert),
	}
}

// Get retrieves a partner by id.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partners[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// GetMany resolves ids preserving the requested order.
func (s *MemoryStore) GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Partner, 0, len(ids))
	for _, id := range ids {
		p, ok := s.partners[id]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, p)
	}
	return out, nil
}

// ListAll returns every partner.
func (s *MemoryStore) ListAll(ctx context.Context) ([]models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Partner, 0, len(s.partners))
	for _, p := range s.partners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

// ListDirectChildren returns partners sponsored directly by id.
func (s *MemoryStore) ListDirectChildren(ctx context.Context, id uuid.UUID) ([]models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Partner
	for _, p := range s.partners {
		if p.SponsorID != nil && *p.SponsorID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

// ListDescendants returns every partner whose path contains id.
func (s *MemoryStore) ListDescendants(ctx context.Context, id uuid.UUID) ([]models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Partner
	for _, p := range s.partners {
		if models.PathContains(p.Path, id) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// Create stores a new partner.
func (s *MemoryStore) Create(ctx context.Context, p *models.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.partners[p.ID] = *p
	return nil
}

// Save overwrites an existing partner row.
func (s *MemoryStore) Save(ctx context.Context, p *models.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partners[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	s.partners[p.ID] = *p
	return nil
}

// AddCounters applies counter deltas atomically under the store lock.
func (s *MemoryStore) AddCounters(ctx context.Context, id uuid.UUID, deltas CounterDeltas) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[id]
	if !ok {
		return ErrNotFound
	}
	p.TeamVolume += deltas.TeamVolume
	p.MonthEarnings += deltas.MonthEarnings
	p.DirectReferrals += deltas.DirectReferrals
	p.TotalDownline += deltas.TotalDownline
	p.ActiveDownline += deltas.ActiveDownline
	p.UpdatedAt = time.Now()
	s.partners[id] = p
	return nil
}

// SaveAlert stores or updates a fraud alert.
func (s *MemoryStore) SaveAlert(ctx context.Context, alert *models.FraudAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	now := time.Now()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now
	s.alerts[alert.ID] = *alert
	return nil
}

// GetAlert retrieves an alert by id.
func (s *MemoryStore) GetAlert(ctx context.Context, id uuid.UUID) (*models.FraudAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// ListAlerts returns all alerts for a partner, oldest first.
func (s *MemoryStore) ListAlerts(ctx context.Context, partnerID uuid.UUID) ([]models.FraudAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FraudAlert
	for _, a := range s.alerts {
		if a.PartnerID == partnerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemoryActivityLog is an in-memory ActivityLog.
type MemoryActivityLog struct {
	mu        sync.RWMutex
	referrals []models.ReferralRecord
	events    []models.ActivityEvent
}

// NewMemoryActivityLog creates an empty in-memory activity log.
func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{}
}

// AddReferral records a referral edge.
func (l *MemoryActivityLog) AddReferral(r models.ReferralRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.referrals = append(l.referrals, r)
}

// AddEvent records an activity event.
func (l *MemoryActivityLog) AddEvent(e models.ActivityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Referrals returns referral records by referrerID since a point in time.
func (l *MemoryActivityLog) Referrals(ctx context.Context, referrerID uuid.UUID, since time.Time) ([]models.ReferralRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.ReferralRecord
	for _, r := range l.referrals {
		if r.ReferrerID == referrerID && !r.OccurredAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// HasReferral reports whether a referrer->referred edge exists.
func (l *MemoryActivityLog) HasReferral(ctx context.Context, referrerID, referredID uuid.UUID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.referrals {
		if r.ReferrerID == referrerID && r.ReferredID == referredID {
			return true, nil
		}
	}
	return false, nil
}

// Events returns activity events of a kind since a point in time, oldest
// first.
func (l *MemoryActivityLog) Events(ctx context.Context, partnerID uuid.UUID, kind models.ActivityKind, since time.Time) ([]models.ActivityEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.ActivityEvent
	for _, e := range l.events {
		if e.PartnerID == partnerID && e.Kind == kind && !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// StaticCatalog is a fixed in-memory ProductCatalog.
type StaticCatalog struct {
	products map[string]models.Product
}

// NewStaticCatalog builds a catalog from a list of products.
func NewStaticCatalog(products ...models.Product) *StaticCatalog {
	m := make(map[string]models.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &StaticCatalog{products: m}
}

// Lookup resolves a product id.
func (c *StaticCatalog) Lookup(ctx context.Context, productID string) (*models.Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// StaticRules serves a fixed rule-set snapshot.
type StaticRules struct {
	rules models.RuleSet
}

// NewStaticRules wraps a rule set in a ConfigProvider.
func NewStaticRules(rules models.RuleSet) *StaticRules {
	return &StaticRules{rules: rules}
}

// RuleSet returns a copy of the configured snapshot.
func (s *StaticRules) RuleSet(ctx context.Context) (*models.RuleSet, error) {
	rules := s.rules
	return &rules, nil
}
