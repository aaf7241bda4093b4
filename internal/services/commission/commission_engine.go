// Package commission prices transactions across an ordered upline
// according to a rule-set snapshot: qualified tiers per level, product
// rate overrides, earnings caps and bonus rules, plus reduced-rate
// residuals on subscription renewals.
package commission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/store"
	"github.com/uplinepay/backend/internal/utils"
)

// ErrInvalidAmount is returned for non-positive transaction amounts.
var ErrInvalidAmount = errors.New("transaction amount must be positive")

// consistencyEpsilon bounds the acceptable rounding drift between the
// stored total and the sum of its parts.
const consistencyEpsilon = 0.01

// Engine computes commission distributions. It is a pure function of
// (transaction, upline snapshot, rule-set) and holds no memory of past
// computations; de-duplication per transaction id belongs to the
// persistence layer.
type Engine struct {
	catalog store.ProductCatalog
	now     func() time.Time
}

// NewEngine creates a commission engine over a product catalog.
func NewEngine(catalog store.ProductCatalog) *Engine {
	return &Engine{catalog: catalog, now: time.Now}
}

// Calculate distributes a transaction's value across the upline, which
// must be ordered immediate-sponsor-first. A non-commissionable or
// unknown product yields a zero-value distribution, not an error.
func (e *Engine) Calculate(ctx context.Context, tx models.Transaction, upline []models.Partner, rules *models.RuleSet) (*models.CommissionDistribution, error) {
	if tx.Amount <= 0 {
		return nil, fmt.Errorf("%w: got %.2f", ErrInvalidAmount, tx.Amount)
	}

	dist := &models.CommissionDistribution{
		TransactionID: tx.ID,
		Commissions:   models.CommissionResults{},
		Bonuses:       models.BonusResults{},
		ComputedAt:    e.now(),
	}

	product, err := e.catalog.Lookup(ctx, tx.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dist, nil
		}
		return nil, err
	}
	if !product.Commissionable {
		return dist, nil
	}

	depth := len(upline)
	if rules.MaxHierarchyLevels > 0 && depth > rules.MaxHierarchyLevels {
		depth = rules.MaxHierarchyLevels
	}

	total := 0.0
	for i := 0; i < depth; i++ {
		partner := upline[i]
		level := i + 1

		tier := selectTier(rules, level, &partner)
		if tier == nil {
			continue
		}

		rate := tier.Rate
		if override, ok := product.RateOverrides[level]; ok {
			rate = override
		}

		var amount float64
		switch tier.RateKind {
		case models.RateFixed:
			amount = rate
		default:
			amount = tx.Amount * rate
		}

		if tier.MinTransactionVolume != nil && tx.Amount < *tier.MinTransactionVolume {
			continue
		}

		if tier.MaxMonthlyEarnings != nil {
			remaining := *tier.MaxMonthlyEarnings - partner.MonthEarnings
			if amount > remaining {
				amount = remaining
			}
		}
		for _, cap := range rules.Caps {
			if cap.AppliesTo(level) && amount > cap.MaxAmount {
				amount = cap.MaxAmount
			}
		}

		amount = utils.RoundCurrency(amount)
		if amount <= 0 {
			continue
		}

		dist.Commissions = append(dist.Commissions, models.CommissionResult{
			PartnerID: partner.ID,
			Level:     level,
			Rate:      rate,
			RateKind:  tier.RateKind,
			Amount:    amount,
		})
		total += amount

		for _, rule := range rules.BonusRules {
			if !rule.Qualification.Matches(&partner) {
				continue
			}
			if !triggerMet(rule.Trigger, &partner) {
				continue
			}
			bonus := rule.RewardAmount
			if rule.RewardKind == models.RewardPercentage {
				bonus = tx.Amount * rule.RewardAmount
			}
			bonus = utils.RoundCurrency(bonus)
			if bonus <= 0 {
				continue
			}
			dist.Bonuses = append(dist.Bonuses, models.BonusResult{
				PartnerID: partner.ID,
				RuleName:  rule.Name,
				Amount:    bonus,
			})
			total += bonus
		}
	}

	dist.TotalPaid = utils.RoundCurrency(total)
	return dist, nil
}

// ResidualTransactionID derives the deterministic id of the synthetic
// transaction for a subscription's residual payout in the month of at.
func ResidualTransactionID(subscriptionID uuid.UUID, at time.Time) uuid.UUID {
	return uuid.NewSHA1(subscriptionID, []byte(at.UTC().Format("2006-01")))
}

// CalculateResiduals prices subscription renewals that fall inside the
// configured residual period, scaling every commission by the residual
// factor. Subscriptions outside the period are skipped, not errored.
func (e *Engine) CalculateResiduals(ctx context.Context, subs []models.Subscription, upline []models.Partner, rules *models.RuleSet) ([]models.CommissionDistribution, error) {
	if !rules.ResidualEnabled {
		return nil, nil
	}

	now := e.now()
	var out []models.CommissionDistribution
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		if sub.ActiveMonths(now) > rules.ResidualPeriodMonths {
			continue
		}

		// One synthetic transaction per subscription per calendar
		// month: re-running a sweep inside the month stays
		// idempotent at the persistence layer, the next month pays
		// again.
		tx := models.Transaction{
			Base:      models.Base{ID: ResidualTransactionID(sub.ID, now)},
			PartnerID: sub.PartnerID,
			Amount:    sub.RecurringAmount,
			Currency:  sub.Currency,
			ProductID: sub.ProductID,
			Timestamp: now,
		}
		dist, err := e.Calculate(ctx, tx, upline, rules)
		if err != nil {
			return nil, fmt.Errorf("error pricing subscription %s: %w", sub.ID, err)
		}

		total := 0.0
		for i := range dist.Commissions {
			dist.Commissions[i].Amount = utils.RoundCurrency(dist.Commissions[i].Amount * rules.ResidualFactor)
			total += dist.Commissions[i].Amount
		}
		for _, b := range dist.Bonuses {
			total += b.Amount
		}
		dist.TotalPaid = utils.RoundCurrency(total)
		dist.Residual = true
		out = append(out, *dist)
	}
	return out, nil
}

// Consistent reports whether a distribution's total matches the sum of
// its commission and bonus amounts within the rounding epsilon.
func Consistent(dist *models.CommissionDistribution) bool {
	sum := 0.0
	for _, c := range dist.Commissions {
		sum += c.Amount
	}
	for _, b := range dist.Bonuses {
		sum += b.Amount
	}
	return math.Abs(sum-dist.TotalPaid) < consistencyEpsilon
}

// selectTier picks, among the tiers configured for the level whose
// qualification the partner satisfies, the one with the highest rate.
func selectTier(rules *models.RuleSet, level int, partner *models.Partner) *models.CommissionTier {
	var best *models.CommissionTier
	for _, tier := range rules.TiersForLevel(level) {
		if !tier.Qualification.Matches(partner) {
			continue
		}
		t := tier
		if best == nil || t.Rate > best.Rate {
			best = &t
		}
	}
	return best
}

// triggerMet evaluates a bonus trigger against the partner's stored
// metric named by the trigger.
func triggerMet(trigger models.BonusTrigger, partner *models.Partner) bool {
	var value float64
	switch trigger.Metric {
	case models.MetricMonthlyVolume:
		value = partner.MonthlyVolume
	case models.MetricActiveDownline:
		value = float64(partner.ActiveDownline)
	case models.MetricPersonalVolume:
		value = partner.PersonalVolume
	case models.MetricConsecutiveActiveMonths:
		value = float64(partner.ConsecutiveActiveMonths)
	default:
		return false
	}

	switch trigger.Operator {
	case models.OperatorEquals:
		return value == trigger.Value
	case models.OperatorGreaterThan:
		return value > trigger.Value
	case models.OperatorLessThan:
		return value < trigger.Value
	case models.OperatorBetween:
		if trigger.UpperValue == nil {
			return false
		}
		return value >= trigger.Value && value <= *trigger.UpperValue
	default:
		return false
	}
}
