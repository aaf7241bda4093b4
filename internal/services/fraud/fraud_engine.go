// Package fraud scores partners for anomalous referral, payment and
// behavioral patterns. Six independent detectors each produce zero or
// more alerts; surviving alerts (after threshold filtering) are stored
// and drive exactly one automated response each.
package fraud

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/store"
)

// Detector lookback windows.
const (
	velocityWindow = 24 * time.Hour
	paymentWindow  = 30 * 24 * time.Hour
	historyWindow  = 90 * 24 * time.Hour
	historyDays    = 90.0
)

// Engine runs fraud analysis for one partner at a time. Analysis is
// read-only until the final step; alert and risk-profile writes are
// serialized per partner so concurrent runs cannot interleave.
type Engine struct {
	partners store.PartnerStore
	activity store.ActivityLog
	alerts   store.AlertStore
	executor store.ActionExecutor
	now      func() time.Time

	locks [64]sync.Mutex
}

// NewEngine creates a fraud engine over the given collaborators.
func NewEngine(partners store.PartnerStore, activity store.ActivityLog, alerts store.AlertStore, executor store.ActionExecutor) *Engine {
	return &Engine{
		partners: partners,
		activity: activity,
		alerts:   alerts,
		executor: executor,
		now:      time.Now,
	}
}

// partnerLock maps a partner id onto a fixed mutex shard. The same
// partner always lands on the same shard, so profile writes stay
// serialized while memory stays bounded for arbitrarily large
// networks.
func (e *Engine) partnerLock(id uuid.UUID) *sync.Mutex {
	return &e.locks[int(id[0])%len(e.locks)]
}

// AnalyzePartner runs every detector for one partner, filters the
// resulting alerts through the configured thresholds, stores survivors
// and triggers their automated actions. All side effects happen after
// detection completes, so a cancelled analysis leaves no partial state.
func (e *Engine) AnalyzePartner(ctx context.Context, partnerID uuid.UUID, rules *models.RuleSet) ([]models.FraudAlert, error) {
	partner, err := e.partners.Get(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("error loading partner: %w", err)
	}

	now := e.now()
	referrals, err := e.activity.Referrals(ctx, partnerID, now.Add(-historyWindow))
	if err != nil {
		return nil, fmt.Errorf("error loading referrals: %w", err)
	}
	var recent []models.ReferralRecord
	cutoff := now.Add(-velocityWindow)
	for _, r := range referrals {
		if !r.OccurredAt.Before(cutoff) {
			recent = append(recent, r)
		}
	}
	payments, err := e.activity.Events(ctx, partnerID, models.ActivityPayment, now.Add(-paymentWindow))
	if err != nil {
		return nil, fmt.Errorf("error loading payments: %w", err)
	}
	logins, err := e.activity.Events(ctx, partnerID, models.ActivityLogin, now.Add(-historyWindow))
	if err != nil {
		return nil, fmt.Errorf("error loading logins: %w", err)
	}
	allPartners, err := e.partners.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing partners: %w", err)
	}

	var candidates []models.FraudAlert
	candidates = append(candidates, detectReferralVelocity(now, recent, len(referrals)-len(recent))...)
	candidates = append(candidates, detectGeoConcentration(now, referrals)...)
	candidates = append(candidates, detectPaymentPattern(now, payments)...)
	candidates = append(candidates, detectAccountSimilarity(now, partner, allPartners)...)
	manipulation, err := e.detectNetworkManipulation(ctx, now, partnerID, referrals)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, manipulation...)
	candidates = append(candidates, detectBehavioralPattern(now, logins)...)

	// Keep an alert only if no threshold is configured for its
	// category, or its score clears the configured value.
	var surviving []models.FraudAlert
	for _, alert := range candidates {
		threshold := rules.ThresholdFor(alert.Category)
		if threshold != nil && alert.RiskScore < threshold.Value {
			continue
		}
		surviving = append(surviving, alert)
	}
	if len(surviving) == 0 {
		return nil, nil
	}

	lock := e.partnerLock(partnerID)
	lock.Lock()
	defer lock.Unlock()

	maxScore := 0.0
	for i := range surviving {
		alert := &surviving[i]
		alert.PartnerID = partnerID
		alert.Status = models.AlertStatusOpen

		action := models.ActionFlag
		if threshold := rules.ThresholdFor(alert.Category); threshold != nil && threshold.Action != "" {
			action = threshold.Action
		}
		if err := e.applyAction(ctx, alert, action, now); err != nil {
			return nil, err
		}
		if err := e.alerts.SaveAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("error saving alert: %w", err)
		}
		if alert.RiskScore > maxScore {
			maxScore = alert.RiskScore
		}
		log.Printf("Fraud alert for partner %s: %s (%s, score %.2f, action %s)",
			partnerID, alert.Category, alert.Severity, alert.RiskScore, action)
	}

	// Automated actions may have rewritten the partner row, so reload
	// before persisting the raised risk score.
	current, err := e.partners.Get(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("error reloading partner: %w", err)
	}
	if maxScore > current.RiskScore {
		current.RiskScore = maxScore
		if err := e.partners.Save(ctx, current); err != nil {
			return nil, fmt.Errorf("error updating risk profile: %w", err)
		}
	}

	return surviving, nil
}

// applyAction records the automated response on the alert and, for
// suspend/block, invokes the external executor. Flag and investigate
// are no-ops beyond recording.
func (e *Engine) applyAction(ctx context.Context, alert *models.FraudAlert, action models.ActionKind, now time.Time) error {
	reason := fmt.Sprintf("automated response to %s alert (score %.2f)", alert.Category, alert.RiskScore)
	alert.RecordAction(action, true, reason, now)

	switch action {
	case models.ActionInvestigate:
		if err := alert.TransitionTo(models.AlertStatusInvestigating); err != nil {
			return err
		}
	case models.ActionSuspend:
		if err := e.executor.Suspend(ctx, alert.PartnerID, reason); err != nil {
			return fmt.Errorf("error suspending partner: %w", err)
		}
	case models.ActionBlock:
		if err := e.executor.Block(ctx, alert.PartnerID, reason); err != nil {
			return fmt.Errorf("error blocking partner: %w", err)
		}
	}
	return nil
}
