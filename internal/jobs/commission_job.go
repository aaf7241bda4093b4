package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/queue"
	"github.com/uplinepay/backend/internal/services/commission"
	"github.com/uplinepay/backend/internal/services/hierarchy"
	"github.com/uplinepay/backend/internal/store"
	"gorm.io/gorm"
)

// CommissionJobPayload identifies the transaction to distribute
// commissions for.
type CommissionJobPayload struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

// CommissionJob distributes multi-level commissions for a recorded
// transaction and credits the recipients' monthly earnings.
type CommissionJob struct {
	db           *gorm.DB
	queue        queue.Enqueuer
	hierarchySvc *hierarchy.Service
	engine       *commission.Engine
	rules        store.ConfigProvider
}

// NewCommissionJob creates a new commission job handler
func NewCommissionJob(db *gorm.DB, q queue.Enqueuer, hierarchySvc *hierarchy.Service, engine *commission.Engine, rules store.ConfigProvider) *CommissionJob {
	return &CommissionJob{
		db:           db,
		queue:        q,
		hierarchySvc: hierarchySvc,
		engine:       engine,
		rules:        rules,
	}
}

// RegisterCommissionJobHandlers registers the commission job handlers
func RegisterCommissionJobHandlers(q *queue.Queue, db *gorm.DB, hierarchySvc *hierarchy.Service, engine *commission.Engine, rules store.ConfigProvider) {
	handler := NewCommissionJob(db, q, hierarchySvc, engine, rules)
	q.RegisterHandler(queue.JobTypeCalculateCommission, func(ctx context.Context, job queue.Job) error {
		return handler.ProcessCommission(ctx, &job)
	})
	q.RegisterHandler(queue.JobTypeCalculateResiduals, func(ctx context.Context, job queue.Job) error {
		return handler.ProcessResiduals(ctx, &job)
	})
}

// EnqueueCommissionJob enqueues a commission calculation for a transaction
func (j *CommissionJob) EnqueueCommissionJob(ctx context.Context, transactionID uuid.UUID) (uuid.UUID, error) {
	return j.queue.Enqueue(ctx, queue.JobTypeCalculateCommission, CommissionJobPayload{TransactionID: transactionID})
}

// ProcessCommission runs the commission engine for one transaction.
// Calculation is idempotent: a distribution already persisted for the
// transaction is left untouched and the job completes without side
// effects.
func (j *CommissionJob) ProcessCommission(ctx context.Context, job *queue.Job) error {
	var payload CommissionJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal commission job payload: %w", err)
	}

	var tx models.Transaction
	if err := j.db.WithContext(ctx).First(&tx, "id = ?", payload.TransactionID).Error; err != nil {
		return fmt.Errorf("failed to get transaction: %w", err)
	}

	var existing models.CommissionDistribution
	result := j.db.WithContext(ctx).Where("transaction_id = ?", tx.ID).First(&existing)
	if result.Error == nil {
		log.Printf("Commission distribution for transaction %s already exists, skipping", tx.ID)
		return nil
	} else if result.Error != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to check existing distribution: %w", result.Error)
	}

	rules, err := j.rules.RuleSet(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rule set: %w", err)
	}

	upline, err := j.hierarchySvc.GetUpline(ctx, tx.PartnerID)
	if err != nil {
		return fmt.Errorf("failed to resolve upline: %w", err)
	}

	dist, err := j.engine.Calculate(ctx, tx, hierarchy.SponsorFirst(upline), rules)
	if err != nil {
		return fmt.Errorf("failed to calculate commissions: %w", err)
	}

	if err := j.db.WithContext(ctx).Create(dist).Error; err != nil {
		return fmt.Errorf("failed to persist distribution: %w", err)
	}

	if err := j.hierarchySvc.RecordSale(ctx, tx.PartnerID, tx.Amount); err != nil {
		return fmt.Errorf("failed to record sale volume: %w", err)
	}
	for _, res := range dist.Commissions {
		if err := j.hierarchySvc.CreditEarnings(ctx, res.PartnerID, res.Amount); err != nil {
			return fmt.Errorf("failed to credit earnings: %w", err)
		}
	}
	for _, bonus := range dist.Bonuses {
		if err := j.hierarchySvc.CreditEarnings(ctx, bonus.PartnerID, bonus.Amount); err != nil {
			return fmt.Errorf("failed to credit bonus earnings: %w", err)
		}
	}

	log.Printf("Distributed %.2f in commissions for transaction %s across %d partners",
		dist.TotalPaid, tx.ID, len(dist.Commissions))
	return nil
}

// ResidualJobPayload identifies the partner whose active subscriptions
// should produce residual commissions for the current period.
type ResidualJobPayload struct {
	PartnerID uuid.UUID `json:"partner_id"`
}

// EnqueueResidualJob enqueues a residual commission run for a partner
func (j *CommissionJob) EnqueueResidualJob(ctx context.Context, partnerID uuid.UUID) (uuid.UUID, error) {
	return j.queue.Enqueue(ctx, queue.JobTypeCalculateResiduals, ResidualJobPayload{PartnerID: partnerID})
}

// ProcessResiduals runs residual commission calculation over a
// partner's active subscriptions.
func (j *CommissionJob) ProcessResiduals(ctx context.Context, job *queue.Job) error {
	var payload ResidualJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal residual job payload: %w", err)
	}

	var subs []models.Subscription
	if err := j.db.WithContext(ctx).Where("partner_id = ?", payload.PartnerID).Find(&subs).Error; err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	rules, err := j.rules.RuleSet(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rule set: %w", err)
	}

	upline, err := j.hierarchySvc.GetUpline(ctx, payload.PartnerID)
	if err != nil {
		return fmt.Errorf("failed to resolve upline: %w", err)
	}

	dists, err := j.engine.CalculateResiduals(ctx, subs, hierarchy.SponsorFirst(upline), rules)
	if err != nil {
		return fmt.Errorf("failed to calculate residuals: %w", err)
	}

	for i := range dists {
		dist := &dists[i]
		var existing models.CommissionDistribution
		result := j.db.WithContext(ctx).Where("transaction_id = ?", dist.TransactionID).First(&existing)
		if result.Error == nil {
			continue
		} else if result.Error != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check existing residual distribution: %w", result.Error)
		}
		if err := j.db.WithContext(ctx).Create(dist).Error; err != nil {
			return fmt.Errorf("failed to persist residual distribution: %w", err)
		}
		for _, res := range dist.Commissions {
			if err := j.hierarchySvc.CreditEarnings(ctx, res.PartnerID, res.Amount); err != nil {
				return fmt.Errorf("failed to credit residual earnings: %w", err)
			}
		}
	}

	log.Printf("Processed %d residual distributions for partner %s", len(dists), payload.PartnerID)
	return nil
}
