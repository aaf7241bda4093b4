package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/queue"
	"github.com/uplinepay/backend/internal/services/fraud"
	"github.com/uplinepay/backend/internal/store"
)

// FraudScanJobPayload identifies the partner to analyze.
type FraudScanJobPayload struct {
	PartnerID uuid.UUID `json:"partner_id"`
}

// FraudScanJob runs the fraud detectors against a single partner.
type FraudScanJob struct {
	queue    queue.Enqueuer
	engine   *fraud.Engine
	rules    store.ConfigProvider
	partners store.PartnerStore
}

// NewFraudScanJob creates a new fraud scan job handler
func NewFraudScanJob(q queue.Enqueuer, engine *fraud.Engine, rules store.ConfigProvider, partners store.PartnerStore) *FraudScanJob {
	return &FraudScanJob{
		queue:    q,
		engine:   engine,
		rules:    rules,
		partners: partners,
	}
}

// RegisterFraudScanJobHandlers registers the fraud scan job handlers
func RegisterFraudScanJobHandlers(q *queue.Queue, engine *fraud.Engine, rules store.ConfigProvider, partners store.PartnerStore) {
	handler := NewFraudScanJob(q, engine, rules, partners)
	q.RegisterHandler(queue.JobTypeFraudAnalysis, func(ctx context.Context, job queue.Job) error {
		return handler.ProcessFraudScan(ctx, &job)
	})
}

// EnqueueFraudScanJob enqueues a fraud analysis for a partner
func (j *FraudScanJob) EnqueueFraudScanJob(ctx context.Context, partnerID uuid.UUID) (uuid.UUID, error) {
	return j.queue.Enqueue(ctx, queue.JobTypeFraudAnalysis, FraudScanJobPayload{PartnerID: partnerID})
}

// ProcessFraudScan analyzes a single partner and persists any alerts
// that survive threshold filtering.
func (j *FraudScanJob) ProcessFraudScan(ctx context.Context, job *queue.Job) error {
	var payload FraudScanJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal fraud scan job payload: %w", err)
	}

	rules, err := j.rules.RuleSet(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rule set: %w", err)
	}

	alerts, err := j.engine.AnalyzePartner(ctx, payload.PartnerID, rules)
	if err != nil {
		return fmt.Errorf("failed to analyze partner %s: %w", payload.PartnerID, err)
	}
	if len(alerts) > 0 {
		log.Printf("Fraud analysis raised %d alert(s) for partner %s", len(alerts), payload.PartnerID)
	}
	return nil
}

// EnqueueSweep enqueues a fraud analysis job for every active partner.
// Scheduled daily, it keeps risk profiles current without an inline
// scan on every event.
func (j *FraudScanJob) EnqueueSweep(ctx context.Context) (int, error) {
	partners, err := j.partners.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list partners: %w", err)
	}

	enqueued := 0
	for _, p := range partners {
		if !p.IsActive() {
			continue
		}
		if _, err := j.EnqueueFraudScanJob(ctx, p.ID); err != nil {
			return enqueued, fmt.Errorf("failed to enqueue fraud scan for %s: %w", p.ID, err)
		}
		enqueued++
	}
	log.Printf("Enqueued fraud scans for %d active partners", enqueued)
	return enqueued, nil
}
