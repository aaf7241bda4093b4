package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/go-co-op/gocron"
	"github.com/uplinepay/backend/internal/queue"
	"github.com/uplinepay/backend/internal/services/commission"
	"github.com/uplinepay/backend/internal/services/fraud"
	"github.com/uplinepay/backend/internal/services/hierarchy"
	"github.com/uplinepay/backend/internal/store"
	"gorm.io/gorm"
)

// RegisterAllJobHandlers registers all job handlers with the queue
func RegisterAllJobHandlers(
	q *queue.Queue,
	db *gorm.DB,
	hierarchySvc *hierarchy.Service,
	commissionEngine *commission.Engine,
	fraudEngine *fraud.Engine,
	rules store.ConfigProvider,
	partners store.PartnerStore,
) {
	RegisterCommissionJobHandlers(q, db, hierarchySvc, commissionEngine, rules)
	RegisterFraudScanJobHandlers(q, fraudEngine, rules, partners)
}

// ScheduleRecurringJobs schedules the daily fraud sweep and the monthly
// residual commission run on the given scheduler. The scheduler is not
// started here; the caller owns its lifecycle.
func ScheduleRecurringJobs(
	scheduler *gocron.Scheduler,
	q *queue.Queue,
	db *gorm.DB,
	hierarchySvc *hierarchy.Service,
	commissionEngine *commission.Engine,
	fraudEngine *fraud.Engine,
	rules store.ConfigProvider,
	partners store.PartnerStore,
	sweepHour int,
) error {
	fraudJob := NewFraudScanJob(q, fraudEngine, rules, partners)
	commissionJob := NewCommissionJob(db, q, hierarchySvc, commissionEngine, rules)

	sweepAt := fmt.Sprintf("%02d:00", sweepHour)
	if _, err := scheduler.Every(1).Day().At(sweepAt).Do(func() {
		if _, err := fraudJob.EnqueueSweep(context.Background()); err != nil {
			log.Printf("Error enqueueing fraud sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule fraud sweep: %w", err)
	}

	if _, err := scheduler.Every(1).MonthLastDay().At("23:00").Do(func() {
		ctx := context.Background()
		all, err := partners.ListAll(ctx)
		if err != nil {
			log.Printf("Error listing partners for residual run: %v", err)
			return
		}
		for _, p := range all {
			if !p.IsActive() {
				continue
			}
			if _, err := commissionJob.EnqueueResidualJob(ctx, p.ID); err != nil {
				log.Printf("Error enqueueing residual job for %s: %v", p.ID, err)
			}
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule residual run: %w", err)
	}

	return nil
}
