package store

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
)

// StatusExecutor is an ActionExecutor that applies fraud responses by
// changing partner status through the partner store.
type StatusExecutor struct {
	partners PartnerStore
}

// NewStatusExecutor wires an executor to a partner store.
func NewStatusExecutor(partners PartnerStore) *StatusExecutor {
	return &StatusExecutor{partners: partners}
}

// Suspend marks a partner suspended.
func (e *StatusExecutor) Suspend(ctx context.Context, partnerID uuid.UUID, reason string) error {
	return e.setStatus(ctx, partnerID, models.PartnerStatusSuspended, reason)
}

// Block terminates a partner.
func (e *StatusExecutor) Block(ctx context.Context, partnerID uuid.UUID, reason string) error {
	return e.setStatus(ctx, partnerID, models.PartnerStatusTerminated, reason)
}

func (e *StatusExecutor) setStatus(ctx context.Context, partnerID uuid.UUID, status models.PartnerStatus, reason string) error {
	p, err := e.partners.Get(ctx, partnerID)
	if err != nil {
		return fmt.Errorf("error loading partner for %s: %w", status, err)
	}
	p.Status = status
	p.DeactivationReason = reason
	if err := e.partners.Save(ctx, p); err != nil {
		return fmt.Errorf("error applying %s: %w", status, err)
	}
	log.Printf("Partner %s set to %s: %s", partnerID, status, reason)
	return nil
}
