package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/services/hierarchy"
	"github.com/uplinepay/backend/internal/store"
)

// PartnerHandler handles partner network requests
type PartnerHandler struct {
	hierarchySvc *hierarchy.Service
	partners     store.PartnerStore
}

// NewPartnerHandler creates a new partner handler
func NewPartnerHandler(hierarchySvc *hierarchy.Service, partners store.PartnerStore) *PartnerHandler {
	return &PartnerHandler{
		hierarchySvc: hierarchySvc,
		partners:     partners,
	}
}

// CreatePartner enrolls a new partner under an optional sponsor
func (h *PartnerHandler) CreatePartner(c *gin.Context) {
	var input struct {
		Name      string `json:"name" binding:"required"`
		Email     string `json:"email" binding:"required,email"`
		Phone     string `json:"phone"`
		Address   string `json:"address"`
		SponsorID string `json:"sponsor_id"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sponsorID *uuid.UUID
	if input.SponsorID != "" {
		id, err := uuid.Parse(input.SponsorID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sponsor ID"})
			return
		}
		sponsorID = &id
	}

	partner, err := h.hierarchySvc.AddPartner(c.Request.Context(), hierarchy.NewPartnerInput{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
	}, sponsorID)
	if err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrInvalidSponsor), errors.Is(err, hierarchy.ErrDepthExceeded):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, hierarchy.ErrPartnerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create partner"})
		}
		return
	}

	c.JSON(http.StatusCreated, partner)
}

// GetPartner gets a partner by ID
func (h *PartnerHandler) GetPartner(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	partner, err := h.partners.Get(c.Request.Context(), partnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get partner"})
		return
	}

	c.JSON(http.StatusOK, partner)
}

// GetUpline returns a partner's sponsor chain, immediate sponsor first
func (h *PartnerHandler) GetUpline(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	upline, err := h.hierarchySvc.GetUpline(c.Request.Context(), partnerID)
	if err != nil {
		if errors.Is(err, hierarchy.ErrPartnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get upline"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"partner_id": partnerID,
		"upline":     hierarchy.SponsorFirst(upline),
	})
}

// GetDownline returns a partner's subtree, optionally depth-limited
// and filtered to active partners
func (h *PartnerHandler) GetDownline(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	maxLevels := 0
	if raw := c.Query("max_levels"); raw != "" {
		maxLevels, err = strconv.Atoi(raw)
		if err != nil || maxLevels < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_levels"})
			return
		}
	}
	activeOnly := c.Query("active_only") == "true"

	downline, err := h.hierarchySvc.GetDownline(c.Request.Context(), partnerID, maxLevels, activeOnly)
	if err != nil {
		if errors.Is(err, hierarchy.ErrPartnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get downline"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"partner_id": partnerID,
		"count":      len(downline),
		"downline":   downline,
	})
}

// UpdateMetrics applies a partial metric update to a partner
func (h *PartnerHandler) UpdateMetrics(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	var input hierarchy.MetricsUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	partner, err := h.hierarchySvc.UpdateMetrics(c.Request.Context(), partnerID, input)
	if err != nil {
		if errors.Is(err, hierarchy.ErrPartnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update metrics"})
		return
	}

	c.JSON(http.StatusOK, partner)
}

// MovePartner reparents a partner and its subtree under a new sponsor
func (h *PartnerHandler) MovePartner(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	var input struct {
		NewSponsorID string `json:"new_sponsor_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newSponsorID, err := uuid.Parse(input.NewSponsorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sponsor ID"})
		return
	}

	if err := h.hierarchySvc.MovePartner(c.Request.Context(), partnerID, newSponsorID); err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrSelfCycle), errors.Is(err, hierarchy.ErrDepthExceeded), errors.Is(err, hierarchy.ErrInvalidSponsor):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, hierarchy.ErrPartnerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to move partner"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "partner moved"})
}

// DeactivatePartner deactivates a partner and optionally redistributes
// its direct children to the partner's own sponsor
func (h *PartnerHandler) DeactivatePartner(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	var input struct {
		Reason       string `json:"reason" binding:"required"`
		Redistribute bool   `json:"redistribute"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.hierarchySvc.DeactivatePartner(c.Request.Context(), partnerID, input.Reason, input.Redistribute); err != nil {
		if errors.Is(err, hierarchy.ErrPartnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate partner"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "partner deactivated"})
}

// ValidateHierarchy checks structural integrity of the whole tree
func (h *PartnerHandler) ValidateHierarchy(c *gin.Context) {
	report, err := h.hierarchySvc.ValidateHierarchy(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate hierarchy"})
		return
	}

	status := http.StatusOK
	if !report.Valid() {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}
