package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/jobs"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/services/fraud"
	"github.com/uplinepay/backend/internal/store"
)

// FraudHandler exposes fraud analysis and alert management
type FraudHandler struct {
	engine  *fraud.Engine
	scanJob *jobs.FraudScanJob
	alerts  store.AlertStore
	rules   store.ConfigProvider
}

// NewFraudHandler creates a new fraud handler
func NewFraudHandler(engine *fraud.Engine, scanJob *jobs.FraudScanJob, alerts store.AlertStore, rules store.ConfigProvider) *FraudHandler {
	return &FraudHandler{
		engine:  engine,
		scanJob: scanJob,
		alerts:  alerts,
		rules:   rules,
	}
}

// AnalyzePartner runs the fraud detectors against a partner inline and
// returns the surviving alerts
func (h *FraudHandler) AnalyzePartner(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	rules, err := h.rules.RuleSet(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rules"})
		return
	}

	alerts, err := h.engine.AnalyzePartner(c.Request.Context(), partnerID, rules)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fraud analysis failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"partner_id": partnerID,
		"count":      len(alerts),
		"alerts":     alerts,
	})
}

// ScheduleScan enqueues a background fraud scan for a partner
func (h *FraudHandler) ScheduleScan(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	jobID, err := h.scanJob.EnqueueFraudScanJob(c.Request.Context(), partnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue fraud scan"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// ListAlerts lists alerts raised against a partner
func (h *FraudHandler) ListAlerts(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	alerts, err := h.alerts.ListAlerts(c.Request.Context(), partnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"partner_id": partnerID,
		"count":      len(alerts),
		"alerts":     alerts,
	})
}

// UpdateAlertStatus advances an alert through its review lifecycle
func (h *FraudHandler) UpdateAlertStatus(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.alerts.GetAlert(c.Request.Context(), alertID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get alert"})
		return
	}

	if err := alert.TransitionTo(models.AlertStatus(input.Status)); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if input.Reason != "" {
		alert.RecordAction(models.ActionInvestigate, false, input.Reason, time.Now())
	}

	if err := h.alerts.SaveAlert(c.Request.Context(), alert); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save alert"})
		return
	}

	c.JSON(http.StatusOK, alert)
}
