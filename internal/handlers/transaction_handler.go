package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/jobs"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/queue"
	"gorm.io/gorm"
)

// TransactionHandler records sales transactions and exposes their
// commission distributions
type TransactionHandler struct {
	db            *gorm.DB
	commissionJob *jobs.CommissionJob
	queue         *queue.Queue
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(db *gorm.DB, commissionJob *jobs.CommissionJob, q *queue.Queue) *TransactionHandler {
	return &TransactionHandler{
		db:            db,
		commissionJob: commissionJob,
		queue:         q,
	}
}

// CreateTransaction records a transaction and enqueues its commission
// calculation
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var input struct {
		PartnerID string                 `json:"partner_id" binding:"required"`
		Amount    float64                `json:"amount" binding:"required,gt=0"`
		Currency  string                 `json:"currency" binding:"required"`
		ProductID string                 `json:"product_id" binding:"required"`
		Timestamp *time.Time             `json:"timestamp"`
		Metadata  map[string]interface{} `json:"metadata"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	partnerID, err := uuid.Parse(input.PartnerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner ID"})
		return
	}

	timestamp := time.Now()
	if input.Timestamp != nil {
		timestamp = *input.Timestamp
	}

	tx := models.Transaction{
		PartnerID: partnerID,
		Amount:    input.Amount,
		Currency:  models.Currency(input.Currency),
		ProductID: input.ProductID,
		Timestamp: timestamp,
		Metadata:  models.JSON(input.Metadata),
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&tx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record transaction"})
		return
	}

	jobID, err := h.commissionJob.EnqueueCommissionJob(c.Request.Context(), tx.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transaction recorded but commission job failed to enqueue"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction": tx,
		"job_id":      jobID,
	})
}

// GetDistribution returns the commission distribution for a transaction
func (h *TransactionHandler) GetDistribution(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	var dist models.CommissionDistribution
	if err := h.db.WithContext(c.Request.Context()).Where("transaction_id = ?", txID).First(&dist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no distribution for transaction"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get distribution"})
		return
	}

	c.JSON(http.StatusOK, dist)
}

// GetJob returns the status of a background job
func (h *TransactionHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return
	}

	job, err := h.queue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}
