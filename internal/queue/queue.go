// Package queue is a small background-job queue: redis lists carry the
// job ids, job state lives in the database.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeCalculateCommission JobType = "calculate_commission"
	JobTypeCalculateResiduals  JobType = "calculate_residuals"
	JobTypeFraudAnalysis       JobType = "fraud_analysis"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultMaxRetries is applied when a job does not set its own limit.
const DefaultMaxRetries = 3

// Job represents a background job
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type" gorm:"type:varchar(50);index"`
	Payload    json.RawMessage `json:"payload" gorm:"type:jsonb"`
	Status     JobStatus       `json:"status" gorm:"type:varchar(20);index"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:3"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) error

// Enqueuer is the write side of the queue, as seen by producers.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType JobType, payload interface{}) (uuid.UUID, error)
}

// Queue dispatches jobs over redis lists with job rows mirrored in the
// database for inspection and retry accounting.
type Queue struct {
	db     *gorm.DB
	client *redis.Client

	mu       sync.RWMutex
	handlers map[JobType]JobHandler
}

// NewQueue creates a new queue
func NewQueue(db *gorm.DB, client *redis.Client) *Queue {
	return &Queue{
		db:       db,
		client:   client,
		handlers: make(map[JobType]JobHandler),
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Handler returns the registered handler for a job type.
func (q *Queue) Handler(jobType JobType) (JobHandler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

func listKey(jobType JobType) string {
	return "jobs:" + string(jobType)
}

// Enqueue persists a job row and pushes its id onto the type's list.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload interface{}) (uuid.UUID, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
	}
	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist job: %w", err)
	}
	if err := q.client.LPush(ctx, listKey(jobType), job.ID.String()).Err(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to push job: %w", err)
	}
	return job.ID, nil
}

// Dequeue blocks up to timeout for a job of any of the given types.
// Returns nil when the timeout elapses without work.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration, jobTypes ...JobType) (*Job, error) {
	keys := make([]string, len(jobTypes))
	for i, t := range jobTypes {
		keys[i] = listKey(t)
	}
	result, err := q.client.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}
	// BRPop returns [key, value].
	jobID, err := uuid.Parse(result[1])
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", result[1], err)
	}

	var job Job
	if err := q.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	job.Status = JobStatusProcessing
	if err := q.db.WithContext(ctx).Save(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}
	return &job, nil
}

// Complete marks a job done.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	job.Status = JobStatusCompleted
	job.Error = ""
	return q.db.WithContext(ctx).Save(job).Error
}

// Fail records a job failure and requeues it with exponential backoff
// until its retries are exhausted.
func (q *Queue) Fail(ctx context.Context, job *Job, jobErr error) error {
	job.Error = jobErr.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = JobStatusFailed
		return q.db.WithContext(ctx).Save(job).Error
	}

	job.RetryCount++
	job.Status = JobStatusPending
	next := time.Now().Add(backoff(job.RetryCount))
	job.NextRetry = &next
	if err := q.db.WithContext(ctx).Save(job).Error; err != nil {
		return err
	}
	return q.client.LPush(ctx, listKey(job.Type), job.ID.String()).Err()
}

// GetJob retrieves a job row by id.
func (q *Queue) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
