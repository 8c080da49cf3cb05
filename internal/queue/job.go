package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeImageAnalysis analyzes one stored image into a wardrobe item
	JobTypeImageAnalysis JobType = "image_analysis"
)

// DefaultMaxRetries is how often a failed analysis is re-enqueued before it
// is dead-lettered
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	SessionID  string     `json:"session_id"`
	ImageRef   string     `json:"image_ref"`
	NotBefore  *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewImageAnalysisJob creates a job to analyze a stored image
func NewImageAnalysisJob(sessionID, imageRef string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeImageAnalysis,
		SessionID:  sessionID,
		ImageRef:   imageRef,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks the job carries what its type needs
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeImageAnalysis:
		if j.SessionID == "" || j.ImageRef == "" {
			return errors.New("image_analysis job requires session_id and image_ref")
		}
		return nil
	default:
		return errors.New("unknown job type: " + string(j.Type))
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	return j.NotBefore == nil || !time.Now().Before(*j.NotBefore)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry returns a copy of the job for its next attempt, delayed until
// notBefore
func (j *Job) Retry(notBefore time.Time) *Job {
	next := *j
	next.RetryCount++
	next.NotBefore = &notBefore
	return &next
}
