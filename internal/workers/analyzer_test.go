package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/queue"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/google/uuid"
)

// mockMessage records how a message was settled
type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error { m.acked = true; return nil }

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job { return m.job }

// mockJobQueue records re-enqueued jobs
type mockJobQueue struct {
	jobs []*queue.Job
	err  error
}

func (q *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (q *mockJobQueue) Close() error                      { return nil }
func (q *mockJobQueue) HealthCheck(context.Context) error { return nil }

type analyzerFunc func(ctx context.Context, sessionID, imageRef string) (*stylist.AddResult, error)

func (f analyzerFunc) AnalyzeStored(ctx context.Context, sessionID, imageRef string) (*stylist.AddResult, error) {
	return f(ctx, sessionID, imageRef)
}

func succeed(ctx context.Context, sessionID, imageRef string) (*stylist.AddResult, error) {
	return &stylist.AddResult{Item: models.NewUnknownItem(imageRef, time.Now())}, nil
}

func failWith(err error) analyzerFunc {
	return func(context.Context, string, string) (*stylist.AddResult, error) { return nil, err }
}

func TestImageAnalyzer_ProcessJob(t *testing.T) {
	t.Parallel()

	eseErr := &ai.ExternalServiceError{Op: "analyze_image", Err: errors.New("503 from upstream")}

	tests := []struct {
		name        string
		job         *queue.Job
		analyzer    analyzerFunc
		queueErr    error
		wantErr     bool
		wantAck     bool
		wantNack    bool
		wantRequeue bool
		wantRetries int
	}{
		{
			name:     "success acks",
			job:      queue.NewImageAnalysisJob("sess", "img_1"),
			analyzer: succeed,
			wantAck:  true,
		},
		{
			name:     "invalid job is dead-lettered",
			job:      &queue.Job{ID: uuid.New(), Type: "task_analysis"},
			analyzer: succeed,
			wantErr:  true,
			wantNack: true,
		},
		{
			name:        "external failure is re-enqueued",
			job:         queue.NewImageAnalysisJob("sess", "img_1"),
			analyzer:    failWith(eseErr),
			wantAck:     true,
			wantRetries: 1,
		},
		{
			name: "external failure after max retries is dead-lettered",
			job: func() *queue.Job {
				j := queue.NewImageAnalysisJob("sess", "img_1")
				j.RetryCount = j.MaxRetries
				return j
			}(),
			analyzer: failWith(eseErr),
			wantErr:  true,
			wantNack: true,
		},
		{
			name:        "re-enqueue failure requeues",
			job:         queue.NewImageAnalysisJob("sess", "img_1"),
			analyzer:    failWith(eseErr),
			queueErr:    errors.New("broker down"),
			wantErr:     true,
			wantNack:    true,
			wantRequeue: true,
		},
		{
			name:     "missing image is dead-lettered",
			job:      queue.NewImageAnalysisJob("sess", "img_gone"),
			analyzer: failWith(fmt.Errorf("load: %w", imagestore.ErrNotFound)),
			wantErr:  true,
			wantNack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := &mockJobQueue{err: tt.queueErr}
			a := NewImageAnalyzer(tt.analyzer, q, nil)
			msg := &mockMessage{job: tt.job}

			err := a.ProcessJob(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ProcessJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAck || msg.nacked != tt.wantNack || msg.requeue != tt.wantRequeue {
				t.Errorf("Unexpected settlement: acked=%v nacked=%v requeue=%v", msg.acked, msg.nacked, msg.requeue)
			}
			if len(q.jobs) != tt.wantRetries {
				t.Fatalf("Expected %d re-enqueued jobs, got %d", tt.wantRetries, len(q.jobs))
			}
			if tt.wantRetries > 0 {
				next := q.jobs[0]
				if next.RetryCount != tt.job.RetryCount+1 || next.NotBefore == nil || next.ID != tt.job.ID {
					t.Errorf("Unexpected retry job: %+v", next)
				}
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	tests := []struct {
		name       string
		err        error
		retryCount int
		want       time.Duration
	}{
		{"first retry", plain, 0, DefaultRetryBaseDelay},
		{"second retry doubles", plain, 1, 2 * DefaultRetryBaseDelay},
		{"capped", plain, 20, DefaultMaxRetryDelay},
		{"quota", &ai.APIError{StatusCode: 429, Code: "insufficient_quota", IsPermanent: true}, 0, QuotaRetryDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RetryDelay(tt.err, tt.retryCount); got != tt.want {
				t.Errorf("RetryDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}
