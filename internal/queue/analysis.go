package queue

import (
	"context"
	"fmt"
)

// AnalysisPublisher enqueues image analysis jobs. It satisfies the
// stylist.AnalysisQueue interface.
type AnalysisPublisher struct {
	queue      JobQueue
	maxRetries int
}

// NewAnalysisPublisher creates a publisher. A maxRetries below zero uses
// DefaultMaxRetries.
func NewAnalysisPublisher(queue JobQueue, maxRetries int) *AnalysisPublisher {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &AnalysisPublisher{queue: queue, maxRetries: maxRetries}
}

// EnqueueAnalysis queues analysis of a stored image
func (p *AnalysisPublisher) EnqueueAnalysis(ctx context.Context, sessionID, imageRef string) error {
	job := NewImageAnalysisJob(sessionID, imageRef)
	job.MaxRetries = p.maxRetries
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s job: %w", job.Type, err)
	}
	return nil
}
