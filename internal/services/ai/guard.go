package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// GuardOptions configures a Guard
type GuardOptions struct {
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a retryable failure
	MaxRetries int
	// InitialBackoff is the first wait between attempts. Zero means one second.
	InitialBackoff time.Duration
	Logger         *zap.Logger
}

// Guard wraps a Provider with the call timeout and retry policy. Every error
// it returns is an *ExternalServiceError.
type Guard struct {
	provider       Provider
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
	logger         *zap.Logger
}

// NewGuard wraps provider
func NewGuard(provider Provider, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Guard{
		provider:       provider,
		timeout:        opts.Timeout,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		logger:         opts.Logger,
	}
}

// Timeout returns the per-attempt timeout
func (g *Guard) Timeout() time.Duration {
	return g.timeout
}

// Generate calls the wrapped provider. Only rate limit and server errors are
// retried; timeouts and client errors fail immediately.
func (g *Guard) Generate(ctx context.Context, req Request) (string, error) {
	var (
		result   string
		lastErr  error
		timedOut bool
		attempt  int
	)

	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		out, err := g.provider.Generate(attemptCtx, req)
		if err == nil {
			result = out
			return nil
		}
		lastErr = err

		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			timedOut = true
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil || !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initialBackoff
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("llm_api_retry",
			zap.String("operation", req.Operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.maxRetries)), ctx),
		notify,
	)
	if err == nil {
		return result, nil
	}

	if lastErr == nil {
		lastErr = err
	}
	if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		timedOut = true
	}
	g.logger.Warn("llm_api_failed",
		zap.String("operation", req.Operation),
		zap.Int("attempts", attempt),
		zap.Bool("timeout", timedOut),
		zap.Error(lastErr),
	)
	return "", &ExternalServiceError{Op: req.Operation, Err: lastErr, Timeout: timedOut}
}
