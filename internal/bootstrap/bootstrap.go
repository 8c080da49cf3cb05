// Package bootstrap builds the wardrobe service and its backends from
// configuration. The server, the worker and the CLI share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benvon/stylesync/internal/config"
	"github.com/benvon/stylesync/internal/database"
	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/ingest"
	"github.com/benvon/stylesync/internal/mongostore"
	"github.com/benvon/stylesync/internal/queue"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/benvon/stylesync/internal/telemetry"
	"github.com/benvon/stylesync/internal/wardrobe"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Options selects the optional parts of the stack
type Options struct {
	// Queue connects to RabbitMQ when RABBITMQ_URL is set and enables
	// asynchronous analysis
	Queue bool
	// Trace wraps the AI provider with OpenTelemetry spans
	Trace bool
	// OptionalAI lets the stack start without an API key; AI operations then
	// fail with an external service error
	OptionalAI bool
	DebugMode  bool
}

// errAIUnconfigured is returned by AI operations when no API key is set
var errAIUnconfigured = errors.New("no AI API key is configured")

// Stack holds the built service and everything that must be closed with it
type Stack struct {
	Service       *stylist.Service
	WardrobeStore wardrobe.Store
	Images        imagestore.Store
	JobQueue      *queue.RabbitMQQueue
	closers       []func(context.Context) error
	logger        *zap.Logger
}

// Build creates the wardrobe service described by cfg
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Stack, error) {
	stack := &Stack{logger: logger}

	store, err := stack.wardrobeStore(ctx, cfg)
	if err != nil {
		stack.Close(ctx)
		return nil, err
	}
	stack.WardrobeStore = store

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		stack.Close(ctx)
		return nil, err
	}
	stack.Images = images

	provider, err := stack.provider(ctx, cfg, logger, opts)
	if err != nil {
		stack.Close(ctx)
		return nil, err
	}

	serviceOpts := stylist.ServiceOptions{Logger: logger}
	if opts.Queue && cfg.RabbitMQURL != "" {
		q, err := ConnectQueue(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			stack.Close(ctx)
			return nil, err
		}
		stack.JobQueue = q
		stack.closers = append(stack.closers, func(context.Context) error { return q.Close() })
		serviceOpts.Queue = queue.NewAnalysisPublisher(q, queue.DefaultMaxRetries)
	}

	ingester := ingest.NewIngester(images, provider, ingest.Options{MaxPixels: cfg.MaxImagePixels, Logger: logger})
	recommender := stylist.NewRecommender(provider, stylist.RecommenderOptions{Logger: logger})
	stack.Service = stylist.NewService(store, ingester, recommender, serviceOpts)
	return stack, nil
}

// Close releases every backend in reverse order of creation
func (s *Stack) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.Warn("failed_to_close_backend", zap.Error(err))
		}
	}
	s.closers = nil
}

func (s *Stack) wardrobeStore(ctx context.Context, cfg *config.Config) (wardrobe.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return wardrobe.NewMemoryStore(), nil
	case config.StoragePostgres:
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		s.logger.Info("connected_to_database")
		return database.NewPostgresStore(db), nil
	case config.StorageMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		s.logger.Info("connected_to_mongodb", zap.String("database", cfg.MongoDatabase))
		return store, nil
	default:
		return wardrobe.NewFileStore(cfg.DataDir)
	}
}

func newImageStore(ctx context.Context, cfg *config.Config) (imagestore.Store, error) {
	switch cfg.ImageStore {
	case config.ImageStoreMemory:
		return imagestore.NewMemoryStore(), nil
	case config.ImageStoreS3:
		return imagestore.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, "images")
	default:
		return imagestore.NewLocalStore(cfg.ImageDir)
	}
}

// provider builds the configured AI provider wrapped with the call timeout
// and retry policy
func (s *Stack) provider(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (ai.Provider, error) {
	if err := cfg.RequireAI(); err != nil {
		if !opts.OptionalAI {
			return nil, err
		}
		logger.Warn("ai_provider_not_configured", zap.String("provider", cfg.AIProvider))
		return ai.ProviderFunc(func(ctx context.Context, req ai.Request) (string, error) {
			return "", &ai.ExternalServiceError{Op: req.Operation, Err: errAIUnconfigured}
		}), nil
	}
	registry := ai.NewDefaultRegistry()
	provider, err := registry.GetProvider(ctx, cfg.AIProvider, map[string]string{
		"api_key":  cfg.AIAPIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
		"debug":    strconv.FormatBool(opts.DebugMode),
	}, logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := provider.(interface{ Close() error }); ok {
		s.closers = append(s.closers, func(context.Context) error { return closer.Close() })
	}

	var guarded ai.Provider = ai.NewGuard(provider, ai.GuardOptions{
		Timeout:    cfg.AITimeout,
		MaxRetries: cfg.AIMaxRetries,
		Logger:     logger,
	})
	if opts.Trace {
		guarded = telemetry.TraceProvider(guarded)
	}
	logger.Info("ai_provider_configured",
		zap.String("provider", cfg.AIProvider),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout),
		zap.Int("max_retries", cfg.AIMaxRetries),
	)
	return guarded, nil
}

// ConnectQueue connects to RabbitMQ, retrying with exponential backoff to
// ride out broker startup
func ConnectQueue(ctx context.Context, url string, logger *zap.Logger) (*queue.RabbitMQQueue, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 2 * time.Minute

	attempt := 0
	q, err := backoff.RetryNotifyWithData(func() (*queue.RabbitMQQueue, error) {
		attempt++
		return queue.NewRabbitMQQueue(url, logger)
	}, backoff.WithContext(policy, ctx), func(err error, delay time.Duration) {
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempt, err)
	}
	logger.Info("connected_to_rabbitmq", zap.Int("attempts", attempt))
	return q, nil
}
