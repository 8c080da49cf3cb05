package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/stylesync/api/openapi"
	"github.com/benvon/stylesync/internal/bootstrap"
	"github.com/benvon/stylesync/internal/config"
	"github.com/benvon/stylesync/internal/handlers"
	"github.com/benvon/stylesync/internal/ingest"
	"github.com/benvon/stylesync/internal/logger"
	"github.com/benvon/stylesync/internal/middleware"
	"github.com/benvon/stylesync/internal/queue"
	"github.com/benvon/stylesync/internal/session"
	"github.com/benvon/stylesync/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the upload limit for form framing
const multipartOverhead = 64 << 10

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	if err := cfg.RequireSessionSecret(); err != nil {
		zapLogger.Fatal("invalid_configuration", zap.Error(err))
	}

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("image_store", cfg.ImageStore),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	tracing := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "server", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracing = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tp.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 3*time.Minute)
	stack, err := bootstrap.Build(startCtx, cfg, zapLogger, bootstrap.Options{
		Queue:     true,
		Trace:     tracing,
		DebugMode: debugMode,
	})
	startCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_build_service", zap.Error(err))
	}
	defer stack.Close(context.Background())

	issuer, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		zapLogger.Fatal("failed_to_create_session_issuer", zap.Error(err))
	}

	// Redis is optional; without it rate limit counters stay in process
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = middleware.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	}
	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	healthChecker := handlers.NewHealthChecker()
	healthChecker.AddCheck("wardrobe_store", stack.Service.Ping)
	if redisClient != nil {
		healthChecker.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if stack.JobQueue != nil {
		healthChecker.AddCheck("queue", stack.JobQueue.HealthCheck)
	}

	// Requests that analyze images can wait out every AI attempt
	requestTimeout := cfg.AITimeout*time.Duration(cfg.AIMaxRetries+1) + 15*time.Second

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, first is outermost
	zapLogger.Info("setting_up_middleware")
	if tracing {
		r.Use(otelmux.Middleware(telemetry.ServiceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL, zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.MaxRequestSize(cfg.MaxUploadBytes+multipartOverhead, zapLogger))
	r.Use(middleware.ContentType(zapLogger, middleware.MediaTypeJSON, middleware.MediaTypeMultipart, middleware.MediaTypeImage))

	// Public routes
	healthChecker.RegisterRoutes(r)
	handlers.NewOpenAPIHandler(openapi.Document).RegisterRoutes(r)

	publicRouter := r.NewRoute().Subrouter()
	publicRouter.Use(rateLimitMW)
	handlers.NewSessionHandler(issuer, zapLogger).RegisterRoutes(publicRouter)

	// Session routes
	sessionRouter := r.NewRoute().Subrouter()
	sessionRouter.Use(middleware.SessionAuth(issuer, zapLogger))
	sessionRouter.Use(rateLimitMW)
	handlers.NewWardrobeHandler(stack.Service, cfg.MaxUploadBytes, zapLogger).RegisterRoutes(sessionRouter)
	handlers.NewRecommendationHandler(stack.Service, zapLogger).RegisterRoutes(sessionRouter)
	handlers.NewImageHandler(stack.Service, ingest.DefaultThumbnailSize, zapLogger).RegisterRoutes(sessionRouter)

	// Preflight requests; the CORS middleware has already answered them
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   requestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if stack.JobQueue != nil {
		dlqGC := queue.NewGarbageCollector(stack.JobQueue, queue.DefaultGCInterval, queue.DefaultGCRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", queue.DefaultGCInterval),
			zap.Duration("retention", queue.DefaultGCRetention),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
