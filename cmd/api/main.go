// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaymsg/messenger-store/internal/config"
	"github.com/relaymsg/messenger-store/internal/handler"
	"github.com/relaymsg/messenger-store/internal/middleware"
	natsclient "github.com/relaymsg/messenger-store/internal/nats"
	"github.com/relaymsg/messenger-store/internal/service"
	"github.com/relaymsg/messenger-store/internal/store"
	"github.com/relaymsg/messenger-store/internal/store/dynamo"
	"github.com/relaymsg/messenger-store/internal/store/memory"
	"github.com/relaymsg/messenger-store/internal/store/mysql"
	"github.com/relaymsg/messenger-store/pkg/logger"
	"github.com/relaymsg/messenger-store/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", "backend", cfg.StoreBackend)

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "messenger-store", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", "error", err)
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Initialize storage engine
	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Connect to NATS when configured; without it derived views are applied
	// inline after each append.
	var nc *natsclient.Client
	var streamManager *natsclient.StreamManager
	if cfg.NATSURL != "" {
		nc, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()

		streamManager = natsclient.NewStreamManager(nc)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", "error", err)
			os.Exit(1)
		}
	}

	// Initialize services
	var publisher service.Publisher
	if streamManager != nil {
		publisher = streamManager
	}
	messageSvc := service.NewMessageService(st, publisher, log)
	conversationSvc := service.NewConversationService(st, log)

	// Start the derived-view projector when the event stream is available.
	if nc != nil {
		projector := natsclient.NewProjector(nc, messageSvc, log)
		if err := projector.Start(ctx); err != nil {
			log.Error("failed to start projector", "error", err)
			os.Exit(1)
		}
		defer projector.Stop()
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st, nc)
	conversationHandler := handler.NewConversationHandler(conversationSvc, messageSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	streamHandler := handler.NewStreamHandler(messageSvc, streamManager, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/reconcile", conversationHandler.Reconcile)

				// Messages
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)

				// Live tail
				r.Get("/stream", streamHandler.Stream)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// buildStore selects and initializes the configured storage engine.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return memory.New(), func() {}, nil

	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})
		st, err := dynamo.New(client, cfg.DynamoTablePrefix)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil

	case "mysql":
		st, err := mysql.New(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Bootstrap(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
