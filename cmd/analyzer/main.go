package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app_service "wallet-cluster-analyzer/internal/application/service"
	"wallet-cluster-analyzer/internal/domain/repository"
	domain_service "wallet-cluster-analyzer/internal/domain/service"
	"wallet-cluster-analyzer/internal/infrastructure/ai"
	"wallet-cluster-analyzer/internal/infrastructure/blockchain"
	"wallet-cluster-analyzer/internal/infrastructure/config"
	"wallet-cluster-analyzer/internal/infrastructure/database"
	"wallet-cluster-analyzer/internal/infrastructure/logger"
	"wallet-cluster-analyzer/internal/infrastructure/messaging"
	"wallet-cluster-analyzer/internal/infrastructure/metrics"
	"wallet-cluster-analyzer/internal/infrastructure/storage/memory"
	"wallet-cluster-analyzer/internal/interfaces/api"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const metricsNamespace = "wallet_cluster_analyzer"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.NewLogger(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Supply(&cfg.NATS),
		fx.Supply(&cfg.Neo4J),

		// Infrastructure providers
		fx.Provide(
			func() *metrics.Metrics {
				return metrics.NewMetrics(metricsNamespace)
			},
			func(cfg *config.Config, log *logger.Logger) repository.AnalysisRepository {
				return memory.NewAnalysisStore(cfg.Analysis.MaxResults, cfg.Analysis.ResultTTL, log)
			},
			func(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) domain_service.TransactionSource {
				return blockchain.NewMoralisClient(cfg.Moralis, m, log)
			},
			func(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) domain_service.NarrativeAnalyzer {
				return ai.NewOpenAIClient(cfg.OpenAI, m, log)
			},
			database.NewNeo4JClient,
			func(cfg *config.Config, client *database.Neo4JClient, log *logger.Logger) repository.GraphExportRepository {
				if !cfg.Neo4J.Enabled {
					return nil
				}
				return database.NewNeo4JGraphRepository(client, cfg.Neo4J.BatchSize, log)
			},
			messaging.NewNATSConsumer,
			messaging.NewNATSPublisher,
			func(cfg *config.Config, p *messaging.NATSPublisher) domain_service.EventPublisher {
				if !cfg.NATS.Enabled {
					return nil
				}
				return p
			},
		),

		// Application providers
		fx.Provide(
			app_service.NewAnalysisApplicationService,
			func(s *app_service.AnalysisApplicationService) domain_service.AnalysisService { return s },
			func(cfg *config.Config, s domain_service.AnalysisService, log *logger.Logger) *api.Handler {
				return api.NewHandler(s, cfg.App.MaxUploadBytes, cfg.Analysis.MaxWalletsPerRequest, log)
			},
		),

		// Lifecycle hooks
		fx.Invoke(startConnections),
		fx.Invoke(startAnalyzer),
		fx.Invoke(startHTTPServer),
		fx.Invoke(startMetricsServer),

		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down application...")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

// startConnections connects the optional Neo4J sink and NATS publisher
func startConnections(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	neo4jClient *database.Neo4JClient,
	publisher *messaging.NATSPublisher,
	handler *api.Handler,
	log *logger.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Neo4J.Enabled {
				if err := neo4jClient.Connect(ctx); err != nil {
					return fmt.Errorf("failed to connect to Neo4J: %w", err)
				}
				handler.AddHealthCheck("neo4j", neo4jClient.IsConnected)
			} else {
				log.Info("Neo4J export is disabled")
			}

			if err := publisher.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect NATS publisher: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := publisher.Close(); err != nil {
				log.Error("Failed to close NATS publisher", zap.Error(err))
			}
			if err := neo4jClient.Close(ctx); err != nil {
				log.Error("Failed to close Neo4J connection", zap.Error(err))
			}
			return nil
		},
	})
}

// startAnalyzer consumes NATS analysis requests and stops running jobs on shutdown
func startAnalyzer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	consumer *messaging.NATSConsumer,
	analysisService *app_service.AnalysisApplicationService,
	handler *api.Handler,
	log *logger.Logger,
) {
	processCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("NATS configuration",
				zap.String("url", cfg.NATS.URL),
				zap.String("subject_prefix", cfg.NATS.SubjectPrefix),
				zap.Bool("enabled", cfg.NATS.Enabled))

			if err := consumer.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			if cfg.NATS.Enabled {
				handler.AddHealthCheck("nats", func(context.Context) bool { return consumer.IsConnected() })
			}

			go func() {
				defer close(done)
				analysisService.ProcessRequests(processCtx, consumer.GetMessageChannel())
			}()

			log.Info("Analyzer started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping analyzer...")
			cancel()
			<-done
			if err := consumer.Disconnect(); err != nil {
				log.Error("Failed to disconnect from NATS", zap.Error(err))
			}
			return analysisService.Shutdown(ctx)
		},
	})
}

// startHTTPServer serves the REST API
func startHTTPServer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	handler *api.Handler,
	log *logger.Logger,
) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler: api.NewRouter(handler, log),
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return serve(server, "api", log)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping API server...")
			return server.Shutdown(ctx)
		},
	})
}

// startMetricsServer serves Prometheus metrics when enabled
func startMetricsServer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	m *metrics.Metrics,
	log *logger.Logger,
) {
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return serve(server, "metrics", log)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping metrics server...")
			return server.Shutdown(ctx)
		},
	})
}

// serve binds the listener synchronously so port errors fail startup, then serves in the background
func serve(server *http.Server, name string, log *logger.Logger) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for %s server on %s: %w", name, server.Addr, err)
	}

	log.Info("Starting server", zap.String("server", name), zap.String("addr", server.Addr))
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.String("server", name), zap.Error(err))
		}
	}()
	return nil
}
