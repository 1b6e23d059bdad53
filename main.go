package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/helioenergie/caseflow/internal/activities"
	authpkg "github.com/helioenergie/caseflow/internal/auth"
	cfg "github.com/helioenergie/caseflow/internal/config"
	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/extraction"
	"github.com/helioenergie/caseflow/internal/httpapi"
	"github.com/helioenergie/caseflow/internal/ingest"
	"github.com/helioenergie/caseflow/internal/mailer"
	"github.com/helioenergie/caseflow/internal/streaming"
	"github.com/helioenergie/caseflow/internal/temporal"
	"github.com/helioenergie/caseflow/internal/tracing"
	"github.com/helioenergie/caseflow/internal/workflows"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := cfg.Path()
	conf, err := cfg.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := conf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := buildLogger(conf.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Hot reload keeps the watcher's Current() fresh; components that
	// read config at call time pick up changes without a restart.
	watcher, err := cfg.NewWatcher(configPath, logger)
	if err != nil {
		logger.Warn("Config watcher init failed, continuing without hot reload", zap.Error(err))
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("Config watcher start failed", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	shutdownTracing, err := tracing.Initialize(ctx, conf.Tracing.Enabled, conf.Tracing.Endpoint, logger)
	if err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	} else {
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shCancel()
			_ = shutdownTracing(shCtx)
		}()
	}

	dbClient, err := db.NewClient(&db.Config{
		Host:     conf.Database.Host,
		Port:     conf.Database.Port,
		User:     conf.Database.User,
		Password: conf.Database.Password,
		Database: conf.Database.Name,
		SSLMode:  conf.Database.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database client", zap.Error(err))
	}
	defer dbClient.Close()

	if seedPath := conf.Identity.ContractSeedPath; seedPath != "" {
		rows, err := db.LoadContractSeed(seedPath)
		if err != nil {
			logger.Fatal("Failed to load contract seed", zap.String("path", seedPath), zap.Error(err))
		}
		if err := dbClient.UpsertContracts(ctx, rows); err != nil {
			logger.Fatal("Failed to seed contract records", zap.Error(err))
		}
		logger.Info("Contract records seeded", zap.Int("count", len(rows)))
	}

	events, err := streaming.NewPublisher(conf.Redis.Addr, conf.Redis.Password, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer events.Close()

	extractor := extraction.NewClient(extraction.Config{
		BaseURL: conf.Extraction.BaseURL,
		Timeout: conf.ExtractionTimeout(),
	}, logger)

	sender := mailer.NewSMTPSender(mailer.Config{
		Host:     conf.SMTP.Host,
		Port:     conf.SMTP.Port,
		Username: conf.SMTP.Username,
		Password: conf.SMTP.Password,
		From:     conf.SMTP.FromAddress,
	}, logger)

	acts := activities.NewActivities(dbClient, events, extractor, sender, activities.Config{
		HashSalt:       conf.Identity.HashSalt,
		SupportAddress: conf.SMTP.FromAddress,
	}, logger)

	authService := authpkg.NewService(dbClient.GetDB(), logger, conf.HTTP.JWTSecret)
	authMiddleware := authpkg.NewMiddleware(authService.JWT(), logger)

	// Admin HTTP comes up before the Temporal client so health and login
	// respond while the worker is still connecting. Review routes need
	// the Temporal client and are registered once it is ready.
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/health", httpapi.HealthHandler)
	httpapi.NewLoginHandler(authService, logger).RegisterRoutes(adminMux)

	adminAddr := ":" + strconv.Itoa(conf.HTTP.AdminPort)
	adminServer := &http.Server{
		Addr:         adminAddr,
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Admin HTTP server listening", zap.String("address", adminAddr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + strconv.Itoa(conf.HTTP.MetricsPort)
		logger.Info("Metrics server listening", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// The worker is handed over through the channel so the shutdown path
	// never races the dial goroutine.
	workerCh := make(chan worker.Worker, 1)
	go func() {
		tClient := dialTemporal(conf.Temporal, logger)
		defer tClient.Close()

		httpapi.NewReviewHandler(tClient, dbClient, logger).RegisterRoutes(adminMux, authMiddleware)
		logger.Info("Review API registered on admin HTTP server", zap.String("path", "/reviews/decision"))

		wk := worker.New(tClient, workflows.TaskQueue, worker.Options{})
		wk.RegisterWorkflow(workflows.CaseWorkflow)
		wk.RegisterActivity(acts)

		if conf.IMAP.Enabled {
			poller := ingest.NewPoller(ingest.Config{
				Server:   conf.IMAP.Server,
				Port:     conf.IMAP.Port,
				Username: conf.IMAP.Username,
				Password: conf.IMAP.Password,
				Mailbox:  conf.IMAP.Mailbox,
				Interval: conf.IMAPInterval(),
			}, tClient, logger)
			go poller.Run(ctx)
		}

		workerCh <- wk
		logger.Info("Temporal worker started", zap.String("queue", workflows.TaskQueue))
		if err := wk.Run(worker.InterruptCh()); err != nil {
			logger.Error("Temporal worker exited with error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down caseflow service")

	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = adminServer.Shutdown(shCtx)
	select {
	case wk := <-workerCh:
		wk.Stop()
	default:
		// Still dialing Temporal; nothing to stop.
	}
}

// dialTemporal blocks until the Temporal frontend accepts a connection.
// The service is useless without it, so there is no attempt cap.
func dialTemporal(tc cfg.TemporalConfig, logger *zap.Logger) client.Client {
	hostPort := tc.HostPort
	for i := 1; i <= 60; i++ {
		c, err := net.DialTimeout("tcp", hostPort, 2*time.Second)
		if err == nil {
			_ = c.Close()
			break
		}
		logger.Warn("Waiting for Temporal TCP endpoint", zap.String("host", hostPort), zap.Int("attempt", i))
		time.Sleep(time.Second)
	}
	for attempt := 1; ; attempt++ {
		tClient, err := client.Dial(client.Options{
			HostPort:  hostPort,
			Namespace: tc.Namespace,
			Logger:    temporal.NewZapAdapter(logger),
		})
		if err == nil {
			return tClient
		}
		delay := time.Duration(attempt) * time.Second
		if delay > 15*time.Second {
			delay = 15 * time.Second
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt),
			zap.String("host", hostPort),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
}

func buildLogger(lc cfg.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}
