package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"grant-intake/internal/api"
	"grant-intake/internal/common/aws"
	"grant-intake/internal/common/camunda"
	"grant-intake/internal/common/config"
	"grant-intake/internal/common/database"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/common/observability"
	"grant-intake/internal/notify"
	"grant-intake/internal/search"
	"grant-intake/internal/store"
	"grant-intake/internal/store/postgres"
	"grant-intake/internal/store/rediscache"
	"grant-intake/internal/wizard"
	"grant-intake/internal/wizard/registry"
	"grant-intake/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// backends collects what main has to close on shutdown.
type backends struct {
	deps    map[string]database.Pinger
	closers []func() error
}

func (b *backends) add(name string, p database.Pinger, closer func() error) {
	b.deps[name] = p
	if closer != nil {
		b.closers = append(b.closers, closer)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"app":         cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	zapLog.Info("Starting intake server...", zap.String("store", cfg.Wizard.Store))

	obs, err := observability.New(cfg.App.Name, observability.AsGlobal())
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be := &backends{deps: map[string]database.Pinger{}}
	gateway, err := buildGateway(ctx, cfg, be, obs, log, zapLog)
	if err != nil {
		zapLog.Fatal("persistence gateway init failed", zap.Error(err))
	}

	listeners, searcher, err := buildListeners(ctx, cfg, be, log, zapLog)
	if err != nil {
		zapLog.Fatal("submission listeners init failed", zap.Error(err))
	}

	sessions := api.NewSessions(wizard.Options{
		Registry:       registry.Default(),
		Gateway:        gateway,
		Logger:         log,
		Debounce:       config.GetDuration(cfg.Wizard.AutosaveDebounce),
		GatewayTimeout: config.GetDuration(cfg.Wizard.GatewayTimeout),
		Listeners:      listeners,
	}, config.GetDuration(cfg.Wizard.SessionTTL), log)

	sessionTTL := config.GetDuration(cfg.Wizard.SessionTTL)
	if sessionTTL > 0 {
		go sessions.Run(ctx, sessionTTL/4)
	}

	apiCfg := api.Config{
		Sessions:       sessions,
		Gateway:        gateway,
		Registry:       registry.Default(),
		Dependencies:   be.deps,
		MetricsPath:    cfg.Metrics.Path,
		RequestTimeout: config.GetDuration(cfg.Wizard.GatewayTimeout),
		ListLimit:      cfg.Wizard.ListLimit,
		Logger:         log,
	}
	if searcher != nil {
		apiCfg.Search = searcher
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(apiCfg),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("API server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("API server shutdown failed", zap.Error(err))
	}
	// Pending autosaves go out before the backends close.
	sessions.Close()

	for i := len(be.closers) - 1; i >= 0; i-- {
		if err := be.closers[i](); err != nil {
			zapLog.Warn("closing backend failed", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("observability shutdown failed", zap.Error(err))
	}
	zapLog.Info("Intake server stopped gracefully")
}

func buildGateway(ctx context.Context, cfg *config.Config, be *backends, obs *observability.Observability, log logger.Logger, zapLog *zap.Logger) (store.Gateway, error) {
	if cfg.Wizard.Store == config.StoreMemory {
		zapLog.Warn("using in-memory store, drafts are lost on restart")
		return store.NewInstrumented(store.NewMemory(), obs, "memory"), nil
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	be.add("postgres", pg, pg.Close)
	zapLog.Info("PostgreSQL connected successfully")

	if err := postgres.Migrate(ctx, pg); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var gateway store.Gateway = store.NewInstrumented(postgres.New(pg.GetDB(), log), obs, "postgres")
	if cfg.Wizard.Store != config.StoreTiered {
		return gateway, nil
	}

	// --- Init Redis with retry ---
	rc := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rc.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		return nil, err
	}
	be.add("redis", rc, rc.Close)
	zapLog.Info("Redis connected successfully")

	cache := store.NewInstrumented(
		rediscache.New(rc.GetClient(), config.GetDuration(cfg.Database.Redis.SnapshotTTL)), obs, "redis")
	return store.NewTiered(gateway, cache, log), nil
}

func buildListeners(ctx context.Context, cfg *config.Config, be *backends, log logger.Logger, zapLog *zap.Logger) ([]wizard.SubmissionListener, *search.Index, error) {
	var listeners []wizard.SubmissionListener
	var index *search.Index

	if cfg.Search.Enabled {
		// --- Init Elasticsearch with retry ---
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, nil, err
		}
		be.add("elasticsearch", esClient, nil)
		zapLog.Info("Elasticsearch connected successfully")

		index = search.New(esClient.Client, cfg.Search.Index, log)
		if err := index.EnsureIndex(ctx); err != nil {
			return nil, nil, err
		}
		listeners = append(listeners, index)
	}

	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return nil, nil, err
		}
		listeners = append(listeners, notify.New(notify.Config{
			EmailEnabled: cfg.Notifications.Email.Enabled,
			FromEmail:    cfg.Notifications.Email.FromEmail,
			SMSEnabled:   cfg.Notifications.SMS.Enabled,
			SenderID:     cfg.Notifications.SMS.SenderID,
			Timeout:      10 * time.Second,
		}, aws.NewSESClient(awsCfg), aws.NewSNSClient(awsCfg), log))
	}

	if cfg.Camunda.Enabled {
		// --- Init Zeebe Client with retry ---
		var zc *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
				RetryConfig: &camunda.RetryConfig{
					MaxRetries: cfg.Camunda.MaxRetries,
					BaseDelay:  time.Second,
					MaxDelay:   10 * time.Second,
				},
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			return nil, nil, err
		}
		be.add("zeebe", zc, zc.Close)
		zapLog.Info("Zeebe client connected successfully")

		listeners = append(listeners, workflow.NewReviewStarter(zc, cfg.Camunda.ReviewProcessID, log))
	}

	names := make([]string, 0, len(listeners))
	for _, l := range listeners {
		names = append(names, l.Name())
	}
	zapLog.Info("submission listeners registered", zap.Strings("listeners", names))
	return listeners, index, nil
}
