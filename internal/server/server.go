// Package server wires configuration into the running HTTP service.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bryanwahyu/stockaudit/internal/application"
	"github.com/bryanwahyu/stockaudit/internal/application/analysis"
	"github.com/bryanwahyu/stockaudit/internal/application/sessions"
	"github.com/bryanwahyu/stockaudit/internal/config"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/infra/ai/anthropic"
	"github.com/bryanwahyu/stockaudit/internal/infra/ai/gemini"
	"github.com/bryanwahyu/stockaudit/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/stockaudit/internal/infra/db/mysql"
	"github.com/bryanwahyu/stockaudit/internal/infra/db/postgres"
	"github.com/bryanwahyu/stockaudit/internal/infra/db/sqlite"
	"github.com/bryanwahyu/stockaudit/internal/infra/httpserver"
	"github.com/bryanwahyu/stockaudit/internal/infra/notify"
	"github.com/bryanwahyu/stockaudit/internal/infra/schedule"
	"github.com/bryanwahyu/stockaudit/internal/infra/snapshot"
	minioStore "github.com/bryanwahyu/stockaudit/internal/infra/storage"
	"github.com/bryanwahyu/stockaudit/internal/middleware"
	"github.com/bryanwahyu/stockaudit/internal/render"
)

// NewLogger builds the zap logger from log settings.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// NewAnalyzer picks the generation backend named by ai.provider.
func NewAnalyzer(ctx context.Context, cfg *config.Config) (audit.Analyzer, error) {
	switch cfg.AI.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		if cfg.AI.APIKey == "" {
			return nil, errors.New("openai: api key is required")
		}
		return openai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens), nil
	case "anthropic":
		if cfg.AI.APIKey == "" {
			return nil, errors.New("anthropic: api key is required")
		}
		return anthropic.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens), nil
	}
	return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
}

type history interface {
	audit.HistoryRepository
	Migrate(ctx context.Context) error
}

// OpenHistory connects the configured database and migrates it. A blank
// driver returns nil, nil: history is off.
func OpenHistory(ctx context.Context, cfg *config.Config) (audit.HistoryRepository, *sql.DB, error) {
	var (
		db   *sql.DB
		repo history
		err  error
	)
	switch cfg.Database.Driver {
	case "":
		return nil, nil, nil
	case "mysql":
		if db, err = mysqlp.Connect(ctx, cfg.MySQLDSN()); err == nil {
			repo = mysqlp.NewHistoryRepository(db)
		}
	case "postgres":
		if db, err = postgres.Connect(ctx, cfg.PostgresDSN()); err == nil {
			repo = postgres.NewHistoryRepository(db)
		}
	case "sqlite":
		if db, err = sqlite.Open(ctx, cfg.Database.Path); err == nil {
			repo = sqlite.NewHistoryRepository(db)
		}
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%s migrate: %w", cfg.Database.Driver, err)
	}
	return repo, db, nil
}

// RenderOptions maps the report section onto render defaults.
func RenderOptions(cfg *config.Config) render.Options {
	o := render.DefaultOptions()
	o.Brand = cfg.Report.Brand
	o.Author = cfg.Report.Author
	if cfg.Report.IncludeNotes != nil {
		o.IncludeNotes = *cfg.Report.IncludeNotes
	}
	if cfg.Report.IncludeQuestions != nil {
		o.IncludeQuestions = *cfg.Report.IncludeQuestions
	}
	return o
}

// Run serves until ctx ends, then drains in-flight requests.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	analyzer, err := NewAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}

	repo, db, err := OpenHistory(ctx, cfg)
	if err != nil {
		return err
	}
	health := map[string]middleware.HealthChecker{}
	if db != nil {
		defer db.Close()
		health["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}

	clock := application.SystemClock{}
	analysisSvc := &analysis.Service{
		Analyzer:   analyzer,
		History:    repo,
		Clock:      clock,
		Logger:     logger.Named("analysis"),
		LocalRules: cfg.Analysis.LocalRules,
		Location:   cfg.Location(),
	}

	store, err := sessions.NewStore(cfg.Sessions.Size, cfg.Sessions.TTL, clock)
	if err != nil {
		return err
	}
	middleware.TrackSessions(store.Len)

	svc := &sessions.Service{
		Store:       store,
		Analysis:    analysisSvc,
		Snapshotter: snapshot.Disabled{},
		Options:     RenderOptions(cfg),
		Clock:       clock,
		Logger:      logger.Named("sessions"),
	}

	if cfg.Minio.Enabled {
		mc, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		mc.LinkTTL = cfg.Minio.LinkTTL
		svc.Artifacts = mc
		health["storage"] = middleware.CheckFunc(mc.Ping)
	}

	if cfg.Snapshot.Enabled {
		rod := snapshot.NewRod(snapshot.Config{
			BrowserBin: cfg.Snapshot.BrowserBin,
			ControlURL: cfg.Snapshot.ControlURL,
			Timeout:    cfg.Snapshot.Timeout,
		}, logger.Named("snapshot"))
		defer func() {
			if err := rod.Close(); err != nil {
				logger.Warn("close browser", zap.Error(err))
			}
		}()
		svc.Snapshotter = rod
	}

	if cfg.Slack.Token != "" {
		svc.Notifier = notify.NewSlack(cfg.Slack.Token, cfg.Slack.Channel)
	}

	jobs := schedule.New(cfg.Location(), logger.Named("jobs"))
	if err := jobs.Add("session-sweep", cfg.Sessions.SweepSchedule, func(context.Context) error {
		if n := store.Sweep(); n > 0 {
			logger.Debug("sessions expired", zap.Int("count", n))
		}
		return nil
	}); err != nil {
		return err
	}
	if repo != nil && cfg.Database.Retention > 0 {
		// buat retention job
		if err := jobs.Add("history-purge", cfg.Database.PurgeSchedule, func(ctx context.Context) error {
			n, err := analysisSvc.Purge(ctx, cfg.Database.Retention)
			if err == nil && n > 0 {
				logger.Info("history purged", zap.Int64("rows", n))
			}
			return err
		}); err != nil {
			return err
		}
	}
	jobs.Start()

	opts := httpserver.Options{
		APIKeys:        cfg.Auth.APIKeys,
		CORSOrigins:    cfg.CORS.Origins,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Health:         health,
		Logger:         logger.Named("http"),
	}
	if cfg.RateLimit.Enabled {
		opts.Limiter = middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.Refill)
		go opts.Limiter.Cleanup(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpserver.NewRouter(svc, analysisSvc, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("provider", analyzer.Name()),
			zap.String("database", cfg.Database.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		jobs.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	jobs.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
