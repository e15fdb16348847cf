// agentlensd is the daemon that wires every core component together:
// storage backend, guardrail engine, retention purger, and the ingest
// gateway's HTTP surface (spec §6).
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/analytics"
	"github.com/agentkitai/agentlens-sub008/pkg/apikey"
	"github.com/agentkitai/agentlens-sub008/pkg/config"
	"github.com/agentkitai/agentlens-sub008/pkg/eventbus"
	"github.com/agentkitai/agentlens-sub008/pkg/guardrail"
	"github.com/agentkitai/agentlens-sub008/pkg/ingest"
	"github.com/agentkitai/agentlens-sub008/pkg/metrics"
	"github.com/agentkitai/agentlens-sub008/pkg/redaction"
	"github.com/agentkitai/agentlens-sub008/pkg/replay"
	"github.com/agentkitai/agentlens-sub008/pkg/retention"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/embedded"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/partitioned"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
	"github.com/agentkitai/agentlens-sub008/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("env-file",
		getEnv("ENV_FILE", "./deploy/config/.env"),
		"Path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.GinMode)

	slog.Info("starting "+version.Full(), "http_port", cfg.HTTPPort, "backend", cfg.Database.Backend)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, sqlDB, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open storage backend", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sqlDialect := apikey.SQLite
	ruleDialect := guardrail.SQLite
	if cfg.Database.Backend == config.BackendPartitioned {
		sqlDialect = apikey.Postgres
		ruleDialect = guardrail.Postgres
	}

	keyStore, err := apikey.NewSQLStore(sqlDB, sqlDialect)
	if err != nil {
		slog.Error("failed to initialize api key store", "error", err)
		os.Exit(1)
	}
	ruleStore, err := guardrail.NewSQLRuleStore(sqlDB, ruleDialect)
	if err != nil {
		slog.Error("failed to initialize guardrail rule store", "error", err)
		os.Exit(1)
	}

	var keyCache apikey.Cache
	if cfg.Auth.RedisAddr != "" {
		slog.Info("backing api key cache with redis", "addr", cfg.Auth.RedisAddr)
		keyCache = apikey.NewRedisCache(cfg.Auth.RedisAddr, cfg.Auth.RedisPassword, cfg.Auth.RedisDB, cfg.Auth.APIKeyCacheTTL)
	} else {
		keyCache = apikey.NewMemoryCache(cfg.Auth.APIKeyCacheSize, cfg.Auth.APIKeyCacheTTL)
	}
	verifier := apikey.NewVerifier(keyStore, keyCache)

	bus := eventbus.New(1024)
	projector := replay.NewProjector(store, cfg.Replay)

	scorer, err := analytics.NewScorer(store, store, analytics.DefaultWeights())
	if err != nil {
		slog.Error("failed to initialize analytics scorer", "error", err)
		os.Exit(1)
	}

	engine := guardrail.NewEngine(ruleStore, store, store, bus,
		guardrail.WithTickInterval(cfg.Guardrail.TickInterval),
		guardrail.WithHealthScorer(scorer),
	)
	engine.Start(ctx)
	defer engine.Stop()

	if cfg.Guardrail.SeedRulesFile != "" {
		if err := seedGuardrailRules(ctx, store, ruleStore, cfg.Guardrail.SeedRulesFile); err != nil {
			slog.Error("failed to seed guardrail rules", "file", cfg.Guardrail.SeedRulesFile, "error", err)
		}
	}

	var retentionOpts []retention.Option
	if dropper, ok := store.(retention.PartitionDropper); ok {
		retentionOpts = append(retentionOpts, retention.WithPartitionDropper(dropper))
	}
	retentionService := retention.NewService(store, cfg.Retention, retentionOpts...)
	if err := retentionService.Start(ctx); err != nil {
		slog.Error("failed to start retention service", "error", err)
		os.Exit(1)
	}
	defer retentionService.Stop()

	var defaultDenyRules []redaction.DenyRule
	if cfg.Redaction.DenyListFile != "" {
		defaultDenyRules, err = loadDenyListFile(cfg.Redaction.DenyListFile)
		if err != nil {
			slog.Error("failed to load redaction deny-list file", "file", cfg.Redaction.DenyListFile, "error", err)
		}
	}

	redactor := redaction.NewWithConfig(redaction.NewInMemoryReviewQueue(), redaction.LayerToggles{
		SecretDetection:  cfg.Redaction.SecretDetectionEnabled,
		PIIDetection:     cfg.Redaction.PIIDetectionEnabled,
		URLScrubbing:     cfg.Redaction.URLScrubbingEnabled,
		Deidentification: cfg.Redaction.DeidentificationEnabled,
		DenyList:         cfg.Redaction.DenyListEnabled,
		HumanReview:      cfg.Redaction.HumanReviewEnabled,
		DefaultDenyRules: defaultDenyRules,
	})

	gatewayServer := ingest.NewServer(store, bus, ruleStore, projector, verifier, redactor, cfg.Ingest)
	router := gatewayServer.Router()
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("agentlensd stopped")
}

// openStore builds the configured storage.Store, plus the *sql.DB it
// holds internally so the apikey and guardrail SQL stores (which speak
// database/sql directly rather than through storage.Store) share the
// same connection pool instead of opening a second handle onto the
// same database.
// loadDenyListFile parses an operator-maintained YAML deny-list fixture
// into rules applied process-wide by the redaction pipeline.
func loadDenyListFile(path string) ([]redaction.DenyRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open deny-list file: %w", err)
	}
	defer f.Close()
	return redaction.LoadDenyListYAML(f)
}

// seedGuardrailRules parses an operator-maintained YAML fixture of default
// guardrail rules and creates any missing ones for every known tenant.
func seedGuardrailRules(ctx context.Context, store storage.Store, ruleStore guardrail.RuleStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed rules file: %w", err)
	}
	defer f.Close()

	rules, err := guardrail.LoadSeedRulesYAML(f)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	tenants, err := store.ListTenants(tenant.AsAdmin(ctx))
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	for _, tenantID := range tenants {
		tctx := tenant.AsAdmin(ctx).Scoped(tenantID)
		if err := guardrail.SeedRules(tctx, ruleStore, rules); err != nil {
			slog.Error("failed to seed guardrail rules for tenant", "tenant_id", tenantID, "error", err)
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (storage.Store, *sql.DB, func(), error) {
	switch cfg.Backend {
	case config.BackendPartitioned:
		store, err := partitioned.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open partitioned store: %w", err)
		}
		return store, store.DB(), func() { _ = store.Close() }, nil

	case config.BackendEmbedded:
		store, err := embedded.Open(cfg.EmbeddedPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open embedded store: %w", err)
		}
		return store, store.DB(), func() { _ = store.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}
