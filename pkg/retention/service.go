// Package retention runs the daily, per-tenant event purge (spec §4.9).
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentkitai/agentlens-sub008/pkg/config"
	"github.com/agentkitai/agentlens-sub008/pkg/metrics"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
	"github.com/agentkitai/agentlens-sub008/pkg/tracing"
)

// TierLookup resolves a tenant's current plan tier (e.g. from a billing
// system external to this module). A nil TierLookup, or one returning "",
// falls back to RetentionConfig.DefaultRetentionDays for every tenant.
type TierLookup func(tenantID string) string

// Warning describes rows that will age out of retention within the
// configured lead window, emitted before the purge that would delete
// them so operators have notice.
type Warning struct {
	TenantID      string
	RetentionDays int
	RowsExpiring  int
	LeadDays      int
}

// PartitionDropper is implemented by storage backends (the partitioned
// backend) that additionally support dropping whole calendar-month
// partitions once every tenant sharing them has aged past retention
// (spec §4.9, "global decision"). The embedded backend has no
// partitions and leaves this unset.
type PartitionDropper interface {
	TenantsInPartition(ctx context.Context, t time.Time) ([]string, error)
	DropPartition(ctx context.Context, t time.Time) error
}

// Service runs the daily retention purge (C9).
type Service struct {
	store      storage.Store
	cfg        config.RetentionConfig
	tierLookup TierLookup
	dropper    PartitionDropper
	onWarning  func(Warning)

	cron *cron.Cron
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithTierLookup supplies the tenant-to-plan-tier resolver.
func WithTierLookup(fn TierLookup) Option { return func(s *Service) { s.tierLookup = fn } }

// WithPartitionDropper enables the partitioned backend's monthly
// partition-drop path.
func WithPartitionDropper(d PartitionDropper) Option {
	return func(s *Service) { s.dropper = d }
}

// WithWarningSink overrides how approaching-expiry warnings are reported.
// The default logs via slog.
func WithWarningSink(fn func(Warning)) Option { return func(s *Service) { s.onWarning = fn } }

// NewService builds a retention Service over store, configured by cfg.
func NewService(store storage.Store, cfg config.RetentionConfig, opts ...Option) *Service {
	s := &Service{store: store, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.tierLookup == nil {
		s.tierLookup = func(string) string { return "" }
	}
	if s.onWarning == nil {
		s.onWarning = func(w Warning) {
			slog.Warn("Retention: rows approaching expiry",
				"tenant_id", w.TenantID, "rows_expiring", w.RowsExpiring, "lead_days", w.LeadDays)
		}
	}
	return s
}

// Start schedules the daily 03:00 UTC purge (spec §4.9).
func (s *Service) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc("0 3 * * *", func() { s.RunAll(ctx) }); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	slog.Info("Retention service started", "schedule", "0 3 * * * (UTC)")
	return nil
}

// Stop cancels the schedule and waits for any in-flight run to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	slog.Info("Retention service stopped")
}

// RunAll purges every known tenant once. Exported so a daemon can invoke
// it directly on startup, or an admin endpoint can trigger an
// out-of-band run, in addition to the cron schedule.
func (s *Service) RunAll(ctx context.Context) {
	tenants, err := s.store.ListTenants(tenant.AsAdmin(ctx))
	if err != nil {
		slog.Error("Retention: list tenants failed", "error", err)
		return
	}
	if len(tenants) == 0 {
		return
	}

	dbOverrides, err := s.store.RetentionOverrides(tenant.AsAdmin(ctx))
	if err != nil {
		slog.Error("Retention: loading persisted overrides failed, falling back to config overrides", "error", err)
		dbOverrides = nil
	}

	now := time.Now().UTC()
	minCutoff := now
	for _, tenantID := range tenants {
		days, hasOverride := dbOverrides[tenantID]
		if !hasOverride {
			days = s.cfg.Resolve(tenantID, s.tierLookup(tenantID))
		}
		if days <= 0 {
			slog.Info("Retention: skipped, retention disabled", "tenant_id", tenantID)
			continue
		}
		cutoff := now.AddDate(0, 0, -days)
		if cutoff.Before(minCutoff) {
			minCutoff = cutoff
		}

		s.warnApproachingExpiry(ctx, tenantID, cutoff, days)

		_, span := tracing.StartRetentionPurge(ctx, tenantID)
		tctx := tenant.AsAdmin(ctx).Scoped(tenantID)
		result, err := s.store.ApplyRetention(tctx, cutoff)
		if err != nil {
			span.RecordError(err)
			span.End()
			slog.Error("Retention: purge failed", "tenant_id", tenantID, "error", err)
			continue
		}
		span.End()
		if result.Skipped || result.DeletedCount == 0 {
			continue
		}
		metrics.RetentionRowsPurged.WithLabelValues(tenantID).Add(float64(result.DeletedCount))
		slog.Info("Retention: purged events",
			"tenant_id", tenantID, "deleted_count", result.DeletedCount, "cutoff", cutoff)
	}

	if s.dropper != nil {
		s.dropOldPartitions(ctx, minCutoff)
	}
}

func (s *Service) warnApproachingExpiry(ctx context.Context, tenantID string, cutoff time.Time, days int) {
	if s.cfg.WarningLeadDays <= 0 {
		return
	}
	leadCutoff := cutoff.AddDate(0, 0, s.cfg.WarningLeadDays)
	tctx := tenant.AsAdmin(ctx).Scoped(tenantID)
	page, err := s.store.QueryEvents(tctx, storage.EventFilter{To: &leadCutoff, Limit: 1})
	if err != nil {
		slog.Error("Retention: approaching-expiry query failed", "tenant_id", tenantID, "error", err)
		return
	}
	if page.Total == 0 {
		return
	}
	s.onWarning(Warning{
		TenantID:      tenantID,
		RetentionDays: days,
		RowsExpiring:  page.Total,
		LeadDays:      s.cfg.WarningLeadDays,
	})
}

// maxPartitionLookbackMonths bounds how far back dropOldPartitions walks
// before giving up, so a gap in partition history can't spin this loop
// forever.
const maxPartitionLookbackMonths = 24

// dropOldPartitions drops monthly partitions whose upper bound is below
// minCutoff, the most conservative (smallest) per-tenant cutoff computed
// this run — a partition is safe to drop outright only once every tenant
// that could have rows in it has aged past its own retention window
// (spec §4.9, resolved as "bound by the maximum per-tenant retention
// among tenants sharing the partition").
func (s *Service) dropOldPartitions(ctx context.Context, minCutoff time.Time) {
	month := time.Date(minCutoff.Year(), minCutoff.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	for i := 0; i < maxPartitionLookbackMonths; i++ {
		partitionEnd := month.AddDate(0, 1, 0)
		if !partitionEnd.Before(minCutoff) {
			return
		}

		tenants, err := s.dropper.TenantsInPartition(ctx, month)
		if err != nil {
			// Most likely the partition was already dropped in a prior
			// run, or never existed this far back.
			return
		}
		if len(tenants) > 0 {
			slog.Warn("Retention: partition still holds live tenant data, skipping drop",
				"partition_month", month, "tenant_count", len(tenants))
			return
		}

		if err := s.dropper.DropPartition(ctx, month); err != nil {
			slog.Error("Retention: partition drop failed", "partition_month", month, "error", err)
			return
		}
		slog.Info("Retention: dropped aged-out partition", "partition_month", month)
		month = month.AddDate(0, -1, 0)
	}
}
