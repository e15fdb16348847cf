// Package partitioned implements the storage.Store contract for
// multi-tenant production deployments: one shared PostgreSQL database,
// monthly range partitions on the events table, and row-level security
// keyed off a session-local setting so a forgotten WHERE clause fails
// closed instead of leaking across tenants (spec §4.2, §6).
//
// Tenant ids in this backend are expected to be org-id-prefixed
// (e.g. "org_7f3a:acme-prod") so two organizations can never collide on
// a bare slug; the backend itself treats the id as an opaque string and
// enforces isolation through Postgres RLS rather than string parsing.
package partitioned

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the partitioned backend's connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds the libpq connection string main uses both to open this
// backend's own pool and to open the secondary *sql.DB the apikey and
// guardrail SQL stores need (they speak database/sql directly, not
// through storage.Store).
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Store is the partitioned multi-tenant backend.
type Store struct {
	db *stdsql.DB
}

// Open connects to Postgres, applies pending migrations, and ensures a
// partition exists for the current and next calendar month.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db}
	now := time.Now().UTC()
	if err := s.EnsurePartition(ctx, now); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure current partition: %w", err)
	}
	if err := s.EnsurePartition(ctx, now.AddDate(0, 1, 0)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure next partition: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB so callers outside this package
// (the apikey and guardrail SQL stores) can share this backend's own
// connection pool rather than opening a second one.
func (s *Store) DB() *stdsql.DB { return s.db }

func runMigrations(db *stdsql.DB, databaseName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// withTenant runs fn inside a transaction with the RLS session variable
// set to tenantID for the duration of the transaction, so every
// statement fn issues is automatically scoped (spec §4.2, "a forgotten
// WHERE clause must fail closed, not leak").
func (s *Store) withTenant(ctx context.Context, tenantID string, fn func(tx *stdsql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('agentlens.tenant_id', $1, true)`, tenantID); err != nil {
		return fmt.Errorf("set tenant scope: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// partitionName returns the name of the monthly partition covering t,
// e.g. events_y2026m07.
func partitionName(t time.Time) string {
	return fmt.Sprintf("events_y%04dm%02d", t.Year(), int(t.Month()))
}

// EnsurePartition creates the monthly partition covering t if it does
// not already exist (spec §4.2, "monthly range partitions").
func (s *Store) EnsurePartition(ctx context.Context, t time.Time) error {
	t = t.UTC()
	name := partitionName(t)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF events FOR VALUES FROM ('%s') TO ('%s')`,
		name, start.Format(time.RFC3339), end.Format(time.RFC3339)))
	if err != nil {
		return fmt.Errorf("create partition %s: %w", name, err)
	}
	return nil
}

// DropPartition drops the monthly partition covering t outright. Used by
// the retention purger when every tenant whose rows live in that
// partition has aged past its retention window (spec §4.9).
func (s *Store) DropPartition(ctx context.Context, t time.Time) error {
	name := partitionName(t.UTC())
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name))
	if err != nil {
		return fmt.Errorf("drop partition %s: %w", name, err)
	}
	return nil
}

// TenantsInPartition returns the distinct tenant ids with at least one
// row in the partition covering t, used to compute the retention bound
// for a partition-drop decision (spec open question, resolved as "max
// per-tenant retention across tenants sharing a partition").
func (s *Store) TenantsInPartition(ctx context.Context, t time.Time) ([]string, error) {
	name := partitionName(t.UTC())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT tenant_id FROM %s`, name))
	if err != nil {
		return nil, fmt.Errorf("list tenants in partition %s: %w", name, err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}
