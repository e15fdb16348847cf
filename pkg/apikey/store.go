package apikey

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// Store persists and looks up API keys. GetByPrefix is deliberately
// cross-tenant and takes a plain context — at authentication time the
// caller doesn't yet know which tenant a presented key belongs to; that
// is exactly what the lookup determines (spec §6 "Auth": "prefix-
// indexed").
type Store interface {
	Create(ctx tenant.Context, k Key) (Key, error)
	GetByPrefix(ctx context.Context, prefix string) (Key, error)
	List(ctx tenant.Context) ([]Key, error)
	Revoke(ctx tenant.Context, id string) error
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

// Dialect isolates the SQL placeholder style, following the split
// already established in pkg/embedding and pkg/guardrail's stores.
type Dialect struct {
	Name           string
	Placeholder    func(n int) string
	CreateTableSQL string
}

var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	CreateTableSQL: `
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, prefix TEXT NOT NULL UNIQUE,
	secret_hash TEXT NOT NULL, name TEXT NOT NULL, scopes TEXT NOT NULL,
	environment TEXT NOT NULL, created_at TEXT NOT NULL, last_used_at TEXT, revoked_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_api_keys_tenant ON api_keys(tenant_id);
`,
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	CreateTableSQL: `
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, prefix TEXT NOT NULL UNIQUE,
	secret_hash TEXT NOT NULL, name TEXT NOT NULL, scopes JSONB NOT NULL,
	environment TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL, last_used_at TIMESTAMPTZ, revoked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_api_keys_tenant ON api_keys(tenant_id);
`,
}

// SQLStore is the dialect-neutral Store implementation.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore applies the dialect's schema and returns a ready store.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if _, err := db.Exec(dialect.CreateTableSQL); err != nil {
		return nil, fmt.Errorf("apply api_keys schema: %w", err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) timeValue(t time.Time) any {
	if s.dialect.Name == "postgres" {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLStore) Create(ctx tenant.Context, k Key) (Key, error) {
	p := s.dialect.Placeholder
	k.TenantID = ctx.ID()
	k.CreatedAt = time.Now().UTC()

	scopes, err := json.Marshal(k.Scopes)
	if err != nil {
		return Key{}, fmt.Errorf("marshal scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO api_keys
		(id, tenant_id, prefix, secret_hash, name, scopes, environment, created_at, last_used_at, revoked_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10)),
		k.ID, k.TenantID, k.Prefix, k.SecretHash, k.Name, string(scopes), string(k.Environment),
		s.timeValue(k.CreatedAt), nil, nil)
	if err != nil {
		return Key{}, fmt.Errorf("insert api key: %w", err)
	}
	return k, nil
}

const selectColumns = `id, tenant_id, prefix, secret_hash, name, scopes, environment, created_at, last_used_at, revoked_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (Key, error) {
	var k Key
	var scopes string
	var env string
	var created string
	var lastUsed, revoked sql.NullString

	if err := row.Scan(&k.ID, &k.TenantID, &k.Prefix, &k.SecretHash, &k.Name, &scopes, &env, &created, &lastUsed, &revoked); err != nil {
		return Key{}, err
	}

	k.Environment = Environment(env)
	_ = json.Unmarshal([]byte(scopes), &k.Scopes)

	if t, err := parseTime(created); err == nil {
		k.CreatedAt = t
	}
	if lastUsed.Valid {
		if t, err := parseTime(lastUsed.String); err == nil {
			k.LastUsedAt = &t
		}
	}
	if revoked.Valid {
		if t, err := parseTime(revoked.String); err == nil {
			k.RevokedAt = &t
		}
	}
	return k, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (s *SQLStore) GetByPrefix(ctx context.Context, prefix string) (Key, error) {
	p := s.dialect.Placeholder
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM api_keys WHERE prefix = %s`, selectColumns, p(1)), prefix)
	k, err := scanKey(row)
	if err == sql.ErrNoRows {
		return Key{}, apperrors.NotFound("no api key with prefix %q", prefix)
	}
	if err != nil {
		return Key{}, fmt.Errorf("get api key by prefix: %w", err)
	}
	return k, nil
}

func (s *SQLStore) List(ctx tenant.Context) ([]Key, error) {
	p := s.dialect.Placeholder
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM api_keys WHERE tenant_id = %s ORDER BY created_at DESC`, selectColumns, p(1)), ctx.ID())
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLStore) Revoke(ctx tenant.Context, id string) error {
	p := s.dialect.Placeholder
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE api_keys SET revoked_at = %s WHERE id = %s AND tenant_id = %s`,
		p(1), p(2), p(3)), s.timeValue(time.Now().UTC()), id, ctx.ID())
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.NotFound("api key %q not found", id)
	}
	return nil
}

func (s *SQLStore) MarkUsed(ctx context.Context, id string, at time.Time) error {
	p := s.dialect.Placeholder
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE api_keys SET last_used_at = %s WHERE id = %s`, p(1), p(2)),
		s.timeValue(at), id)
	return err
}
