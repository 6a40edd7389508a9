package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"tweet_relay/internal/model"
	"tweet_relay/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database. The seen-set is
// stored as a JSON array in a text column, keeping the row a single
// document per tenant.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetTenant returns a single tenant record, or (nil, nil) when absent.
func (s *SQLite) GetTenant(ctx context.Context, id int64) (*model.Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, encrypted_cookies, target_id, target_screen_name, webhook_url,
		        enabled, seen_tweet_ids, created_at, updated_at
		 FROM tenants WHERE id = ?`, id,
	)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// SaveTenant inserts or fully overwrites a tenant record.
func (s *SQLite) SaveTenant(ctx context.Context, t *model.Tenant) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	seen, err := json.Marshal(t.SeenTweetIDs)
	if err != nil {
		return fmt.Errorf("encode seen ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, encrypted_cookies, target_id, target_screen_name,
		                      webhook_url, enabled, seen_tweet_ids, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   encrypted_cookies = excluded.encrypted_cookies,
		   target_id = excluded.target_id,
		   target_screen_name = excluded.target_screen_name,
		   webhook_url = excluded.webhook_url,
		   enabled = excluded.enabled,
		   seen_tweet_ids = excluded.seen_tweet_ids,
		   updated_at = excluded.updated_at`,
		t.ID, t.EncryptedCookies, t.TargetID, t.TargetScreenName, t.WebhookURL,
		boolToInt(t.Enabled), string(seen),
		t.CreatedAt.Format(timeLayout), t.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

// ListEnabled returns all tenants with Enabled set, ordered by ID.
func (s *SQLite) ListEnabled(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, encrypted_cookies, target_id, target_screen_name, webhook_url,
		        enabled, seen_tweet_ids, created_at, updated_at
		 FROM tenants WHERE enabled = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query enabled tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTenant(row scannable) (*model.Tenant, error) {
	var t model.Tenant
	var enabled int
	var seenJSON string
	var created, updated sql.NullString
	err := row.Scan(&t.ID, &t.EncryptedCookies, &t.TargetID, &t.TargetScreenName,
		&t.WebhookURL, &enabled, &seenJSON, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	t.Enabled = enabled == 1
	if seenJSON != "" {
		if err := json.Unmarshal([]byte(seenJSON), &t.SeenTweetIDs); err != nil {
			return nil, fmt.Errorf("decode seen ids: %w", err)
		}
	}
	if created.Valid {
		t.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	if updated.Valid {
		t.UpdatedAt, _ = time.Parse(timeLayout, updated.String)
	}
	return &t, nil
}
