package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"tweet_relay/internal/model"
)

// File implements Storage with one JSON document per tenant under a
// directory. Writes go through a temp file and rename so a crash never
// leaves a half-written record.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile opens (creating if needed) a file-backed store rooted at dir.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// Close is a no-op for the file backend.
func (s *File) Close() error { return nil }

// GetTenant reads a single tenant record. A missing file is not an error.
func (s *File) GetTenant(ctx context.Context, id int64) (*model.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tenant %d: %w", id, err)
	}
	var t model.Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tenant %d: %w", id, err)
	}
	t.ID = id
	return &t, nil
}

// SaveTenant writes the full record, creating it if absent.
func (s *File) SaveTenant(ctx context.Context, t *model.Tenant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tenant %d: %w", t.ID, err)
	}

	path := s.path(t.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write tenant %d: %w", t.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename tenant %d: %w", t.ID, err)
	}
	return nil
}

// ListEnabled returns all tenants with Enabled set, ordered by ID.
// Records that fail to parse are skipped rather than failing the listing.
func (s *File) ListEnabled(ctx context.Context) ([]model.Tenant, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var tenants []model.Tenant
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		t, err := s.GetTenant(ctx, id)
		if err != nil || t == nil {
			continue
		}
		if t.Enabled {
			tenants = append(tenants, *t)
		}
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

func (s *File) path(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", id))
}
