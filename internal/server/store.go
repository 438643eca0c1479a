package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"Sightline/internal/scene"
)

// SQLiteOverrideStore persists pinned per-pair states across restarts and
// scene reloads. One connection, WAL; callers already serialize through the
// room lock.
type SQLiteOverrideStore struct {
	db *sql.DB
}

func OpenOverrideStore(path string) (*SQLiteOverrideStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	schema := `CREATE TABLE IF NOT EXISTS overrides (
		target     TEXT NOT NULL,
		observer   TEXT NOT NULL,
		kind       INTEGER NOT NULL,
		visibility INTEGER NOT NULL DEFAULT 0,
		cover      INTEGER NOT NULL DEFAULT 0,
		source     TEXT NOT NULL DEFAULT '',
		expires_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (target, observer, kind)
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteOverrideStore{db: db}, nil
}

func (s *SQLiteOverrideStore) Close() error { return s.db.Close() }

func (s *SQLiteOverrideStore) Load(target scene.EntityID) ([]*scene.Override, error) {
	rows, err := s.db.Query(
		`SELECT observer, kind, visibility, cover, source, expires_at FROM overrides WHERE target = ?`,
		string(target))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*scene.Override
	for rows.Next() {
		var (
			observer  string
			kind      int
			vis       int
			cov       int
			source    string
			expiresAt int64
		)
		if err := rows.Scan(&observer, &kind, &vis, &cov, &source, &expiresAt); err != nil {
			return nil, err
		}
		o := &scene.Override{
			Observer:   scene.EntityID(observer),
			Kind:       scene.OverrideKind(kind),
			Visibility: scene.VisibilityState(vis),
			Cover:      scene.CoverState(cov),
			Source:     scene.OverrideSource(source),
		}
		if expiresAt > 0 {
			o.ExpiresAt = time.Unix(0, expiresAt)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteOverrideStore) Save(target scene.EntityID, o *scene.Override) error {
	var expiresAt int64
	if !o.ExpiresAt.IsZero() {
		expiresAt = o.ExpiresAt.UnixNano()
	}
	_, err := s.db.Exec(
		`INSERT INTO overrides (target, observer, kind, visibility, cover, source, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (target, observer, kind) DO UPDATE SET
		   visibility = excluded.visibility,
		   cover      = excluded.cover,
		   source     = excluded.source,
		   expires_at = excluded.expires_at`,
		string(target), string(o.Observer), int(o.Kind),
		int(o.Visibility), int(o.Cover), string(o.Source), expiresAt)
	return err
}

func (s *SQLiteOverrideStore) Clear(target scene.EntityID, kind scene.OverrideKind, observer scene.EntityID) error {
	_, err := s.db.Exec(
		`DELETE FROM overrides WHERE target = ? AND observer = ? AND kind = ?`,
		string(target), string(observer), int(kind))
	return err
}

// MemoryOverrideStore keeps overrides in process memory. Used when no db path
// is configured and by tests.
type MemoryOverrideStore struct {
	byTarget map[scene.EntityID]*scene.OverrideList
}

func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{byTarget: make(map[scene.EntityID]*scene.OverrideList)}
}

func (s *MemoryOverrideStore) Load(target scene.EntityID) ([]*scene.Override, error) {
	list, ok := s.byTarget[target]
	if !ok {
		return nil, nil
	}
	return append([]*scene.Override(nil), list.Entries...), nil
}

func (s *MemoryOverrideStore) Save(target scene.EntityID, o *scene.Override) error {
	list, ok := s.byTarget[target]
	if !ok {
		list = &scene.OverrideList{}
		s.byTarget[target] = list
	}
	list.Set(o)
	return nil
}

func (s *MemoryOverrideStore) Clear(target scene.EntityID, kind scene.OverrideKind, observer scene.EntityID) error {
	if list, ok := s.byTarget[target]; ok {
		list.Clear(kind, observer)
	}
	return nil
}
