package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vectralite/vectralite/index/hnsw"
	"go.uber.org/zap"
)

var (
	// ErrCorrupt indicates a recorded snapshot whose bytes no longer match
	// their checksum or no longer parse. The caller must fall back to an
	// unbuilt index rather than use it.
	ErrCorrupt = errors.New("snapshot: corrupt snapshot")

	// ErrNone indicates that no snapshot has been recorded yet.
	ErrNone = errors.New("snapshot: no snapshot recorded")
)

const schema = `
CREATE TABLE IF NOT EXISTS graph_snapshots (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    file_name  TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`

// Record describes one recorded snapshot.
type Record struct {
	ID        int64
	FileName  string
	Checksum  string
	CreatedAt time.Time
}

// Manager owns the snapshot directory and the graph_snapshots index table.
type Manager struct {
	db     *sql.DB
	dir    string
	cfg    hnsw.Config
	logger *zap.Logger
}

// NewManager creates a Manager writing blobs under dir and recording them in
// db. cfg supplies the search parameters decoded graphs are created with.
func NewManager(db *sql.DB, dir string, cfg hnsw.Config, logger *zap.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("snapshot: db is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir %q: %w", dir, err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("snapshot: ensure schema: %w", err)
	}
	return &Manager{db: db, dir: dir, cfg: cfg, logger: logger}, nil
}

// Persist serializes the graph, writes it to a uniquely named file, and
// records the file with its checksum. The record is committed only after the
// file is fully written.
func (m *Manager) Persist(ctx context.Context, g *hnsw.Graph) (Record, error) {
	blob, err := g.MarshalBinary()
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: encode graph: %w", err)
	}
	sum := sha256.Sum256(blob)
	rec := Record{
		FileName:  "graph-" + uuid.NewString() + ".bin",
		Checksum:  hex.EncodeToString(sum[:]),
		CreatedAt: time.Now().UTC(),
	}
	path := filepath.Join(m.dir, rec.FileName)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return Record{}, fmt.Errorf("snapshot: write %q: %w", path, err)
	}
	res, err := m.db.ExecContext(ctx,
		`INSERT INTO graph_snapshots(file_name, checksum, created_at) VALUES(?, ?, ?)`,
		rec.FileName, rec.Checksum, rec.CreatedAt.Unix())
	if err != nil {
		_ = os.Remove(path)
		return Record{}, fmt.Errorf("snapshot: record %q: %w", rec.FileName, err)
	}
	rec.ID, _ = res.LastInsertId()
	m.logger.Info("snapshot persisted",
		zap.String("file", rec.FileName),
		zap.Int("nodes", g.Len()),
		zap.Int("bytes", len(blob)))
	return rec, nil
}

// LoadLatest reads the most recently recorded snapshot, verifies its checksum
// over the read bytes, and decodes it. A checksum or decode failure returns
// ErrCorrupt; a missing record returns ErrNone.
func (m *Manager) LoadLatest(ctx context.Context) (*hnsw.Graph, Record, error) {
	var (
		rec     Record
		created int64
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT id, file_name, checksum, created_at FROM graph_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&rec.ID, &rec.FileName, &rec.Checksum, &created)
	if err == sql.ErrNoRows {
		return nil, Record{}, ErrNone
	}
	if err != nil {
		return nil, Record{}, fmt.Errorf("snapshot: load latest: %w", err)
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()

	blob, err := os.ReadFile(filepath.Join(m.dir, rec.FileName))
	if err != nil {
		return nil, rec, fmt.Errorf("%w: read %q: %v", ErrCorrupt, rec.FileName, err)
	}
	sum := sha256.Sum256(blob)
	if hex.EncodeToString(sum[:]) != rec.Checksum {
		return nil, rec, fmt.Errorf("%w: checksum mismatch for %q", ErrCorrupt, rec.FileName)
	}
	g, err := hnsw.Decode(blob, m.cfg)
	if err != nil {
		return nil, rec, fmt.Errorf("%w: decode %q: %v", ErrCorrupt, rec.FileName, err)
	}
	return g, rec, nil
}

// GC deletes all but the most recent keepLast snapshot files and their index
// rows, returning the number removed.
func (m *Manager) GC(ctx context.Context, keepLast int) (int, error) {
	if keepLast < 0 {
		keepLast = 0
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, file_name FROM graph_snapshots ORDER BY id DESC LIMIT -1 OFFSET ?`, keepLast)
	if err != nil {
		return 0, fmt.Errorf("snapshot: gc: %w", err)
	}
	defer rows.Close()

	type stale struct {
		id   int64
		name string
	}
	var victims []stale
	for rows.Next() {
		var s stale
		if err := rows.Scan(&s.id, &s.name); err != nil {
			return 0, fmt.Errorf("snapshot: gc: %w", err)
		}
		victims = append(victims, s)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("snapshot: gc: %w", err)
	}

	removed := 0
	for _, v := range victims {
		if err := os.Remove(filepath.Join(m.dir, v.name)); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("snapshot file removal failed", zap.String("file", v.name), zap.Error(err))
		}
		if _, err := m.db.ExecContext(ctx, `DELETE FROM graph_snapshots WHERE id = ?`, v.id); err != nil {
			return removed, fmt.Errorf("snapshot: gc %q: %w", v.name, err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("snapshots garbage-collected", zap.Int("removed", removed), zap.Int("kept", keepLast))
	}
	return removed, nil
}

// Count returns the number of recorded snapshots.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("snapshot: count: %w", err)
	}
	return n, nil
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string { return m.dir }
