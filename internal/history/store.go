// Package history keeps executed render plans in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/logger"
	"github.com/alucardeht/amgp/internal/render"
)

var log = logger.ForComponent("history")

var ErrPlanNotFound = errors.New("plan not found")

// timeLayout is fixed width so stored times sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Entry summarizes a recorded plan.
type Entry struct {
	ID        uuid.UUID
	Preset    string
	Anchor    time.Time
	CreatedAt time.Time
	Figures   int
	Warnings  int
}

// LayerUse is one resolved layer timestamp.
type LayerUse struct {
	PlanID     uuid.UUID
	Figure     int
	Axis       int
	Source     identifier.ID
	Capability string
	ResolvedAt time.Time
}

func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("history opened", "path", dbPath)
	return store, nil
}

func (s *Store) initSchema() error {
	lines := strings.Split(GetSchema(), "\n")
	var cleanLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "--") && trimmed != "" {
			cleanLines = append(cleanLines, line)
		}
	}

	if _, err := s.db.Exec(strings.Join(cleanLines, "\n")); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores plan and every layer it resolved. Recording the same plan
// twice replaces the earlier copy.
func (s *Store) Record(ctx context.Context, plan *render.Plan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id := plan.ID.String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("replace plan: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO plans (id, preset, anchor, created_at, figures, warnings, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, plan.Preset, plan.Anchor.UTC().Format(timeLayout), plan.CreatedAt.UTC().Format(timeLayout),
		len(plan.Figures), len(plan.Warnings), string(body)); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO layers (plan_id, figure, axis, source_module, capability, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare layers: %w", err)
	}
	defer stmt.Close()

	for _, fig := range plan.Figures {
		for _, frame := range fig.Axes {
			for _, layer := range frame.Layers {
				if _, err := stmt.ExecContext(ctx, id, fig.Index, frame.Axis,
					string(layer.Factor.SourceModule), layer.Factor.Name, layer.Time.UTC().Format(timeLayout)); err != nil {
					return fmt.Errorf("insert layer: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Debug("plan recorded", "id", id, "figures", len(plan.Figures))
	return nil
}

// Recent lists the newest plans first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, preset, anchor, created_at, figures, warnings
		FROM plans ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                Entry
			id, anchor, made string
		)
		if err := rows.Scan(&id, &e.Preset, &anchor, &made, &e.Figures, &e.Warnings); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("plan id %q: %w", id, err)
		}
		if e.Anchor, err = time.Parse(timeLayout, anchor); err != nil {
			return nil, fmt.Errorf("plan anchor: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, made); err != nil {
			return nil, fmt.Errorf("plan created_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the full recorded plan.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*render.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE id = ?`, id.String()).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var plan render.Plan
	if err := json.Unmarshal([]byte(body), &plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return &plan, nil
}

// Layers lists every layer timestamp recorded for a capability, newest
// first.
func (s *Store) Layers(ctx context.Context, source identifier.ID, capability string, limit int) ([]LayerUse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, figure, axis, source_module, capability, resolved_at
		FROM layers WHERE source_module = ? AND capability = ?
		ORDER BY resolved_at DESC, id DESC LIMIT ?
	`, string(source), capability, limit)
	if err != nil {
		return nil, fmt.Errorf("query layers: %w", err)
	}
	defer rows.Close()

	var out []LayerUse
	for rows.Next() {
		var (
			u               LayerUse
			planID, src, at string
		)
		if err := rows.Scan(&planID, &u.Figure, &u.Axis, &src, &u.Capability, &at); err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		if u.PlanID, err = uuid.Parse(planID); err != nil {
			return nil, fmt.Errorf("layer plan id %q: %w", planID, err)
		}
		if u.ResolvedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("layer time: %w", err)
		}
		u.Source = identifier.ID(src)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Prune deletes plans created before cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune plans: %w", err)
	}
	return res.RowsAffected()
}
