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
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin inserts a running entry and returns it with a fresh ID.
func (s *Store) Begin(ctx context.Context, recording, channel string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Recording: recording,
		Channel:   channel,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, recording, channel, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, recording, nullableString(channel), run.Status, run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish stores the outcome of run and replaces its marks.
func (s *Store) Finish(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	passes, err := json.Marshal(run.Passes)
	if err != nil {
		return fmt.Errorf("marshal passes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs
         SET status = ?, error_message = ?, frame_rate = ?, frames = ?, passes_json = ?, finished_at = ?
         WHERE id = ?`,
		run.Status, nullableString(run.ErrorMessage), run.FrameRate, run.Frames, string(passes),
		run.FinishedAt.Format(time.RFC3339Nano), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_marks WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear run marks: %w", err)
	}
	for i, m := range run.Marks {
		var oldPos any
		if m.Moved() {
			oldPos = m.OldPosition
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_marks (run_id, seq, position, kind, class, comment, old_class, old_position)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, m.Position, m.Kind, m.Class, nullableString(m.Comment), nullableString(m.OldClass), oldPos,
		); err != nil {
			return fmt.Errorf("insert run mark: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = "id, recording, channel, status, error_message, frame_rate, frames, passes_json, started_at, finished_at"

// Get fetches a run with its marks. A missing run returns nil, nil. id may
// be a unique prefix.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ORDER BY started_at LIMIT 2`, id+"%")
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(runs) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	run := runs[0]
	if run.Marks, err = s.marks(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs without marks, newest first. recording
// filters by exact path when not empty.
func (s *Store) List(ctx context.Context, recording string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if recording != "" {
		query += ` WHERE recording = ?`
		args = append(args, recording)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) marks(ctx context.Context, runID string) ([]Mark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, kind, class, comment, old_class, old_position FROM run_marks WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run marks: %w", err)
	}
	defer rows.Close()
	var out []Mark
	for rows.Next() {
		var (
			m        Mark
			comment  sql.NullString
			oldClass sql.NullString
			oldPos   sql.NullInt64
		)
		if err := rows.Scan(&m.Position, &m.Kind, &m.Class, &comment, &oldClass, &oldPos); err != nil {
			return nil, fmt.Errorf("scan run mark: %w", err)
		}
		m.Comment = comment.String
		m.OldClass = oldClass.String
		m.OldPosition = int(oldPos.Int64)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		channel     sql.NullString
		status      string
		errMessage  sql.NullString
		passesJSON  sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.Recording, &channel, &status, &errMessage,
		&run.FrameRate, &run.Frames, &passesJSON, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}
	run.Channel = channel.String
	run.Status = Status(status)
	run.ErrorMessage = errMessage.String
	if passesJSON.Valid && passesJSON.String != "" {
		if err := json.Unmarshal([]byte(passesJSON.String), &run.Passes); err != nil {
			return nil, fmt.Errorf("decode passes: %w", err)
		}
	}
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		run.FinishedAt = parseTime(finishedRaw.String)
	}
	return &run, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
