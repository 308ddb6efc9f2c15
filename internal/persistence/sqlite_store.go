package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run ID is not in the store.
var ErrNotFound = errors.New("run not found")

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore keeps the history of agent runs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		// embed.FS paths always use forward slashes.
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_runs.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// SaveRun inserts or replaces a run and its tool calls.
func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord) (err error) {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	transcript := run.Transcript
	if transcript == nil {
		transcript = []string{}
	}
	transcriptJSON, err := json.Marshal(transcript)
	if err != nil {
		return err
	}
	createdAt := run.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	toolCallCount := run.ToolCallCount
	if len(run.ToolCalls) > toolCallCount {
		toolCallCount = len(run.ToolCalls)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO runs (
			id, question, language, outcome, answer, error, iterations, tool_call_count, transcript_json, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question=excluded.question,
			language=excluded.language,
			outcome=excluded.outcome,
			answer=excluded.answer,
			error=excluded.error,
			iterations=excluded.iterations,
			tool_call_count=excluded.tool_call_count,
			transcript_json=excluded.transcript_json,
			duration_ms=excluded.duration_ms`,
		run.ID,
		run.Question,
		run.Language.String(),
		run.Outcome,
		run.Answer,
		run.Error,
		run.Iterations,
		toolCallCount,
		string(transcriptJSON),
		run.Duration.Milliseconds(),
		createdAt,
	)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_tool_calls WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	for i, call := range run.ToolCalls {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO run_tool_calls (run_id, seq, tool, input, result, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			i,
			call.Tool,
			call.Input,
			call.Result,
			call.Error,
			call.Duration.Milliseconds(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const runColumns = `id, question, language, outcome, answer, error, iterations, tool_call_count, transcript_json, duration_ms, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var lang string
	var transcriptJSON string
	var durationMS int64
	if err := row.Scan(
		&rec.ID,
		&rec.Question,
		&lang,
		&rec.Outcome,
		&rec.Answer,
		&rec.Error,
		&rec.Iterations,
		&rec.ToolCallCount,
		&transcriptJSON,
		&durationMS,
		&rec.CreatedAt,
	); err != nil {
		return RunRecord{}, err
	}
	if err := json.Unmarshal([]byte(transcriptJSON), &rec.Transcript); err != nil {
		return RunRecord{}, fmt.Errorf("decode transcript of run %s: %w", rec.ID, err)
	}
	rec.Language = parseLanguage(lang)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}

// GetRun returns a run with its tool calls, or ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, ErrNotFound
		}
		return RunRecord{}, err
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT tool, input, result, error, duration_ms
		 FROM run_tool_calls
		 WHERE run_id = ?
		 ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return RunRecord{}, err
	}
	defer rows.Close()

	rec.ToolCalls = make([]ToolCallRecord, 0, rec.ToolCallCount)
	for rows.Next() {
		var call ToolCallRecord
		var durationMS int64
		if err := rows.Scan(&call.Tool, &call.Input, &call.Result, &call.Error, &durationMS); err != nil {
			return RunRecord{}, err
		}
		call.Duration = time.Duration(durationMS) * time.Millisecond
		rec.ToolCalls = append(rec.ToolCalls, call)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// ListRuns returns the most recent runs first, without tool calls.
// A non-positive limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id ASC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteRunsBefore removes runs created before t and returns how many were removed.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, t time.Time) (n int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cutoff := t.UTC()
	if _, err = tx.ExecContext(
		ctx,
		`DELETE FROM run_tool_calls WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`,
		cutoff,
	); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
