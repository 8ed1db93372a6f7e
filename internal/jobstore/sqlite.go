package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/jobs"
)

// SQLiteStore is a jobs.Store backed by a single SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	retention int
}

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations. A positive retention evicts the oldest jobs beyond it.
func OpenSQLite(path string, retention int) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.WrapIO("create", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.WrapResource("open", "store", path, err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("open", "store", path, err)
	}

	// Single writer connection for SQLite
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("migrate", "store", path, err)
	}

	return &SQLiteStore{db: db, retention: max(retention, 0)}, nil
}

// Create implements jobs.Store.
func (s *SQLiteStore) Create(ctx context.Context, job *jobs.Job) (string, error) {
	if job == nil {
		return "", errors.NewValidationError("job", nil, "cannot be nil")
	}
	stored := job.Clone()
	if stored.ID == "" {
		stored.ID = jobs.NewID()
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return "", errors.WrapResource("create", "job", stored.ID, err)
	}
	summary, err := json.Marshal(stored.Summary())
	if err != nil {
		return "", errors.WrapResource("create", "job", stored.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.WrapResource("create", "job", stored.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (id, status, entity_type, created_at, summary, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		stored.ID, string(stored.Status), stored.EntityType,
		stored.CreatedAt.Time.UTC().Format(time.RFC3339Nano), string(summary), string(payload))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", errors.WrapResource("create", "job", stored.ID, errors.ErrAlreadyExists)
		}
		return "", errors.WrapResource("create", "job", stored.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO job_totals (status, n) VALUES (?, 1)
		 ON CONFLICT(status) DO UPDATE SET n = n + 1`, string(stored.Status))
	if err != nil {
		return "", errors.WrapResource("create", "job", stored.ID, err)
	}

	if s.retention > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM jobs WHERE seq <= (SELECT MAX(seq) FROM jobs) - ?`, s.retention)
		if err != nil {
			return "", errors.WrapResource("create", "job", stored.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.WrapResource("create", "job", stored.ID, err)
	}
	return stored.ID, nil
}

// Get implements jobs.Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM jobs WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("reconciliation", id)
	}
	if err != nil {
		return nil, errors.WrapResource("get", "job", id, err)
	}

	var job jobs.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, errors.WrapResource("get", "job", id, fmt.Errorf("decoding payload: %w", err))
	}
	return &job, nil
}

// List implements jobs.Store.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) (jobs.Page, error) {
	limit, offset = jobs.NormalizePage(limit, offset)
	page := jobs.Page{Jobs: []jobs.Summary{}, Limit: limit, Offset: offset}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&page.Total); err != nil {
		return page, errors.WrapResource("list", "job", "", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT summary FROM jobs ORDER BY seq LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return page, errors.WrapResource("list", "job", "", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return page, errors.WrapResource("list", "job", "", err)
		}
		var sum jobs.Summary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			return page, errors.WrapResource("list", "job", "", err)
		}
		page.Jobs = append(page.Jobs, sum)
	}
	if err := rows.Err(); err != nil {
		return page, errors.WrapResource("list", "job", "", err)
	}
	return page, nil
}

// Counts implements jobs.Store. Evicted jobs still count toward the totals.
func (s *SQLiteStore) Counts(ctx context.Context) (jobs.Counts, error) {
	var counts jobs.Counts
	rows, err := s.db.QueryContext(ctx, `SELECT status, n FROM job_totals`)
	if err != nil {
		return counts, errors.WrapResource("list", "job", "", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, errors.WrapResource("list", "job", "", err)
		}
		switch jobs.Status(status) {
		case jobs.StatusCompleted:
			counts.Completed = n
		case jobs.StatusFailed:
			counts.Failed = n
		}
	}
	counts.Total = counts.Completed + counts.Failed
	return counts, rows.Err()
}

// Close implements jobs.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ jobs.Store = (*SQLiteStore)(nil)
