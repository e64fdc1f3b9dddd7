// Package journal keeps a local record of exam submissions.
//
// Each exam has at most one row. A row starts "pending" with the idempotency
// key of the submit that is being attempted, and becomes "submitted" with the
// server's result once a submit succeeds. A submitted row is never rewritten.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
)

const DefaultPath = "exam-journal.db"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
)

var ErrNotFound = errors.New("no journal entry for exam")

type Receipt struct {
	ExamID         string       `json:"examId" yaml:"examId"`
	ExamTitle      string       `json:"examTitle,omitempty" yaml:"examTitle,omitempty"`
	IdempotencyKey string       `json:"idempotencyKey" yaml:"idempotencyKey"`
	Status         Status       `json:"status" yaml:"status"`
	Result         *exam.Result `json:"result,omitempty" yaml:"result,omitempty"`
	UpdatedAt      time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			exam_id TEXT PRIMARY KEY,
			exam_title TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL,
			status TEXT NOT NULL,
			result_json TEXT,
			updated_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_updated_at ON submissions(updated_at_unix DESC);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// MarkPending records key as the idempotency key of the submit in flight for
// examID. It keeps an existing pending key and never touches a submitted row,
// and returns the key that is now on record.
func (s *Store) MarkPending(ctx context.Context, examID, examTitle, key string) (string, error) {
	if strings.TrimSpace(examID) == "" {
		return "", errors.New("exam id is required")
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("idempotency key is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO submissions (exam_id, exam_title, idempotency_key, status, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?)`,
		examID,
		examTitle,
		key,
		string(StatusPending),
		s.now().UnixNano(),
	); err != nil {
		return "", err
	}

	var stored string
	if err := tx.QueryRowContext(
		ctx,
		`SELECT idempotency_key FROM submissions WHERE exam_id = ?`,
		examID,
	).Scan(&stored); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return stored, nil
}

func (s *Store) MarkSubmitted(ctx context.Context, examID, examTitle, key string, result exam.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO submissions (exam_id, exam_title, idempotency_key, status, result_json, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(exam_id) DO UPDATE SET
			exam_title = excluded.exam_title,
			idempotency_key = excluded.idempotency_key,
			status = excluded.status,
			result_json = excluded.result_json,
			updated_at_unix = excluded.updated_at_unix
		 WHERE submissions.status <> ?`,
		examID,
		examTitle,
		key,
		string(StatusSubmitted),
		string(resultJSON),
		s.now().UnixNano(),
		string(StatusSubmitted),
	)
	return err
}

func (s *Store) Get(ctx context.Context, examID string) (Receipt, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT exam_id, exam_title, idempotency_key, status, result_json, updated_at_unix
		 FROM submissions WHERE exam_id = ?`,
		examID,
	)
	receipt, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	return receipt, err
}

func (s *Store) List(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT exam_id, exam_title, idempotency_key, status, result_json, updated_at_unix
		 FROM submissions
		 ORDER BY updated_at_unix DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]Receipt, 0)
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (Receipt, error) {
	var (
		receipt       Receipt
		status        string
		resultJSON    sql.NullString
		updatedAtUnix int64
	)
	if err := row.Scan(&receipt.ExamID, &receipt.ExamTitle, &receipt.IdempotencyKey, &status, &resultJSON, &updatedAtUnix); err != nil {
		return Receipt{}, err
	}

	receipt.Status = Status(status)
	receipt.UpdatedAt = time.Unix(0, updatedAtUnix).UTC()
	if resultJSON.Valid && resultJSON.String != "" {
		var result exam.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return Receipt{}, err
		}
		receipt.Result = &result
	}
	return receipt, nil
}
