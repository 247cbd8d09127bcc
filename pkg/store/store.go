package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smalyshev/TabulistBot/pkg/db"
	"github.com/smalyshev/TabulistBot/pkg/model"
)

// Store defines the repository interface.
type Store interface {
	PageStatusStore

	// Close closes the store connection.
	Close() error
}

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db *db.DB
}

// NewSQLStore creates a new store.
func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectColumns = `SELECT id, wiki, page, status, message, timestamp FROM pagestatus`

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(row scanner) (*model.PageStatus, error) {
	var p model.PageStatus
	var status, ts string
	if err := row.Scan(&p.ID, &p.Wiki, &p.Page, &status, &p.Message, &ts); err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	if ts != "" {
		t, err := time.ParseInLocation(db.TimeLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q for page %d: %w", ts, p.ID, err)
		}
		p.Timestamp = t
	}
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

func (s *SQLStore) getOne(ctx context.Context, where string, args ...any) (*model.PageStatus, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(selectColumns+" WHERE "+where), args...)
	p, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return p, nil
}

func (s *SQLStore) list(ctx context.Context, where string, args ...any) ([]*model.PageStatus, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(selectColumns+" WHERE "+where+" ORDER BY id"), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PageStatus
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) GetByID(ctx context.Context, id int64) (*model.PageStatus, error) {
	return s.getOne(ctx, "id = ?", id)
}

func (s *SQLStore) GetByPage(ctx context.Context, wiki, page string) (*model.PageStatus, error) {
	return s.getOne(ctx, "wiki = ? AND page = ?", wiki, page)
}

func (s *SQLStore) ListByWiki(ctx context.Context, wiki string) ([]*model.PageStatus, error) {
	return s.list(ctx, "wiki = ?", wiki)
}

func (s *SQLStore) ListByStatus(ctx context.Context, wiki string, statuses ...model.Status) ([]*model.PageStatus, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	where, args := statusFilter(wiki, statuses)
	return s.list(ctx, where, args...)
}

func (s *SQLStore) CountByStatus(ctx context.Context, wiki string) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT status, count(*) FROM pagestatus WHERE wiki = ? GROUP BY status`), wiki)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertWaiting(ctx context.Context, wiki, page string, ts time.Time) error {
	_, err := s.exec(ctx,
		`INSERT INTO pagestatus (wiki, page, status, message, timestamp) VALUES (?, ?, ?, '', ?)
		 ON CONFLICT (wiki, page) DO UPDATE SET status = excluded.status, message = '', timestamp = excluded.timestamp
		 WHERE pagestatus.status <> ?`,
		wiki, page, string(model.StatusWaiting), formatTime(ts), string(model.StatusRunning))
	return err
}

func (s *SQLStore) MarkChecking(ctx context.Context, wiki, prefix string, from ...model.Status) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}
	where, args := statusFilter(wiki, from)
	query := `UPDATE pagestatus SET status = ? WHERE ` + where
	args = append([]any{string(model.StatusChecking)}, args...)
	if prefix != "" {
		query += ` AND substr(page, 1, ?) = ?`
		args = append(args, utf8.RuneCountInString(prefix), prefix)
	}
	return s.exec(ctx, query, args...)
}

func (s *SQLStore) AcquireRun(ctx context.Context, id int64, now, staleBefore time.Time) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE pagestatus SET status = ?, message = '', timestamp = ?
		 WHERE id = ? AND (status <> ? OR timestamp < ?)`,
		string(model.StatusRunning), formatTime(now), id, string(model.StatusRunning), formatTime(staleBefore))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) SetStatus(ctx context.Context, id int64, status model.Status, message string, ts time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	_, err := s.exec(ctx, `UPDATE pagestatus SET status = ?, message = ?, timestamp = ? WHERE id = ?`,
		string(status), message, formatTime(ts), id)
	return err
}

func (s *SQLStore) DeleteByStatus(ctx context.Context, wiki string, status model.Status) (int64, error) {
	return s.exec(ctx, `DELETE FROM pagestatus WHERE wiki = ? AND status = ?`, wiki, string(status))
}

func (s *SQLStore) ResetStatus(ctx context.Context, wiki string, from, to model.Status, ts time.Time) (int64, error) {
	return s.exec(ctx, `UPDATE pagestatus SET status = ?, timestamp = ? WHERE wiki = ? AND status = ?`,
		string(to), formatTime(ts), wiki, string(from))
}

// statusFilter builds "wiki = ? AND status IN (?, ...)".
func statusFilter(wiki string, statuses []model.Status) (string, []any) {
	args := make([]any, 0, len(statuses)+1)
	args = append(args, wiki)
	marks := make([]string, len(statuses))
	for i, st := range statuses {
		marks[i] = "?"
		args = append(args, string(st))
	}
	return "wiki = ? AND status IN (" + strings.Join(marks, ", ") + ")", args
}
