package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/g960059/ttguide/internal/model"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT pref_value FROM preferences WHERE pref_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("preference key is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO preferences(pref_key, pref_value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(pref_key) DO UPDATE SET
	pref_value=excluded.pref_value,
	updated_at=excluded.updated_at
`, key, value, ts(time.Now()))
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetChannelBinding(ctx context.Context, channel model.ChannelID) (model.ChannelBinding, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT channel, session_id, display_name, cwd, created_at
FROM channel_bindings
WHERE channel = ?
`, string(channel))
	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ChannelBinding{}, ErrNotFound
	}
	if err != nil {
		return model.ChannelBinding{}, fmt.Errorf("get channel binding %s: %w", channel, err)
	}
	return b, nil
}

func (s *Store) UpsertChannelBinding(ctx context.Context, b model.ChannelBinding) error {
	if strings.TrimSpace(string(b.Channel)) == "" {
		return fmt.Errorf("channel is required")
	}
	if strings.TrimSpace(b.SessionID) == "" {
		return fmt.Errorf("session_id is required")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO channel_bindings(channel, session_id, display_name, cwd, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(channel) DO UPDATE SET
	session_id=excluded.session_id,
	display_name=excluded.display_name,
	cwd=excluded.cwd,
	created_at=excluded.created_at
`, string(b.Channel), b.SessionID, b.DisplayName, b.Cwd, ts(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert channel binding: %w", err)
	}
	return nil
}

func (s *Store) DeleteChannelBinding(ctx context.Context, channel model.ChannelID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM channel_bindings WHERE channel = ?`, string(channel)); err != nil {
		return fmt.Errorf("delete channel binding %s: %w", channel, err)
	}
	return nil
}

func (s *Store) ListChannelBindings(ctx context.Context) ([]model.ChannelBinding, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT channel, session_id, display_name, cwd, created_at
FROM channel_bindings
ORDER BY channel ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list channel bindings: %w", err)
	}
	defer rows.Close()

	out := make([]model.ChannelBinding, 0)
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter channel bindings: %w", err)
	}
	return out, nil
}

func (s *Store) InsertDispatch(ctx context.Context, rec model.DispatchRecord) error {
	if strings.TrimSpace(rec.DispatchID) == "" {
		return fmt.Errorf("dispatch_id is required")
	}
	if rec.DispatchedAt.IsZero() {
		rec.DispatchedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO dispatches(dispatch_id, operation, channel, session_id, command, dispatched_at)
VALUES (?, ?, ?, ?, ?, ?)
`, rec.DispatchID, rec.Operation, string(rec.Channel), rec.SessionID, rec.Command, ts(rec.DispatchedAt))
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

// ListDispatches returns the most recent dispatches first.
func (s *Store) ListDispatches(ctx context.Context, limit int) ([]model.DispatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT dispatch_id, operation, channel, session_id, command, dispatched_at
FROM dispatches
ORDER BY dispatched_at DESC, dispatch_id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	out := make([]model.DispatchRecord, 0)
	for rows.Next() {
		var (
			rec        model.DispatchRecord
			channel    string
			dispatched string
		)
		if err := rows.Scan(&rec.DispatchID, &rec.Operation, &channel, &rec.SessionID, &rec.Command, &dispatched); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		rec.Channel = model.ChannelID(channel)
		if rec.DispatchedAt, err = parseTS(dispatched); err != nil {
			return nil, fmt.Errorf("parse dispatched_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter dispatches: %w", err)
	}
	return out, nil
}

// PruneDispatches deletes dispatches older than cutoff and reports how many
// rows were removed.
func (s *Store) PruneDispatches(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dispatches WHERE dispatched_at < ?`, ts(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune dispatches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune dispatches rows: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (model.ChannelBinding, error) {
	var (
		b       model.ChannelBinding
		channel string
		created string
	)
	if err := row.Scan(&channel, &b.SessionID, &b.DisplayName, &b.Cwd, &created); err != nil {
		return model.ChannelBinding{}, err
	}
	b.Channel = model.ChannelID(channel)
	t, err := parseTS(created)
	if err != nil {
		return model.ChannelBinding{}, fmt.Errorf("parse created_at: %w", err)
	}
	b.CreatedAt = t
	return b, nil
}

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
