package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/store"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Store SQLite 实现：rounds 只保留最近 historyLimit 局，click_reports 与 session_stats 不清理
type Store struct {
	db           *sql.DB
	historyLimit int
}

var _ store.Store = (*Store)(nil)

// Open 打开（或创建）数据库并执行迁移。path 为 ":memory:" 时使用内存库。
func Open(path string, historyLimit int) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}
	if historyLimit < domain.MinHistoryCapacity {
		historyLimit = domain.DefaultHistoryCapacity
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Store{db: db, historyLimit: historyLimit}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS rounds (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id INTEGER NOT NULL,
  multiplier REAL NOT NULL,
  ts TEXT NOT NULL,
  click_type TEXT,
  result TEXT NOT NULL,
  target_used REAL NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS click_reports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  command_id TEXT NOT NULL,
  session_id INTEGER NOT NULL,
  click_type TEXT NOT NULL,
  target TEXT NOT NULL,
  success INTEGER NOT NULL,
  error TEXT,
  ts TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_click_reports_session ON click_reports(session_id, id DESC);`,
		`
CREATE TABLE IF NOT EXISTS session_stats (
  session_id INTEGER PRIMARY KEY,
  rounds INTEGER NOT NULL DEFAULT 0,
  wins INTEGER NOT NULL DEFAULT 0,
  losses INTEGER NOT NULL DEFAULT 0
);`,
		`
CREATE TABLE IF NOT EXISTS config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO config(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) AppendRound(ctx context.Context, r store.RoundRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO rounds(session_id, multiplier, ts, click_type, result, target_used)
VALUES(?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Multiplier, r.Timestamp.UTC().Format(timeLayout), nullString(r.ClickType), string(r.Result), r.TargetUsed)
	if err != nil {
		return 0, fmt.Errorf("insert round: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	var c store.Counters
	c.AddRound(r)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO session_stats(session_id, rounds, wins, losses) VALUES(?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  rounds = rounds + excluded.rounds,
  wins = wins + excluded.wins,
  losses = losses + excluded.losses`,
		r.SessionID, c.Rounds, c.Wins, c.Losses); err != nil {
		return 0, fmt.Errorf("update session stats: %w", err)
	}

	// 只保留最近 historyLimit 局
	if _, err := tx.ExecContext(ctx, `
DELETE FROM rounds WHERE id NOT IN (SELECT id FROM rounds ORDER BY id DESC LIMIT ?)`, s.historyLimit); err != nil {
		return 0, fmt.Errorf("prune rounds: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) RecentRounds(ctx context.Context, n int) ([]store.RoundRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, multiplier, ts, click_type, result, target_used
FROM rounds ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []store.RoundRecord
	for rows.Next() {
		var (
			r         store.RoundRecord
			ts        string
			clickType sql.NullString
			result    string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Multiplier, &ts, &clickType, &result, &r.TargetUsed); err != nil {
			return nil, err
		}
		if r.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse round ts %q: %w", ts, err)
		}
		r.ClickType = clickType.String
		if r.Result, err = domain.ParseOutcome(result); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AppendClick(ctx context.Context, c store.ClickRecord) error {
	success := 0
	if c.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO click_reports(command_id, session_id, click_type, target, success, error, ts)
VALUES(?, ?, ?, ?, ?, ?, ?)`,
		c.CommandID, c.SessionID, c.ClickType, c.Target, success, nullString(c.Error), c.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (s *Store) Counters(ctx context.Context, session int64) (store.Counters, error) {
	c := store.Counters{SessionID: session}
	err := s.db.QueryRowContext(ctx, `SELECT rounds, wins, losses FROM session_stats WHERE session_id = ?`, session).
		Scan(&c.Rounds, &c.Wins, &c.Losses)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("query session stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
SELECT
  COALESCE(SUM(CASE WHEN success = 1 AND click_type = ? THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN success = 1 AND click_type = ? THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN success = 1 AND click_type = ? THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
FROM click_reports WHERE session_id = ?`,
		store.ClickBet, store.ClickFake, store.ClickReload, session).
		Scan(&c.ClickBet, &c.ClickFake, &c.ClickReload, &c.ClickErrors)
	if err != nil {
		return c, fmt.Errorf("query click stats: %w", err)
	}
	return c, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
