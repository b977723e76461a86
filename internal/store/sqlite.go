// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: One subscriptions row per team holds the JSON rule document; writes are serialized per team

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// maxReadConns sizes the read pool of file-backed stores.
const maxReadConns = 4

// SQLiteStore implements the Store interface using SQLite. File-backed stores
// keep two pools: a single writer connection, and read-only connections that
// WAL lets proceed while a write transaction is open.
type SQLiteStore struct {
	db     *sql.DB // writer
	reads  *sql.DB // readers; same as db for :memory:
	locks  *keyedMutex
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path == ":memory:" {
		// Every connection to :memory: is a separate database, so readers
		// and the writer share one connection.
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(1)
		return initStore(db, db, path, logger)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// One writer connection turns SQLite's single-writer rule into queueing
	// instead of SQLITE_BUSY.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return initStore(db, nil, path, logger)
}

// initStore creates the schema through the writer, then opens the read pool
// if reads is nil.
func initStore(db, reads *sql.DB, path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{
		db:     db,
		reads:  reads,
		locks:  newKeyedMutex(),
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if s.reads == nil {
		r, err := openReadPool(path)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("opening read pool: %w", err)
		}
		s.reads = r
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// openReadPool opens read-only connections to an existing database file.
func openReadPool(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxReadConns)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			team_id    TEXT PRIMARY KEY,
			rules      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS installations (
			team_id      TEXT PRIMARY KEY,
			team_name    TEXT NOT NULL DEFAULT '',
			bot_user_id  TEXT NOT NULL DEFAULT '',
			bot_token    TEXT NOT NULL,
			scope        TEXT NOT NULL DEFAULT '',
			installed_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping checks both connection pools
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	return s.reads.PingContext(ctx)
}

// Close closes the database connections
func (s *SQLiteStore) Close() error {
	var readErr error
	if s.reads != s.db {
		readErr = s.reads.Close()
	}
	return errors.Join(s.db.Close(), readErr)
}

// DB returns the writer connection for tests
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// GetRules returns the emoji set bound to (team, channel, user).
func (s *SQLiteStore) GetRules(ctx context.Context, teamID, channelID, userID string) (EmojiSet, error) {
	rules, err := s.loadRules(ctx, s.reads, teamID)
	if err != nil {
		return nil, err
	}
	return rules.Lookup(channelID, userID), nil
}

// TeamRules returns the whole rule document for a team.
func (s *SQLiteStore) TeamRules(ctx context.Context, teamID string) (Rules, error) {
	return s.loadRules(ctx, s.reads, teamID)
}

// AddEmojis unions emojis into the rule for (team, channel, user).
func (s *SQLiteStore) AddEmojis(ctx context.Context, teamID, channelID, userID string, emojis EmojiSet) error {
	err := s.mutate(ctx, teamID, func(rules Rules) bool {
		return rules.Add(channelID, userID, emojis)
	})
	if err != nil {
		return fmt.Errorf("adding emojis: %w", err)
	}
	s.logger.Debug("added emojis", "team", teamID, "channel", channelID, "user", userID, "emojis", []string(emojis))
	return nil
}

// RemoveRule deletes the rule for (team, channel, user).
func (s *SQLiteStore) RemoveRule(ctx context.Context, teamID, channelID, userID string) error {
	err := s.mutate(ctx, teamID, func(rules Rules) bool {
		return rules.Remove(channelID, userID)
	})
	if err != nil {
		return fmt.Errorf("removing rule: %w", err)
	}
	s.logger.Debug("removed rule", "team", teamID, "channel", channelID, "user", userID)
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) loadRules(ctx context.Context, q queryer, teamID string) (Rules, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT rules FROM subscriptions WHERE team_id = ?`, teamID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return make(Rules), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	return decodeRules([]byte(raw))
}

// mutate runs a read-modify-write of the team record. Writers for the same
// team are serialized by a per-team lock; the write itself happens in a
// transaction, so a failure leaves the previous record untouched. fn reports
// whether it changed the document; unchanged documents are not rewritten.
func (s *SQLiteStore) mutate(ctx context.Context, teamID string, fn func(Rules) bool) error {
	unlock := s.locks.Lock(teamID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rules, err := s.loadRules(ctx, tx, teamID)
	if err != nil {
		return err
	}

	if !fn(rules) {
		return nil
	}

	if len(rules) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE team_id = ?`, teamID); err != nil {
			return fmt.Errorf("deleting rules: %w", err)
		}
	} else {
		data, err := encodeRules(rules)
		if err != nil {
			return err
		}
		query := `
			INSERT INTO subscriptions (team_id, rules, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(team_id) DO UPDATE SET rules = excluded.rules, updated_at = excluded.updated_at
		`
		if _, err := tx.ExecContext(ctx, query, teamID, string(data), time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("writing rules: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rules: %w", err)
	}
	return nil
}
