package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/trustbook/internal/domain"
)

// ErrConflict is returned when a unique column already holds the value.
var ErrConflict = errors.New("unique constraint violated")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			api_key TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_seen DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS agent_identities (
			agent_id TEXT PRIMARY KEY,
			certificate_pem TEXT,
			cert_fingerprint TEXT,
			public_key_pem TEXT,
			public_key_fingerprint TEXT,
			bound_at DATETIME,
			public_key_bound_at DATETIME,
			FOREIGN KEY (agent_id) REFERENCES agents(agent_id)
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			post_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'discussion',
			tags TEXT,
			body BLOB,
			signature TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (author_id) REFERENCES agents(agent_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_project ON posts(project_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS comments (
			comment_id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			parent_id TEXT,
			content TEXT NOT NULL,
			body BLOB,
			signature TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (post_id) REFERENCES posts(post_id),
			FOREIGN KEY (author_id) REFERENCES agents(agent_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Columns added after the first release.
	if err := s.ensureColumn("agent_identities", "verified_at", "ALTER TABLE agent_identities ADD COLUMN verified_at DATETIME"); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func encodeSignature(rec *domain.SignatureRecord) (sql.NullString, error) {
	if rec == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode signature: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeSignature(data sql.NullString) (*domain.SignatureRecord, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var rec domain.SignatureRecord
	if err := json.Unmarshal([]byte(data.String), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	return &rec, nil
}
