package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// InitSchema creates missing tables. Existing tables are left untouched;
// there are no versioned migrations.
func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_zendesk_tickets (
		id INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		subject TEXT,
		description TEXT,
		requester_id INTEGER,
		org_id INTEGER,
		status TEXT,
		priority TEXT,
		channel TEXT,
		tags TEXT,
		raw_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_created ON raw_zendesk_tickets(created_at);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON raw_zendesk_tickets(status);

	CREATE TABLE IF NOT EXISTS raw_zendesk_comments (
		ticket_id INTEGER NOT NULL,
		comment_id INTEGER NOT NULL,
		author_id INTEGER,
		created_at TEXT NOT NULL,
		body TEXT,
		raw_json TEXT,
		PRIMARY KEY (ticket_id, comment_id)
	);
	CREATE INDEX IF NOT EXISTS idx_comments_ticket ON raw_zendesk_comments(ticket_id, created_at);

	CREATE TABLE IF NOT EXISTS ticket_field_values (
		ticket_id INTEGER NOT NULL,
		field_id INTEGER NOT NULL,
		field_title TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (ticket_id, field_id)
	);
	CREATE INDEX IF NOT EXISTS idx_field_values_title ON ticket_field_values(field_title);

	CREATE TABLE IF NOT EXISTS raw_channel_conversations (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		updated_at TEXT,
		name TEXT,
		tags TEXT,
		state TEXT,
		raw_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_created ON raw_channel_conversations(created_at);

	CREATE TABLE IF NOT EXISTS raw_channel_messages (
		conversation_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		sender TEXT,
		text TEXT,
		raw_json TEXT,
		PRIMARY KEY (conversation_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON raw_channel_messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS stopwords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		locale TEXT NOT NULL,
		token TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (locale, token)
	);

	CREATE TABLE IF NOT EXISTS label_mappings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		label TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1.0,
		created_at INTEGER NOT NULL,
		UNIQUE (source, label)
	);

	CREATE TABLE IF NOT EXISTS analysis_history (
		id TEXT PRIMARY KEY,
		inquiry_type TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		source TEXT,
		record_count INTEGER NOT NULL,
		summary TEXT,
		result_json TEXT,
		used_llm INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_type ON analysis_history(inquiry_type, created_at);

	CREATE TABLE IF NOT EXISTS categories (
		category_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id TEXT,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ingestion_checkpoints (
		source TEXT NOT NULL,
		checkpoint_type TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (source, checkpoint_type)
	);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// Timestamps are stored as UTC RFC 3339 text so that SQLite date functions
// can shift them to KST for date filtering.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
