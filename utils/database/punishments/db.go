package punishments

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS modlogs (
	case_id         TEXT PRIMARY KEY,
	parent_case_id  TEXT NOT NULL DEFAULT '',
	guild_id        TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	user_tag        TEXT NOT NULL DEFAULT '',
	moderator_id    TEXT NOT NULL DEFAULT '',
	moderator_tag   TEXT NOT NULL DEFAULT '',
	action          TEXT NOT NULL CHECK (action IN ('WARN', 'BAN', 'TIMEOUT', 'KICK', 'UNBAN', 'UNMUTE')),
	status          TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'EXPIRED', 'EXECUTED', 'VOIDED', 'REMOVED')),
	reason          TEXT NOT NULL DEFAULT '',
	action_duration TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	ends_at         INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_modlogs_synthetic ON modlogs (parent_case_id, action) WHERE parent_case_id != '';
CREATE INDEX IF NOT EXISTS idx_modlogs_expiry ON modlogs (status, ends_at);
CREATE INDEX IF NOT EXISTS idx_modlogs_member ON modlogs (guild_id, user_id, action, status);

CREATE TABLE IF NOT EXISTS log_channels (
	guild_id   TEXT NOT NULL,
	log_type   TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	PRIMARY KEY (guild_id, log_type)
);

CREATE TABLE IF NOT EXISTS automod_rules (
	guild_id        TEXT NOT NULL,
	warnings_count  INTEGER NOT NULL CHECK (warnings_count > 0),
	action_type     TEXT NOT NULL CHECK (action_type IN ('BAN', 'TIMEOUT', 'KICK')),
	action_duration TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (guild_id, warnings_count)
);`

// Init opens the sqlite database at dbPath and ensures the schema exists.
func Init(dbPath string) (*sqlx.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// One connection: status transitions are conditional updates.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create modlogs schema: %w", err)
	}

	return db, nil
}
