package database

import "fmt"

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "topic_entries: bounded per-topic item cache",
		SQL: `
CREATE TABLE topic_entries (
    topic      TEXT PRIMARY KEY,
    items      TEXT NOT NULL DEFAULT '[]',
    updated_at DATETIME NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "subscriptions: user topic subscriptions",
		SQL: `
CREATE TABLE subscriptions (
    id         INTEGER PRIMARY KEY,
    user_id    INTEGER NOT NULL,
    topic      TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    UNIQUE (user_id, topic)
);

CREATE INDEX idx_subscriptions_topic ON subscriptions(topic);
`,
	},
}

func (db *DB) migrate() error {
	if _, err := db.Write.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.Write.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.Write.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, description) VALUES (?, ?)", m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	err := db.Read.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}
