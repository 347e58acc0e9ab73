package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheuskafuri/intelfeed/internal/database"
)

// SQLiteStore keeps one row per topic with the items as a JSON array.
type SQLiteStore struct {
	db *database.DB
}

func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context, topic string) (Entry, bool, error) {
	return loadEntry(ctx, s.db.Read, topic)
}

// Update runs fn inside a write transaction so the read-modify-write of the
// topic row is atomic.
func (s *SQLiteStore) Update(ctx context.Context, topic string, fn UpdateFunc) (Entry, error) {
	tx, err := s.db.Write.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback()

	cur, ok, err := loadEntry(ctx, tx, topic)
	if err != nil {
		return Entry{}, err
	}
	next, changed, err := fn(cur, ok)
	if err != nil {
		return Entry{}, err
	}
	if !changed {
		return cur, nil
	}

	items := next.Items
	if items == nil {
		items = []EnrichedItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding items: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO topic_entries (topic, items, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET
			items = excluded.items,
			updated_at = excluded.updated_at
	`, topic, string(raw), next.UpdatedAt.UTC())
	if err != nil {
		return Entry{}, fmt.Errorf("writing topic %q: %w", topic, err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}
	return next, nil
}

func (s *SQLiteStore) Topics(ctx context.Context) ([]string, error) {
	rows, err := s.db.Read.QueryContext(ctx, "SELECT topic FROM topic_entries ORDER BY topic")
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadEntry(ctx context.Context, q queryer, topic string) (Entry, bool, error) {
	var (
		raw string
		e   = Entry{Topic: topic}
	)
	err := q.QueryRowContext(ctx,
		"SELECT items, updated_at FROM topic_entries WHERE topic = ?", topic,
	).Scan(&raw, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("loading topic %q: %w", topic, err)
	}
	if err := json.Unmarshal([]byte(raw), &e.Items); err != nil {
		return Entry{}, false, fmt.Errorf("decoding topic %q: %w", topic, err)
	}
	return e, true, nil
}
