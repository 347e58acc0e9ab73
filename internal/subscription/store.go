package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matheuskafuri/intelfeed/internal/database"
)

// ErrExists is returned by Store.Create for a duplicate (user, topic) pair.
var ErrExists = errors.New("subscription already exists")

// Store persists subscriptions.
type Store interface {
	Create(ctx context.Context, userID int64, topic string) error
	Delete(ctx context.Context, userID int64, topic string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]string, error)
	ListDistinctTopics(ctx context.Context) ([]string, error)
}

type key struct {
	user  int64
	topic string
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[key]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[key]time.Time)}
}

func (m *MemoryStore) Create(ctx context.Context, userID int64, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{userID, topic}
	if _, ok := m.subs[k]; ok {
		return ErrExists
	}
	m.subs[k] = time.Now()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID int64, topic string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{userID, topic}
	if _, ok := m.subs[k]; !ok {
		return false, nil
	}
	delete(m.subs, k)
	return true, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.subs {
		if k.user == userID {
			out = append(out, k.topic)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ListDistinctTopics(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for k := range m.subs {
		if !seen[k.topic] {
			seen[k.topic] = true
			out = append(out, k.topic)
		}
	}
	sort.Strings(out)
	return out, nil
}

// SQLiteStore keeps subscriptions in the subscriptions table.
type SQLiteStore struct {
	db *database.DB
}

func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, userID int64, topic string) error {
	res, err := s.db.Write.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, topic, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, topic) DO NOTHING
	`, userID, topic, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID int64, topic string) (bool, error) {
	res, err := s.db.Write.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE user_id = ? AND topic = ?", userID, topic)
	if err != nil {
		return false, fmt.Errorf("deleting subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID int64) ([]string, error) {
	return s.strings(ctx, "SELECT topic FROM subscriptions WHERE user_id = ? ORDER BY topic", userID)
}

func (s *SQLiteStore) ListDistinctTopics(ctx context.Context) ([]string, error) {
	return s.strings(ctx, "SELECT DISTINCT topic FROM subscriptions ORDER BY topic")
}

func (s *SQLiteStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.Read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
