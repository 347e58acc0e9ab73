package subscription

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheuskafuri/intelfeed/internal/database"
	"github.com/matheuskafuri/intelfeed/internal/topic"
)

var domain = topic.NewDomain([]string{"programming", "machine learning", "ai", "rust", "go"})

func stores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "subs.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(db),
	}
}

func TestSubscribeOutcomes(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry(store, domain, nil)
			ctx := context.Background()

			tp, out, err := r.Subscribe(ctx, 1, "  Machine   Learning ")
			if err != nil || out != OutcomeSuccess {
				t.Fatalf("Subscribe = %q, %v", out, err)
			}
			if tp != "machine learning" {
				t.Errorf("topic not normalized: %q", tp)
			}

			_, out, err = r.Subscribe(ctx, 1, "machine learning")
			if err != nil || out != OutcomeAlreadySubscribed {
				t.Errorf("second Subscribe = %q, %v", out, err)
			}

			_, out, err = r.Subscribe(ctx, 1, "quantum sociology")
			if err != nil || out != OutcomeInvalidDomain {
				t.Errorf("invalid topic = %q, %v", out, err)
			}

			_, out, _ = r.Subscribe(ctx, 1, "")
			if out != OutcomeInvalidDomain {
				t.Errorf("empty topic = %q", out)
			}

			// same topic for another user is independent
			if _, out, _ := r.Subscribe(ctx, 2, "machine learning"); !out.OK() {
				t.Errorf("other user = %q", out)
			}
		})
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry(store, domain, nil)
			ctx := context.Background()
			r.Subscribe(ctx, 1, "rust")

			removed, err := r.Unsubscribe(ctx, 1, "RUST")
			if err != nil || !removed {
				t.Fatalf("first Unsubscribe = %v, %v", removed, err)
			}
			removed, err = r.Unsubscribe(ctx, 1, "rust")
			if err != nil || removed {
				t.Errorf("second Unsubscribe = %v, %v", removed, err)
			}
		})
	}
}

func TestListTopics(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry(store, domain, nil)
			ctx := context.Background()
			r.Subscribe(ctx, 1, "rust")
			r.Subscribe(ctx, 1, "go")
			r.Subscribe(ctx, 2, "rust")
			r.Subscribe(ctx, 2, "programming")

			mine, err := r.ListTopics(ctx, 1)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(mine, ",") != "go,rust" {
				t.Errorf("ListTopics = %v", mine)
			}

			all, err := r.ListAllDistinctTopics(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(all, ",") != "go,programming,rust" {
				t.Errorf("ListAllDistinctTopics = %v", all)
			}

			none, err := r.ListTopics(ctx, 99)
			if err != nil || len(none) != 0 {
				t.Errorf("unknown user = %v, %v", none, err)
			}
		})
	}
}

type failingStore struct{ MemoryStore }

func (failingStore) Create(context.Context, int64, string) error {
	return errors.New("disk full")
}

func TestSubscribeSurfacesStoreErrors(t *testing.T) {
	r := NewRegistry(&failingStore{}, domain, nil)
	_, out, err := r.Subscribe(context.Background(), 1, "rust")
	if err == nil {
		t.Fatal("expected store error")
	}
	if out.OK() {
		t.Error("failed subscribe must not report success")
	}
}

func TestStoreCreateDuplicate(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Create(ctx, 1, "go"); err != nil {
				t.Fatal(err)
			}
			if err := store.Create(ctx, 1, "go"); !errors.Is(err, ErrExists) {
				t.Errorf("expected ErrExists, got %v", err)
			}
		})
	}
}
