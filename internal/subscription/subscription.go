// Package subscription keeps the validated (user, topic) subscriptions.
package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/matheuskafuri/intelfeed/internal/topic"
)

// Outcome is the result of a subscribe request. Rejections are ordinary
// outcomes, not errors.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeInvalidDomain     Outcome = "invalid_domain"
	OutcomeAlreadySubscribed Outcome = "already_subscribed"
)

func (o Outcome) OK() bool { return o == OutcomeSuccess }

type Registry struct {
	store  Store
	domain topic.Domain
	log    *slog.Logger
}

func NewRegistry(store Store, domain topic.Domain, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: store, domain: domain, log: log}
}

// Subscribe validates and stores the subscription. The normalized topic is
// returned alongside the outcome. Errors come only from the store.
func (r *Registry) Subscribe(ctx context.Context, userID int64, raw string) (topic.Topic, Outcome, error) {
	t := topic.Normalize(raw)
	if !r.domain.Allows(t) {
		r.log.Info("topic rejected", slog.Int64("user", userID), slog.String("topic", t.String()))
		return t, OutcomeInvalidDomain, nil
	}

	err := r.store.Create(ctx, userID, t.String())
	if errors.Is(err, ErrExists) {
		return t, OutcomeAlreadySubscribed, nil
	}
	if err != nil {
		return t, "", err
	}
	r.log.Info("subscribed", slog.Int64("user", userID), slog.String("topic", t.String()))
	return t, OutcomeSuccess, nil
}

// Unsubscribe removes the subscription and reports whether one existed.
func (r *Registry) Unsubscribe(ctx context.Context, userID int64, raw string) (bool, error) {
	t := topic.Normalize(raw)
	if t == "" {
		return false, nil
	}
	return r.store.Delete(ctx, userID, t.String())
}

func (r *Registry) ListTopics(ctx context.Context, userID int64) ([]string, error) {
	return r.store.ListByUser(ctx, userID)
}

func (r *Registry) ListAllDistinctTopics(ctx context.Context) ([]string, error) {
	return r.store.ListDistinctTopics(ctx)
}
