// Package ratelimit gates outbound actions with a per-actor sliding window.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Stats describes an actor's usage of the current window.
type Stats struct {
	Recent    int
	Limit     int
	Remaining int
}

// Limiter allows at most Limit actions per actor within any rolling Window.
type Limiter struct {
	name   string
	limit  int
	window time.Duration
	log    *slog.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	onWait func(name string, d time.Duration)

	mu      sync.Mutex
	actions map[string][]time.Time
}

type Option func(*Limiter)

// WithWindow overrides the default 60 second window.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// WithClock replaces the time source and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// OnWait registers a callback invoked every time a caller is suspended.
func OnWait(fn func(name string, d time.Duration)) Option {
	return func(l *Limiter) { l.onWait = fn }
}

// New creates a limiter allowing perWindow actions per actor. A non-positive
// perWindow disables limiting.
func New(name string, perWindow int, opts ...Option) *Limiter {
	l := &Limiter{
		name:    name,
		limit:   perWindow,
		window:  time.Minute,
		now:     time.Now,
		sleep:   sleepCtx,
		actions: make(map[string][]time.Time),
	}
	for _, o := range opts {
		o(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// Wait suspends the caller until actor has capacity in the window, then
// records the action. It returns the total time spent waiting.
func (l *Limiter) Wait(ctx context.Context, actor string) (time.Duration, error) {
	if l == nil || l.limit <= 0 {
		return 0, nil
	}

	var waited time.Duration
	for {
		l.mu.Lock()
		now := l.now()
		ts := l.prune(actor, now)
		if len(ts) < l.limit {
			l.actions[actor] = append(ts, now)
			l.mu.Unlock()
			return waited, nil
		}
		d := ts[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if d <= 0 {
			continue
		}
		l.log.Warn("rate limit reached, waiting",
			slog.String("limiter", l.name),
			slog.String("actor", actor),
			slog.Duration("wait", d),
		)
		if l.onWait != nil {
			l.onWait(l.name, d)
		}
		if err := l.sleep(ctx, d); err != nil {
			return waited, err
		}
		waited += d
	}
}

// Stats reports window usage for actor.
func (l *Limiter) Stats(actor string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := len(l.prune(actor, l.now()))
	remaining := l.limit - recent
	if remaining < 0 {
		remaining = 0
	}
	return Stats{Recent: recent, Limit: l.limit, Remaining: remaining}
}

// Reset forgets the history of actor, or of every actor when actor is empty.
func (l *Limiter) Reset(actor string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if actor == "" {
		l.actions = make(map[string][]time.Time)
		return
	}
	delete(l.actions, actor)
}

// prune drops timestamps that fell out of the window. Caller holds l.mu.
func (l *Limiter) prune(actor string, now time.Time) []time.Time {
	ts := l.actions[actor]
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		ts = append(ts[:0:0], ts[i:]...)
		l.actions[actor] = ts
	}
	return ts
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
