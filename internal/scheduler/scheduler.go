// Package scheduler drives periodic refresh passes over every subscribed topic.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matheuskafuri/intelfeed/internal/metrics"
)

const (
	DefaultInterval   = 30 * time.Minute
	DefaultTopicDelay = time.Second
)

// Refresher is the part of the intel service the scheduler drives.
type Refresher interface {
	ListAllSubscribedTopics(ctx context.Context) ([]string, error)
	RefreshTopic(ctx context.Context, topic string) (int, error)
}

// PassReport summarizes one refresh pass.
type PassReport struct {
	RunID    string
	Topics   int
	NewItems int
	Failed   []string
	Duration time.Duration
}

type Scheduler struct {
	svc        Refresher
	interval   time.Duration
	topicDelay time.Duration
	log        *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	passMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTopicDelay sets the pause between topics within a pass.
func WithTopicDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.topicDelay = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

func New(svc Refresher, opts ...Option) *Scheduler {
	s := &Scheduler{
		svc:        svc,
		interval:   DefaultInterval,
		topicDelay: DefaultTopicDelay,
		sleep:      sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Start runs a pass immediately and then one every interval until ctx ends
// or Stop is called. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}(s.done)
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce refreshes every subscribed topic in turn. A failing topic is
// logged and recorded in the report; the pass always continues. Passes
// never overlap.
func (s *Scheduler) RunOnce(ctx context.Context) PassReport {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := time.Now()
	report := PassReport{RunID: uuid.NewString()}
	log := s.log.With(slog.String("run_id", report.RunID))

	topics, err := s.svc.ListAllSubscribedTopics(ctx)
	if err != nil {
		log.Error("listing topics failed", slog.Any("error", err))
		report.Duration = time.Since(start)
		return report
	}
	log.Info("refresh pass started", slog.Int("topics", len(topics)))

	for i, topic := range topics {
		if i > 0 && s.topicDelay > 0 {
			if err := s.sleep(ctx, s.topicDelay); err != nil {
				log.Warn("refresh pass interrupted", slog.Int("remaining", len(topics)-i))
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		report.Topics++
		n, err := s.refresh(ctx, topic)
		if err != nil {
			report.Failed = append(report.Failed, topic)
			log.Error("topic refresh failed", slog.String("topic", topic), slog.Any("error", err))
			continue
		}
		report.NewItems += n
	}

	report.Duration = time.Since(start)
	metrics.PassDuration.Observe(report.Duration.Seconds())
	log.Info("refresh pass finished",
		slog.Int("topics", report.Topics),
		slog.Int("new_items", report.NewItems),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("duration", report.Duration),
	)
	return report
}

// refresh runs one topic, turning a panic into an error so the pass goes on.
func (s *Scheduler) refresh(ctx context.Context, topic string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("topic refresh panicked",
				slog.String("topic", topic),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			n, err = 0, fmt.Errorf("refresh of %q panicked: %v", topic, r)
		}
	}()
	return s.svc.RefreshTopic(ctx, topic)
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
