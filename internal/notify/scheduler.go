package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "jamati/internal/log"
	"jamati/internal/model"
	"jamati/internal/persisted"
)

// tickSpec fires at second zero of every minute, so the exact-minute summary
// rule and the one-minute reminder window each match exactly once.
const tickSpec = "* * * * *"

// LectureSource supplies the current collection; *lecture.Store satisfies
// it.
type LectureSource interface {
	All() []model.Lecture
}

// Scheduler owns the recurring tick that evaluates and dispatches
// notifications. It must be stopped when the session ends.
type Scheduler struct {
	lectures    LectureSource
	summaryTime *persisted.Value[string]
	permission  *persisted.Value[Permission]
	notifier    Notifier
	texts       Texts
	loc         *time.Location
	now         func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool

	unsupportedOnce sync.Once
}

// Option customizes NewScheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone that defines "today" and lecture start times.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewScheduler(
	lectures LectureSource,
	summaryTime *persisted.Value[string],
	permission *persisted.Value[Permission],
	notifier Notifier,
	texts Texts,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		lectures:    lectures,
		summaryTime: summaryTime,
		permission:  permission,
		notifier:    notifier,
		texts:       texts,
		loc:         time.Local,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Permission is the current permission state. A missing capability always
// reads as denied.
func (s *Scheduler) Permission() Permission {
	if !s.notifier.Available() {
		return PermissionDenied
	}
	return s.permission.Get()
}

// RequestPermission asks the platform for permission and persists the
// answer. Without a capability it reports ErrUnsupported once and returns
// denied.
func (s *Scheduler) RequestPermission(ctx context.Context) (Permission, error) {
	if !s.notifier.Available() {
		s.unsupportedOnce.Do(func() {
			appLog.Warn("notification capability unavailable")
		})
		return PermissionDenied, ErrUnsupported
	}

	p, err := s.notifier.RequestPermission(ctx)
	if errors.Is(err, ErrUnsupported) {
		return PermissionDenied, err
	}
	if err != nil {
		appLog.Error("notification permission request failed", err)
		p = PermissionDenied
	}
	s.permission.Set(p)
	appLog.Info("notification permission", "state", p)
	return p, nil
}

// Tick evaluates the rules at the current time and dispatches whatever is
// due. It is a no-op unless permission is granted at this moment.
func (s *Scheduler) Tick(ctx context.Context) []Notification {
	if s.Permission() != PermissionGranted {
		return nil
	}

	now := s.now().In(s.loc)
	due := Evaluate(now, s.lectures.All(), s.summaryTime.Get(), s.texts)
	for _, n := range due {
		if err := s.notifier.Show(ctx, n.Title, n.Body); err != nil {
			appLog.Error("notification dispatch failed", err, "kind", n.Kind, "lecture_id", n.LectureID)
			continue
		}
		appLog.Debug("notification dispatched", "kind", n.Kind, "lecture_id", n.LectureID)
	}
	return due
}

// Start begins ticking once a minute on the minute.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("notify: scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
		cron.WithLogger(cronLogger{}),
	)
	if _, err := c.AddFunc(tickSpec, func() { s.Tick(ctx) }); err != nil {
		cancel()
		return err
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	appLog.Info("notification scheduler started", "spec", tickSpec, "timezone", s.loc.String())
	return nil
}

// Stop cancels the tick source and waits for an in-flight tick. No tick
// runs after Stop returns. Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.cron = nil
	s.running = false
	appLog.Info("notification scheduler stopped")
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// cronLogger adapts internal/log to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
