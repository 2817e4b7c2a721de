package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
	"github.com/rawsignal/RivianMate-sub001/internal/metrics"
	"github.com/rawsignal/RivianMate-sub001/internal/pipeline"
	"github.com/rawsignal/RivianMate-sub001/internal/statebuf"
	"github.com/rawsignal/RivianMate-sub001/internal/telemetry"
)

// Store is the slice of persistence the scheduler drives.
type Store interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	UpsertAccount(ctx context.Context, a *domain.Account) error
	SetAccountError(ctx context.Context, id, message string) error
	SetAccountSynced(ctx context.Context, id string, at time.Time) error
	ListVehicles(ctx context.Context, accountID string) ([]*domain.Vehicle, error)
	UpsertVehicle(ctx context.Context, v *domain.Vehicle) error
	SetVehicleError(ctx context.Context, id, message string) error
}

// Scheduler owns one recurring poll task per active account. Tasks for
// different accounts run fully concurrently; each account's task is a
// single goroutine, so two cycles for one account can never overlap.
type Scheduler struct {
	client     telemetry.Client
	store      Store
	buffer     *statebuf.Buffer
	dispatcher *pipeline.Dispatcher
	log        *logrus.Entry

	awakeInterval  time.Duration
	asleepInterval time.Duration
	defaultBackoff time.Duration

	mu      sync.Mutex
	baseCtx context.Context
	tasks   map[string]*task
}

type task struct {
	accountID string
	kick      chan struct{}
	cancel    context.CancelFunc

	mu           sync.Mutex
	interval     time.Duration
	backoffUntil time.Time
}

type Options struct {
	AwakeInterval  time.Duration
	AsleepInterval time.Duration
	DefaultBackoff time.Duration
}

func New(client telemetry.Client, store Store, buffer *statebuf.Buffer, dispatcher *pipeline.Dispatcher, opts Options, log *logrus.Logger) *Scheduler {
	if opts.AwakeInterval <= 0 {
		opts.AwakeInterval = 30 * time.Second
	}
	if opts.AsleepInterval <= 0 {
		opts.AsleepInterval = 15 * time.Minute
	}
	if opts.DefaultBackoff <= 0 {
		opts.DefaultBackoff = 15 * time.Minute
	}
	return &Scheduler{
		client:         client,
		store:          store,
		buffer:         buffer,
		dispatcher:     dispatcher,
		log:            log.WithField("component", "scheduler"),
		awakeInterval:  opts.AwakeInterval,
		asleepInterval: opts.AsleepInterval,
		defaultBackoff: opts.DefaultBackoff,
		tasks:          make(map[string]*task),
	}
}

// Start binds the scheduler to its lifetime context. Tasks registered
// afterwards stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
}

// RegisterAccount installs a recurring task for the account at the
// conservative asleep interval. Idempotent: registering a registered
// account is a no-op.
func (s *Scheduler) RegisterAccount(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[accountID]; exists {
		return
	}
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	t := &task{
		accountID: accountID,
		kick:      make(chan struct{}, 1),
		cancel:    cancel,
		interval:  s.asleepInterval,
	}
	s.tasks[accountID] = t
	metrics.ActiveAccounts.Set(float64(len(s.tasks)))

	s.log.WithField("account", accountID).Info("registered account schedule")
	go s.runTask(ctx, t)
}

// RemoveAccount uninstalls the account's task. Safe to call for an
// unknown account.
func (s *Scheduler) RemoveAccount(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[accountID]
	if !ok {
		return
	}
	t.cancel()
	delete(s.tasks, accountID)
	metrics.ActiveAccounts.Set(float64(len(s.tasks)))
	s.log.WithField("account", accountID).Info("removed account schedule")
}

// TriggerImmediatePoll asks the account's task to run a cycle now. The
// request is coalesced if one is already pending.
func (s *Scheduler) TriggerImmediatePoll(accountID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[accountID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case t.kick <- struct{}{}:
	default:
	}
	return true
}

// Backoff widens the account's interval after a rate-limit signal. It
// takes precedence over the awake/asleep cadence until it lapses.
func (s *Scheduler) Backoff(accountID string, d time.Duration) {
	s.mu.Lock()
	t, ok := s.tasks[accountID]
	s.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	t.backoffUntil = time.Now().Add(d)
	t.mu.Unlock()

	metrics.Backoffs.Inc()
	s.log.WithFields(logrus.Fields{"account": accountID, "backoff": d}).
		Warn("rate limited, widening poll interval")
}

// Registered reports whether the account currently has a task.
func (s *Scheduler) Registered(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[accountID]
	return ok
}

// Interval exposes the account's effective wait for observability and
// tests.
func (s *Scheduler) Interval(accountID string) time.Duration {
	s.mu.Lock()
	t, ok := s.tasks[accountID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return t.wait()
}

func (s *Scheduler) runTask(ctx context.Context, t *task) {
	timer := time.NewTimer(t.wait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-t.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		s.runCycle(ctx, t)

		if ctx.Err() != nil {
			return
		}
		timer.Reset(t.wait())
	}
}

// adjustCadence re-installs the task at the short awake interval when
// any vehicle is awake, else the long asleep one. No-op while a backoff
// is in force or when the cadence is unchanged.
func (s *Scheduler) adjustCadence(t *task, anyAwake bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Now().Before(t.backoffUntil) {
		return
	}

	want := s.asleepInterval
	if anyAwake {
		want = s.awakeInterval
	}
	if t.interval == want {
		return
	}
	t.interval = want
	s.log.WithFields(logrus.Fields{"account": t.accountID, "interval": want}).
		Debug("adjusted poll cadence")
}

// wait returns the time until the next cycle: the remaining backoff
// when one is in force, otherwise the current cadence.
func (t *task) wait() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if remaining := time.Until(t.backoffUntil); remaining > 0 {
		return remaining
	}
	return t.interval
}
