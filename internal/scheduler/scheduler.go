// Package scheduler triggers the daily reset and bonus runs on a timer.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paperdesk/creditledger/internal/credits"
	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval = 5 * time.Minute
	defaultLockKey  = "creditledger:scheduler:daily"
	// Lock TTL covers a slow run; overlapping runs remain safe if it expires.
	defaultLockTTL = 10 * time.Minute
)

// Jobs is the subset of the accounting engine the scheduler drives.
type Jobs interface {
	Today() credits.Day
	ResetAllDue(ctx context.Context, asOf credits.Day) (credits.ResetSummary, error)
	GrantDailyBonus(ctx context.Context, asOf credits.Day) (credits.BonusSummary, error)
}

var _ Jobs = (*credits.Engine)(nil)

// Reporter receives the summaries of every completed run.
type Reporter interface {
	ObserveReset(summary credits.ResetSummary)
	ObserveBonus(summary credits.BonusSummary)
}

// Result reports one scheduler run.
type Result struct {
	Day     credits.Day
	Skipped bool
	Reset   credits.ResetSummary
	Bonus   credits.BonusSummary
}

// Runner periodically resets due accounts and grants the daily bonus.
type Runner struct {
	jobs     Jobs
	locker   Locker
	reporter Reporter
	interval func() time.Duration
	lockKey  string
	lockTTL  time.Duration

	mu      sync.Mutex
	lastDay credits.Day
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLocker coordinates runs across instances.
func WithLocker(locker Locker) Option {
	return func(r *Runner) { r.locker = locker }
}

// WithReporter forwards run summaries to reporter.
func WithReporter(reporter Reporter) Option {
	return func(r *Runner) { r.reporter = reporter }
}

// WithInterval sets a fixed tick interval.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = func() time.Duration { return d }
		}
	}
}

// WithIntervalFunc reads the tick interval before every wait.
func WithIntervalFunc(fn func() time.Duration) Option {
	return func(r *Runner) {
		if fn != nil {
			r.interval = fn
		}
	}
}

// WithLockKey overrides the distributed lock key.
func WithLockKey(key string) Option {
	return func(r *Runner) {
		if key != "" {
			r.lockKey = key
		}
	}
}

// NewRunner constructs a Runner over jobs.
func NewRunner(jobs Jobs, opts ...Option) *Runner {
	if jobs == nil {
		return nil
	}
	r := &Runner{
		jobs:     jobs,
		locker:   noopLocker{},
		interval: func() time.Duration { return defaultInterval },
		lockKey:  defaultLockKey,
		lockTTL:  defaultLockTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the scheduler loop in a background goroutine.
func (r *Runner) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go r.run(ctx)
	log.Infof("credit scheduler started (interval=%s)", r.nextInterval())
}

func (r *Runner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, errRun := r.RunOnce(ctx); errRun != nil && !errors.Is(errRun, context.Canceled) {
			log.WithError(errRun).Warn("credit scheduler: run failed")
		}
		timer := time.NewTimer(r.nextInterval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (r *Runner) nextInterval() time.Duration {
	if d := r.interval(); d > 0 {
		return d
	}
	return defaultInterval
}

// RunOnce resets due accounts and grants today's bonus. Days already completed by
// this runner are skipped; another instance holding the lock also skips the run.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	day := r.jobs.Today()
	result := Result{Day: day}

	r.mu.Lock()
	done := r.lastDay == day
	r.mu.Unlock()
	if done {
		result.Skipped = true
		return result, nil
	}

	release, acquired, errLock := r.locker.TryLock(ctx, r.lockKey+":"+day.String(), r.lockTTL)
	if errLock != nil {
		// The lock only saves duplicate work; proceed without it.
		log.WithError(errLock).Warn("credit scheduler: lock unavailable, running unlocked")
		release, acquired = func() {}, true
	}
	if !acquired {
		log.WithField("day", day).Debug("credit scheduler: run held by another instance")
		result.Skipped = true
		return result, nil
	}
	defer release()

	reset, errReset := r.jobs.ResetAllDue(ctx, day)
	result.Reset = reset
	bonus, errBonus := r.jobs.GrantDailyBonus(ctx, day)
	result.Bonus = bonus
	if r.reporter != nil {
		r.reporter.ObserveReset(reset)
		r.reporter.ObserveBonus(bonus)
	}
	log.WithFields(log.Fields{
		"day":     day,
		"reset":   reset.Reset,
		"granted": bonus.Granted,
		"failed":  reset.Failed + bonus.Failed,
	}).Info("credit scheduler: run finished")
	if errRun := errors.Join(errReset, errBonus); errRun != nil {
		return result, errRun
	}

	r.mu.Lock()
	r.lastDay = day
	r.mu.Unlock()
	return result, nil
}
