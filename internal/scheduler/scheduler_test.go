package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/redis/go-redis/v9"
)

type fakeJobs struct {
	mu       sync.Mutex
	today    credits.Day
	resets   []credits.Day
	bonuses  []credits.Day
	resetErr error
}

func (f *fakeJobs) Today() credits.Day {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.today
}

func (f *fakeJobs) setToday(day credits.Day) {
	f.mu.Lock()
	f.today = day
	f.mu.Unlock()
}

func (f *fakeJobs) ResetAllDue(_ context.Context, asOf credits.Day) (credits.ResetSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, asOf)
	return credits.ResetSummary{Day: asOf, Reset: 1}, f.resetErr
}

func (f *fakeJobs) GrantDailyBonus(_ context.Context, asOf credits.Day) (credits.BonusSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bonuses = append(f.bonuses, asOf)
	return credits.BonusSummary{Day: asOf, Granted: 1}, nil
}

func (f *fakeJobs) runs() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets), len(f.bonuses)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released++
	}, true, nil
}

func TestRunOnceRunsEachDayOnce(t *testing.T) {
	jobs := &fakeJobs{today: "2026-03-14"}
	runner := NewRunner(jobs)
	ctx := context.Background()

	first, errFirst := runner.RunOnce(ctx)
	if errFirst != nil {
		t.Fatalf("first run: %v", errFirst)
	}
	if first.Skipped || first.Reset.Reset != 1 || first.Bonus.Granted != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, errSecond := runner.RunOnce(ctx)
	if errSecond != nil {
		t.Fatalf("second run: %v", errSecond)
	}
	if !second.Skipped {
		t.Fatalf("expected second run on the same day to skip")
	}

	jobs.setToday("2026-03-15")
	if _, errNext := runner.RunOnce(ctx); errNext != nil {
		t.Fatalf("next day run: %v", errNext)
	}
	resets, bonuses := jobs.runs()
	if resets != 2 || bonuses != 2 {
		t.Fatalf("expected 2 resets and 2 bonus runs, got %d and %d", resets, bonuses)
	}
}

func TestRunOnceRetriesDayAfterFailure(t *testing.T) {
	jobs := &fakeJobs{today: "2026-03-14", resetErr: errors.New("boom")}
	runner := NewRunner(jobs)
	ctx := context.Background()

	if _, errRun := runner.RunOnce(ctx); errRun == nil {
		t.Fatalf("expected error from failed reset")
	}
	jobs.mu.Lock()
	jobs.resetErr = nil
	jobs.mu.Unlock()

	result, errRetry := runner.RunOnce(ctx)
	if errRetry != nil {
		t.Fatalf("retry: %v", errRetry)
	}
	if result.Skipped {
		t.Fatalf("failed day must not be marked done")
	}
}

func TestRunOnceSkipsWhenLockHeldElsewhere(t *testing.T) {
	jobs := &fakeJobs{today: "2026-03-14"}
	locker := &fakeLocker{held: map[string]bool{}}
	locker.held[defaultLockKey+":2026-03-14"] = true
	runner := NewRunner(jobs, WithLocker(locker))

	result, errRun := runner.RunOnce(context.Background())
	if errRun != nil {
		t.Fatalf("run: %v", errRun)
	}
	if !result.Skipped {
		t.Fatalf("expected skip while another instance holds the lock")
	}
	if resets, _ := jobs.runs(); resets != 0 {
		t.Fatalf("expected no reset while locked, got %d", resets)
	}

	delete(locker.held, defaultLockKey+":2026-03-14")
	if _, errRun = runner.RunOnce(context.Background()); errRun != nil {
		t.Fatalf("run after unlock: %v", errRun)
	}
	if locker.released != 1 {
		t.Fatalf("expected lock to be released once, got %d", locker.released)
	}
}

func TestRunOnceProceedsWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	jobs := &fakeJobs{today: "2026-03-14"}
	runner := NewRunner(jobs, WithLocker(NewRedisLocker(client)))

	result, errRun := runner.RunOnce(context.Background())
	if errRun != nil {
		t.Fatalf("run: %v", errRun)
	}
	if result.Skipped {
		t.Fatalf("expected unlocked run when redis is unreachable")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	jobs := &fakeJobs{today: "2026-03-14"}
	runner := NewRunner(jobs, WithInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if resets, _ := jobs.runs(); resets > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduler never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
}

type recordingReporter struct {
	resets  int
	granted int
}

func (r *recordingReporter) ObserveReset(summary credits.ResetSummary) { r.resets += summary.Reset }
func (r *recordingReporter) ObserveBonus(summary credits.BonusSummary) { r.granted += summary.Granted }

func TestRunOnceReportsSummaries(t *testing.T) {
	jobs := &fakeJobs{today: "2026-03-14"}
	reporter := &recordingReporter{}
	runner := NewRunner(jobs, WithReporter(reporter))

	if _, errRun := runner.RunOnce(context.Background()); errRun != nil {
		t.Fatalf("run: %v", errRun)
	}
	if _, errRun := runner.RunOnce(context.Background()); errRun != nil {
		t.Fatalf("skipped run: %v", errRun)
	}
	if reporter.resets != 1 || reporter.granted != 1 {
		t.Fatalf("expected one reported run, got resets=%d granted=%d", reporter.resets, reporter.granted)
	}
}
