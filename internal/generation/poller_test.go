package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"creatorhub/internal/domain"
)

type step struct {
	snap domain.Snapshot
	err  error
}

type scriptedChecker struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedChecker) CheckStatus(_ context.Context, id string) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	st := s.steps[i]
	st.snap.ID = id
	return st.snap, st.err
}

func (s *scriptedChecker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func status(s domain.JobStatus) step {
	return step{snap: domain.Snapshot{Status: s}}
}

func fastPolicy(attempts int) PollPolicy {
	return PollPolicy{Interval: time.Millisecond, MaxAttempts: attempts, MaxElapsed: 5 * time.Second}
}

func TestPollerReturnsFirstTerminal(t *testing.T) {
	checker := &scriptedChecker{steps: []step{
		status(domain.JobStatusStarting),
		status(domain.JobStatusProcessing),
		{snap: domain.Snapshot{Status: domain.JobStatusSucceeded, Output: domain.Output{"https://x/img.png"}}},
		status(domain.JobStatusFailed),
	}}
	var seen []domain.JobStatus
	p := NewPoller(checker, fastPolicy(10), nil)
	p.OnUpdate = func(s domain.Snapshot) { seen = append(seen, s.Status) }

	snap, err := p.Await(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if snap.Status != domain.JobStatusSucceeded || snap.Output.First() != "https://x/img.png" {
		t.Fatalf("snap = %#v", snap)
	}
	if checker.count() != 3 {
		t.Fatalf("checks = %d, want 3", checker.count())
	}
	if len(seen) != 3 {
		t.Fatalf("updates = %v", seen)
	}
}

func TestPollerFailedIsSnapshotNotError(t *testing.T) {
	checker := &scriptedChecker{steps: []step{{snap: domain.Snapshot{Status: domain.JobStatusFailed, Error: "X"}}}}
	snap, err := NewPoller(checker, fastPolicy(5), nil).Await(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if snap.Status != domain.JobStatusFailed || snap.Error != "X" {
		t.Fatalf("snap = %#v", snap)
	}
}

func TestPollerStopsAfterMaxAttempts(t *testing.T) {
	checker := &scriptedChecker{steps: []step{status(domain.JobStatusProcessing)}}
	snap, err := NewPoller(checker, fastPolicy(4), nil).Await(context.Background(), "job-3")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if snap.Status != domain.JobStatusProcessing {
		t.Fatalf("last snapshot = %#v", snap)
	}
	if checker.count() != 4 {
		t.Fatalf("checks = %d, want 4", checker.count())
	}
}

func TestPollerRetriesTransientErrors(t *testing.T) {
	flaky := &domain.ProviderError{Op: "get", StatusCode: 502, Message: "bad gateway", Kind: domain.ErrProviderFailure}
	checker := &scriptedChecker{steps: []step{
		{err: flaky},
		status(domain.JobStatusSucceeded),
	}}
	snap, err := NewPoller(checker, fastPolicy(5), nil).Await(context.Background(), "job-4")
	if err != nil || snap.Status != domain.JobStatusSucceeded {
		t.Fatalf("snap = %#v, err = %v", snap, err)
	}
}

func TestPollerStopsOnPermanentError(t *testing.T) {
	missing := &domain.ProviderError{Op: "get", StatusCode: 404, Message: "Not found.", Kind: domain.ErrNotFound}
	checker := &scriptedChecker{steps: []step{{err: missing}}}
	_, err := NewPoller(checker, fastPolicy(5), nil).Await(context.Background(), "job-5")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if checker.count() != 1 {
		t.Fatalf("checks = %d, want 1", checker.count())
	}
}

func TestPollerHonorsCancellation(t *testing.T) {
	checker := &scriptedChecker{steps: []step{status(domain.JobStatusProcessing)}}
	p := NewPoller(checker, PollPolicy{Interval: time.Hour, MaxAttempts: 10, MaxElapsed: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Await(ctx, "job-6")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop after cancel")
	}
	if checker.count() != 1 {
		t.Fatalf("checks = %d, want 1", checker.count())
	}
}

func TestPollPolicyDefaults(t *testing.T) {
	p := PollPolicy{}.withDefaults()
	if p.Interval != 2*time.Second || p.MaxAttempts != DefaultPollMaxAttempts || p.MaxElapsed != DefaultPollMaxElapsed {
		t.Fatalf("defaults = %#v", p)
	}
}
