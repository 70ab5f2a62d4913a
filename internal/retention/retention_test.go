package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockRepository struct {
	mu         sync.Mutex
	calls      int
	lastCutoff *time.Time
	deleted    int64
	shouldFail bool
}

func (m *mockRepository) ClearWebhooks(_ context.Context, channel string, olderThan *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return 0, errors.New("connection refused")
	}
	if channel != "" {
		return 0, errors.New("purge must span all channels")
	}
	m.calls++
	m.lastCutoff = olderThan
	return m.deleted, nil
}

func (m *mockRepository) cutoff() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCutoff
}

func TestPurgeOnce(t *testing.T) {
	repo := &mockRepository{deleted: 3}
	p := New(repo, zap.NewNop(), 30)

	p.purgeOnce()

	cutoff := repo.cutoff()
	if cutoff == nil {
		t.Fatal("expected a cutoff to be passed")
	}

	want := time.Now().UTC().AddDate(0, 0, -30)
	if diff := want.Sub(*cutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", cutoff, want)
	}
}

func TestPurgeOnceSurvivesFailure(t *testing.T) {
	repo := &mockRepository{shouldFail: true}
	p := New(repo, zap.NewNop(), 7)

	// Must not panic; the failure is logged and the next tick retries.
	p.purgeOnce()
}

func TestStartRunsImmediatePurge(t *testing.T) {
	repo := &mockRepository{deleted: 1}
	p := New(repo, zap.NewNop(), 14)

	if err := p.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for {
		repo.mu.Lock()
		calls := repo.calls
		repo.mu.Unlock()
		if calls > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the startup purge")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
