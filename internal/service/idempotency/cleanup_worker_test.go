package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func testMetrics() *metrics.IdempotencyMetrics {
	return metrics.NewIdempotencyMetricsWithRegisterer(prometheus.NewRegistry())
}

func TestCleanupWorker_DeleteExpired(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name        string
		results     []int
		errs        []error
		batchSize   int
		maxBatches  int
		wantDeleted int
		wantCalls   int
		wantErr     error
	}{
		{name: "stops on partial batch", results: []int{2, 2, 1}, batchSize: 2, wantDeleted: 5, wantCalls: 3},
		{name: "nothing expired", results: []int{0}, batchSize: 10, wantDeleted: 0, wantCalls: 1},
		{name: "max batches caps a run", results: []int{2, 2, 2, 2}, batchSize: 2, maxBatches: 2, wantDeleted: 4, wantCalls: 2},
		{name: "storage error keeps partial total", results: []int{3}, errs: []error{nil, boom}, batchSize: 3, wantDeleted: 3, wantCalls: 2, wantErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &stubCleanupRepo{results: tt.results, errs: tt.errs}
			opts := []CleanupOption{WithBatchSize(tt.batchSize), WithMetrics(testMetrics())}
			if tt.maxBatches > 0 {
				opts = append(opts, WithMaxBatches(tt.maxBatches))
			}

			deleted, err := NewCleanupWorker(repo, opts...).DeleteExpired(context.Background(), time.Now().UTC())

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if deleted != tt.wantDeleted {
				t.Fatalf("deleted = %d, want %d", deleted, tt.wantDeleted)
			}
			if calls := repo.calls(); calls != tt.wantCalls {
				t.Fatalf("delete calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestCleanupWorker_DeleteExpired_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{results: []int{5}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCleanupWorker(repo, WithMetrics(testMetrics())).DeleteExpired(ctx, time.Time{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if repo.calls() != 0 {
		t.Fatal("repository must not be called after cancel")
	}
}

func TestCleanupWorker_DeleteExpired_ZeroBeforeUsesNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo, WithMetrics(testMetrics()))
	worker.now = func() time.Time { return now }

	if _, err := worker.DeleteExpired(context.Background(), time.Time{}); err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if !repo.lastBefore().Equal(now) {
		t.Fatalf("expected cutoff %s, got %s", now, repo.lastBefore())
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10), WithMetrics(testMetrics()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
	if repo.calls() == 0 {
		t.Fatal("expected cleanup to run at least once")
	}
}

func TestCleanupWorker_Run_NilRepo(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewCleanupWorker(nil, WithMetrics(testMetrics())).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without repository must return immediately")
	}
}

func TestCleanupWorker_FreesKeysForReuse(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := repo.CreateProcessing("sale-key-1", "hash-a", now.Add(-time.Minute)); err != nil {
		t.Fatalf("create expired key: %v", err)
	}
	if _, err := repo.CreateProcessing("sale-key-2", "hash-b", now.Add(time.Hour)); err != nil {
		t.Fatalf("create live key: %v", err)
	}

	deleted, err := NewCleanupWorker(repo, WithBatchSize(1), WithMetrics(testMetrics())).DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, err := repo.Get("sale-key-1"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected expired key to be removed, got %v", err)
	}
	if _, err := repo.Get("sale-key-2"); err != nil {
		t.Fatalf("live key must survive cleanup: %v", err)
	}
	if _, err := repo.CreateProcessing("sale-key-1", "hash-c", now.Add(time.Hour)); err != nil {
		t.Fatalf("freed key must be reusable: %v", err)
	}
}

// stubCleanupRepo реализует только DeleteExpired; errs и results расходуются по одному на вызов.
type stubCleanupRepo struct {
	domain.IdempotencyRepository

	mu      sync.Mutex
	results []int
	errs    []error
	count   int
	before  time.Time
}

func (s *stubCleanupRepo) DeleteExpired(before time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.before = before
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	n := s.results[0]
	s.results = s.results[1:]
	return n, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *stubCleanupRepo) lastBefore() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.before
}
