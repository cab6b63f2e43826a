package idempotency

import (
	"errors"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func newTestGuard() *Guard {
	return NewGuard(memory.NewIdempotencyRepository(), time.Hour, log.WithField("component", "guard-test"), testMetrics())
}

func TestRequestHash(t *testing.T) {
	t.Parallel()

	a := RequestHash(http.MethodPost, "/api/sales", []byte(`{"items":[]}`))
	b := RequestHash(http.MethodPost, "/api/sales", []byte(`{"items":[]}`))
	c := RequestHash(http.MethodPost, "/api/sales", []byte(`{"items":[1]}`))
	d := RequestHash(http.MethodPut, "/api/sales", []byte(`{"items":[]}`))

	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == c || a == d {
		t.Fatal("hash must depend on body and method")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}

func TestGuard_ReplayCompletedResponse(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	replay, err := g.Begin("key-1", "hash-1")
	if err != nil || replay != nil {
		t.Fatalf("first Begin: replay=%v err=%v", replay, err)
	}
	g.Complete("key-1", http.StatusCreated, []byte(`{"id":"sale-1"}`))

	replay, err = g.Begin("key-1", "hash-1")
	if err != nil {
		t.Fatalf("second Begin: %v", err)
	}
	if replay == nil || replay.Status != http.StatusCreated || string(replay.Body) != `{"id":"sale-1"}` {
		t.Fatalf("unexpected replay: %+v", replay)
	}
}

func TestGuard_ReplayFailedResponse(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	if _, err := g.Begin("key-2", "hash-2"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	g.Complete("key-2", http.StatusBadRequest, []byte(`{"code":"InsufficientStock"}`))

	replay, err := g.Begin("key-2", "hash-2")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if replay == nil || replay.Status != http.StatusBadRequest {
		t.Fatalf("expected cached 400, got %+v", replay)
	}
}

func TestGuard_Conflicts(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	if _, err := g.Begin("key-3", "hash-3"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := g.Begin("key-3", "hash-3"); !errors.Is(err, domain.ErrIdempotencyInProgress) {
		t.Fatalf("expected ErrIdempotencyInProgress, got %v", err)
	}
	if _, err := g.Begin("key-3", "other-hash"); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}
}

func TestGuard_ExpiredKeyIsReclaimed(t *testing.T) {
	t.Parallel()

	g := newTestGuard()
	g.ttl = time.Nanosecond
	g.now = func() time.Time { return time.Now().Add(-time.Hour) }

	if _, err := g.Begin("key-4", "hash-4"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	g.Complete("key-4", http.StatusCreated, []byte(`{}`))

	g.now = time.Now
	replay, err := g.Begin("key-4", "different-hash")
	if err != nil {
		t.Fatalf("expired key must be reusable, got %v", err)
	}
	if replay != nil {
		t.Fatalf("expired key must not replay, got %+v", replay)
	}
}

func TestGuard_EmptyKey(t *testing.T) {
	t.Parallel()

	g := newTestGuard()
	if _, err := g.Begin("", "hash"); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
}

func TestGuard_ServerErrorReleasesKey(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	if _, err := g.Begin("key-5", "hash-5"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	g.Complete("key-5", http.StatusInternalServerError, []byte(`{"code":"StorageFailure"}`))

	replay, err := g.Begin("key-5", "hash-5")
	if err != nil {
		t.Fatalf("key must be free after 5xx, got %v", err)
	}
	if replay != nil {
		t.Fatalf("5xx must not be replayed, got %+v", replay)
	}
}

func TestGuard_AbandonReleasesProcessingKeyOnly(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	if _, err := g.Begin("key-6", "hash-6"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	g.Abandon("key-6")
	if _, err := g.Begin("key-6", "hash-6"); err != nil {
		t.Fatalf("abandoned key must be reusable, got %v", err)
	}

	g.Complete("key-6", http.StatusCreated, []byte(`{"id":"sale-6"}`))
	g.Abandon("key-6")

	replay, err := g.Begin("key-6", "hash-6")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if replay == nil || replay.Status != http.StatusCreated {
		t.Fatalf("completed key must survive Abandon, got %+v", replay)
	}
}
