package memory

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestOutboxRepository_EnqueueAndPullInOrder(t *testing.T) {
	repo := NewOutboxRepository()

	first := time.Now().UTC().Add(-time.Minute)
	repo.enqueue(domain.OutboxMessage{ID: "m-1", AggregateType: domain.AggregateTypeSale, AggregateID: "sale-1", EventType: domain.EventTypeSaleRecorded, CreatedAt: first})
	repo.enqueue(domain.OutboxMessage{ID: "m-2", AggregateType: domain.AggregateTypeSale, AggregateID: "sale-2", EventType: domain.EventTypeSaleRecorded})
	repo.enqueue(domain.OutboxMessage{AggregateType: domain.AggregateTypeSale, AggregateID: "sale-3"})

	pending, err := repo.PullPending(2)
	if err != nil {
		t.Fatalf("pull pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].ID != "m-1" || pending[1].ID != "m-2" {
		t.Fatalf("unexpected order: %s, %s", pending[0].ID, pending[1].ID)
	}

	all := repo.AllPending()
	if len(all) != 3 || all[2].ID == "" {
		t.Fatalf("expected generated id for third message, got %+v", all)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 3 || !stats.OldestPendingAt.Equal(first) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := NewOutboxRepository()
	repo.enqueue(domain.OutboxMessage{ID: "m-1"})
	repo.enqueue(domain.OutboxMessage{ID: "m-2"})

	if err := repo.MarkSent("m-1"); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed("m-2"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed("missing"); err == nil {
		t.Fatal("expected error for missing record")
	}

	stats, _ := repo.Stats()
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty backlog, got %+v", stats)
	}
}
