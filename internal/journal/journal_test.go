package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryJournalAppendsInOrder(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := Entry{
			Sequence: uint64(i + 1),
			Kind:     "setViewers",
			Payload:  json.RawMessage(`{"viewers":1}`),
		}
		if err := j.Append(ctx, entry); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	entries := j.Entries()
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Sequence != uint64(i+1) {
			t.Fatalf("entry %d out of order: sequence %d", i, entry.Sequence)
		}
		if entry.OccurredAt.IsZero() {
			t.Fatalf("entry %d missing timestamp", i)
		}
	}
}

func TestMemoryJournalStampsMissingTimestamps(t *testing.T) {
	j := NewMemoryJournal()
	stamp := time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC)

	if err := j.Append(context.Background(), Entry{Sequence: 1, Kind: "reset", OccurredAt: stamp}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := j.Append(context.Background(), Entry{Sequence: 2, Kind: "reset"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	entries := j.Entries()
	if !entries[0].OccurredAt.Equal(stamp) {
		t.Fatalf("explicit timestamp overwritten: %v", entries[0].OccurredAt)
	}
	if entries[1].OccurredAt.IsZero() {
		t.Fatalf("expected generated timestamp")
	}
}

func TestMemoryJournalRejectsAppendsAfterClose(t *testing.T) {
	j := NewMemoryJournal()
	if err := j.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	err := j.Append(context.Background(), Entry{Sequence: 1, Kind: "reset"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryJournalHonoursCancelledContext(t *testing.T) {
	j := NewMemoryJournal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := j.Append(ctx, Entry{Sequence: 1, Kind: "reset"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(j.Entries()) != 0 {
		t.Fatalf("cancelled append should not be stored")
	}
}

func TestMemoryJournalEntriesReturnsCopy(t *testing.T) {
	j := NewMemoryJournal()
	if err := j.Append(context.Background(), Entry{Sequence: 1, Kind: "setViewers"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	entries := j.Entries()
	entries[0].Kind = "mutated"

	if j.Entries()[0].Kind != "setViewers" {
		t.Fatalf("journal state mutated through returned slice")
	}
}

func TestMemoryJournalConcurrentAppends(t *testing.T) {
	j := NewMemoryJournal()
	var wg sync.WaitGroup
	workers := 8
	perWorker := 25

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				entry := Entry{Sequence: uint64(w*perWorker + i + 1), Kind: "appendChatMessage"}
				if err := j.Append(context.Background(), entry); err != nil {
					t.Errorf("append failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if got := len(j.Entries()); got != workers*perWorker {
		t.Fatalf("expected %d entries, got %d", workers*perWorker, got)
	}
}
