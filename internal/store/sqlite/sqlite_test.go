package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/akovalev/netchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRecordAndListTransfers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	first := &store.TransferRecord{
		TaskID:        "task-1",
		Sender:        "alice",
		Recipient:     "bob",
		Filename:      "report.txt",
		FinalFilename: "report.txt",
		Size:          1024,
		Outcome:       store.TransferOutcomeDelivered,
		EnqueuedAt:    now,
		FinishedAt:    now.Add(time.Second),
	}
	if err := st.RecordTransfer(ctx, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	second := &store.TransferRecord{
		TaskID:        "task-2",
		Sender:        "alice",
		Recipient:     "bob",
		Filename:      "report.txt",
		FinalFilename: "report_1.txt",
		Size:          2048,
		Outcome:       store.TransferOutcomeFailed,
		Reason:        "recipient offline",
		EnqueuedAt:    now,
		FinishedAt:    now.Add(2 * time.Second),
	}
	if err := st.RecordTransfer(ctx, second); err != nil {
		t.Fatalf("record: %v", err)
	}

	records, err := st.RecentTransfers(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Newest first.
	if records[0].TaskID != "task-2" || records[0].Outcome != store.TransferOutcomeFailed {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[0].Reason != "recipient offline" {
		t.Fatalf("unexpected reason: %q", records[0].Reason)
	}
	if records[1].FinalFilename != "report.txt" {
		t.Fatalf("unexpected final filename: %q", records[1].FinalFilename)
	}
}

func TestRecentTransfersRespectsLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := &store.TransferRecord{
			TaskID:        "task",
			Sender:        "alice",
			Recipient:     "bob",
			Filename:      "f.txt",
			FinalFilename: "f.txt",
			Size:          uint64(i),
			Outcome:       store.TransferOutcomeDelivered,
			EnqueuedAt:    now,
			FinishedAt:    now,
		}
		if err := st.RecordTransfer(ctx, rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	records, err := st.RecentTransfers(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}
