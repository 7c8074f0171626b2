package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func testLedger(t *testing.T) (*Ledger, *fakeClock) {
	t.Helper()

	ledger, err := NewLedger(testDB(t))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	clock := newFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	ledger.now = clock.Now
	return ledger, clock
}

func TestOpenPauseConflict(t *testing.T) {
	ledger, _ := testLedger(t)
	ctx := context.Background()

	entry, err := ledger.OpenPause(ctx, 1, ReasonMaterialWait, "chassis parts missing", 5)
	if err != nil {
		t.Fatalf("open pause: %v", err)
	}
	if entry.ResumedAt != nil {
		t.Fatalf("new entry resumed_at = %v, want nil", entry.ResumedAt)
	}

	_, err = ledger.OpenPause(ctx, 1, ReasonBreak, "", 5)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second open error = %v, want ErrConflict", err)
	}

	// A different operation is unaffected.
	if _, err := ledger.OpenPause(ctx, 2, ReasonBreak, "", 5); err != nil {
		t.Fatalf("open pause on other operation: %v", err)
	}
}

func TestOpenPauseRejectsUnknownReason(t *testing.T) {
	ledger, _ := testLedger(t)

	_, err := ledger.OpenPause(context.Background(), 1, "smoke", "", 5)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("open with unknown reason error = %v, want ErrValidation", err)
	}
}

func TestClosePauseIdempotent(t *testing.T) {
	ledger, clock := testLedger(t)
	ctx := context.Background()

	if _, err := ledger.OpenPause(ctx, 1, ReasonBreak, "", 5); err != nil {
		t.Fatalf("open pause: %v", err)
	}
	clock.Advance(3 * time.Minute)

	if err := ledger.ClosePause(ctx, 1); err != nil {
		t.Fatalf("close pause: %v", err)
	}
	// Closing again, or closing an operation with no entries, is a no-op.
	if err := ledger.ClosePause(ctx, 1); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := ledger.ClosePause(ctx, 99); err != nil {
		t.Fatalf("close without entries: %v", err)
	}

	entries, err := ledger.ListPauses(ctx, 1)
	if err != nil {
		t.Fatalf("list pauses: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ResumedAt == nil || !entries[0].ResumedAt.Equal(clock.Now()) {
		t.Fatalf("resumed_at = %v, want %v", entries[0].ResumedAt, clock.Now())
	}
}

func TestListPausesOrderedAndStable(t *testing.T) {
	ledger, clock := testLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ledger.OpenPause(ctx, 1, ReasonBreak, "", 5); err != nil {
			t.Fatalf("open pause %d: %v", i, err)
		}
		clock.Advance(2 * time.Minute)
		if err := ledger.ClosePause(ctx, 1); err != nil {
			t.Fatalf("close pause %d: %v", i, err)
		}
		clock.Advance(time.Minute)
	}

	first, err := ledger.ListPauses(ctx, 1)
	if err != nil {
		t.Fatalf("list pauses: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("entries = %d, want 3", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].PausedAt.Before(first[i-1].PausedAt) {
			t.Fatalf("entries out of order: %v before %v", first[i].PausedAt, first[i-1].PausedAt)
		}
	}

	// Re-reading with no intervening writes yields the identical sequence.
	second, err := ledger.ListPauses(ctx, 1)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated read differs:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}
