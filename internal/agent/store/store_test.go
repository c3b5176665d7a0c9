package store

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *PendingStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestSaveAssignsIDAndIdempotencyKey(t *testing.T) {
	s := openTestStore(t)

	p := &LocationUpdate{EmployeeID: 7, Latitude: 1, Longitude: 2, TimestampMs: 1000}
	id, err := s.Save(p)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected assigned id")
	}
	if p.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key assigned")
	}
}

func TestListUnsyncedOrderedByTimestamp(t *testing.T) {
	s := openTestStore(t)

	for _, ts := range []int64{3000, 1000, 2000} {
		if _, err := s.Save(&LocationUpdate{EmployeeID: 7, TimestampMs: ts}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	// Another employee's point must not leak in.
	if _, err := s.Save(&LocationUpdate{EmployeeID: 8, TimestampMs: 500}); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := s.ListUnsynced(7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, want := range []int64{1000, 2000, 3000} {
		if rows[i].TimestampMs != want {
			t.Fatalf("row %d: expected ts %d, got %d", i, want, rows[i].TimestampMs)
		}
	}
}

func TestMarkSyncedIdempotent(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Save(&LocationUpdate{EmployeeID: 7, TimestampMs: 1000})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := s.MarkSynced(id)
		if err != nil {
			t.Fatalf("mark synced pass %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("mark synced pass %d: expected row affected", i+1)
		}
	}

	rows, err := s.ListUnsynced(7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no unsynced rows, got %d", len(rows))
	}
}

func TestPurgeRemovesBothTablesAndReturnsCombinedCount(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.Save(&LocationUpdate{EmployeeID: 7, TimestampMs: int64(i)}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := s.SaveEmergencyCheckout(&EmergencyCheckout{EmployeeID: 7, CheckOutTimeMs: 9000, Reason: "app killed"}); err != nil {
		t.Fatalf("save checkout: %v", err)
	}
	if _, err := s.Save(&LocationUpdate{EmployeeID: 8, TimestampMs: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}

	n, err := s.Purge(7)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected combined count 4, got %d", n)
	}

	n, err = s.Purge(7)
	if err != nil {
		t.Fatalf("second purge: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected second purge to remove 0, got %d", n)
	}

	// Other employee untouched.
	rows, err := s.ListUnsynced(8)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected employee 8's row to survive, got %d rows", len(rows))
	}
}

func TestDropExhausted(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Save(&LocationUpdate{EmployeeID: 7, TimestampMs: 1000})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.IncrementSyncAttempts(id); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	dropped, err := s.DropExhausted(7, 3)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
}

func TestPurgeSyncedBeforeKeepsUnsynced(t *testing.T) {
	s := openTestStore(t)

	old := time.Now().Add(-10 * 24 * time.Hour).UnixMilli()
	idOld, _ := s.Save(&LocationUpdate{EmployeeID: 7, TimestampMs: old})
	if _, err := s.MarkSynced(idOld); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	// Old but unsynced: retention must not eat pending data.
	if _, err := s.Save(&LocationUpdate{EmployeeID: 7, TimestampMs: old + 1}); err != nil {
		t.Fatalf("save: %v", err)
	}

	n, err := s.PurgeSyncedBefore(7, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("purge synced: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}

	rows, _ := s.ListUnsynced(7)
	if len(rows) != 1 {
		t.Fatalf("expected unsynced row to survive retention, got %d", len(rows))
	}
}

func TestTrackingMarker(t *testing.T) {
	s := openTestStore(t)

	dirty, err := s.WasTrackingActive(7)
	if err != nil || dirty {
		t.Fatalf("expected clean marker initially, dirty=%v err=%v", dirty, err)
	}

	if err := s.SetTrackingActive(7); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	dirty, _ = s.WasTrackingActive(7)
	if !dirty {
		t.Fatalf("expected marker set")
	}

	if err := s.ClearTrackingActive(7); err != nil {
		t.Fatalf("clear marker: %v", err)
	}
	dirty, _ = s.WasTrackingActive(7)
	if dirty {
		t.Fatalf("expected marker cleared")
	}
}
