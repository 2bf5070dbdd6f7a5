package outbox

import "testing"

func openTest(t *testing.T) *Outbox {
	t.Helper()
	ob, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = ob.Close() })
	return ob
}

func TestAppendAndGet(t *testing.T) {
	ob := openTest(t)

	if err := ob.Append(7, []byte(`{"trade":"x"}`)); err != nil {
		t.Fatal(err)
	}
	rec, err := ob.Get(7)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != StateNew || rec.Seq != 7 || string(rec.Payload) != `{"trade":"x"}` {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestStateTransitions(t *testing.T) {
	ob := openTest(t)
	_ = ob.Append(1, []byte("a"))

	if err := ob.MarkSent(1); err != nil {
		t.Fatal(err)
	}
	rec, _ := ob.Get(1)
	if rec.State != StateSent || rec.Retries != 1 {
		t.Errorf("after send: %+v", rec)
	}

	if err := ob.MarkAcked(1); err != nil {
		t.Fatal(err)
	}
	rec, _ = ob.Get(1)
	if rec.State != StateAcked {
		t.Errorf("after ack: %+v", rec)
	}
}

func TestScanPendingSkipsAcked(t *testing.T) {
	ob := openTest(t)
	_ = ob.Append(1, []byte("a"))
	_ = ob.Append(2, []byte("b"))
	_ = ob.Append(3, []byte("c"))
	_ = ob.MarkSent(2)
	_ = ob.MarkAcked(2)

	var seen []uint64
	err := ob.ScanPending(func(rec Record) error {
		seen = append(seen, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Errorf("pending scan = %v, want [1 3]", seen)
	}
}

func TestScanOrderedBySeq(t *testing.T) {
	ob := openTest(t)
	for _, seq := range []uint64{42, 7, 100, 1} {
		_ = ob.Append(seq, []byte("x"))
	}

	var seen []uint64
	_ = ob.ScanPending(func(rec Record) error {
		seen = append(seen, rec.Seq)
		return nil
	})
	want := []uint64{1, 7, 42, 100}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("scan order %v, want %v", seen, want)
		}
	}
}

func TestPruneRemovesOnlyAcked(t *testing.T) {
	ob := openTest(t)
	_ = ob.Append(1, []byte("a"))
	_ = ob.Append(2, []byte("b"))
	_ = ob.MarkSent(1)
	_ = ob.MarkAcked(1)

	if err := ob.Prune(2); err != nil {
		t.Fatal(err)
	}
	if _, err := ob.Get(1); err == nil {
		t.Error("acked record should be pruned")
	}
	if _, err := ob.Get(2); err != nil {
		t.Error("pending record must survive pruning")
	}
}
