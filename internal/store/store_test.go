package store

import "testing"

func TestInsertAppendsConcatenation(t *testing.T) {
	s := New()
	s.Insert("k", "hello")
	s.Insert("k", "world")

	got, err := s.Get("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "helloworld" {
		t.Errorf("got %q, want %q", got, "helloworld")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	if _, err := s.Get("missing"); err != ErrNotFound {
		t.Errorf("got err %v, want ErrNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New()
	s.Insert("k", "v")
	s.Delete("k")
	s.Delete("k") // must not panic or error

	if s.Has("k") {
		t.Errorf("key still present after delete")
	}
}

func TestTakeIntervalRemovesOnlyMatched(t *testing.T) {
	s := New()
	s.Insert("a", "1")
	s.Insert("b", "2")
	s.Insert("c", "3")

	taken := s.TakeInterval(func(k string) bool { return k == "a" || k == "c" })
	if len(taken) != 2 {
		t.Fatalf("took %d keys, want 2", len(taken))
	}
	if s.Has("a") || s.Has("c") {
		t.Errorf("taken keys still present in primary store")
	}
	if !s.Has("b") {
		t.Errorf("untaken key b was removed")
	}
}

func TestMergeDataOverwrites(t *testing.T) {
	s := New()
	s.Insert("k", "old")
	s.MergeData(map[string]string{"k": "new", "k2": "v2"})

	got, _ := s.Get("k")
	if got != "new" {
		t.Errorf("MergeData did not overwrite: got %q", got)
	}
	if !s.Has("k2") {
		t.Errorf("MergeData did not add new key")
	}
}

func TestShiftReplicaRemovesAtZeroDepth(t *testing.T) {
	s := New()
	s.PutReplicaOverwrite("k", "v", 1)
	s.ShiftReplica("k")

	if _, ok := s.GetReplica("k"); ok {
		t.Errorf("replica should have been removed at depth 0")
	}
}

func TestShiftReplicaDecrementsDepth(t *testing.T) {
	s := New()
	s.PutReplicaOverwrite("k", "v", 3)
	s.ShiftReplica("k")

	r, ok := s.GetReplica("k")
	if !ok {
		t.Fatalf("replica unexpectedly removed")
	}
	if r.Depth != 2 {
		t.Errorf("depth = %d, want 2", r.Depth)
	}
}

func TestShiftReplicaNoOpWhenAbsent(t *testing.T) {
	s := New()
	s.ShiftReplica("missing") // must not panic
}

func TestPutReplicaAppendConcatenates(t *testing.T) {
	s := New()
	s.PutReplicaAppend("k", "a", 3)
	s.PutReplicaAppend("k", "b", 2)

	r, ok := s.GetReplica("k")
	if !ok {
		t.Fatalf("replica missing")
	}
	if r.Value != "ab" {
		t.Errorf("value = %q, want %q", r.Value, "ab")
	}
	if r.Depth != 2 {
		t.Errorf("depth = %d, want 2 (last write wins)", r.Depth)
	}
}

func TestMergeReplicasSkipsExistingPrimary(t *testing.T) {
	s := New()
	s.Insert("k", "primary-value")
	s.MergeReplicas(map[string]Replica{
		"k":  {Value: "replica-value", Depth: 1},
		"k2": {Value: "v2", Depth: 1},
	})

	if _, ok := s.GetReplica("k"); ok {
		t.Errorf("I5 violation: key k became both primary and replica")
	}
	if _, ok := s.GetReplica("k2"); !ok {
		t.Errorf("k2 should have been merged as a replica")
	}
}

func TestRemoveReplicaKeys(t *testing.T) {
	s := New()
	s.PutReplicaOverwrite("a", "1", 2)
	s.PutReplicaOverwrite("b", "2", 2)

	s.RemoveReplicaKeys([]string{"a"})

	if _, ok := s.GetReplica("a"); ok {
		t.Errorf("a should have been removed")
	}
	if _, ok := s.GetReplica("b"); !ok {
		t.Errorf("b should still be present")
	}
}

func TestCounts(t *testing.T) {
	s := New()
	s.Insert("a", "1")
	s.Insert("b", "2")
	s.PutReplicaOverwrite("c", "3", 1)

	data, replicas := s.Counts()
	if data != 2 || replicas != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", data, replicas)
	}
}

func TestDeleteReplicaReportsPresence(t *testing.T) {
	s := New()
	if s.DeleteReplica("missing") {
		t.Errorf("DeleteReplica on missing key should report false")
	}
	s.PutReplicaOverwrite("k", "v", 1)
	if !s.DeleteReplica("k") {
		t.Errorf("DeleteReplica on present key should report true")
	}
}
