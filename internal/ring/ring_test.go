package ring_test

import (
	"context"
	"testing"

	"distributed-kvstore/internal/ring"
	"distributed-kvstore/internal/wire"
)

func newSoloNode(consistency ring.Consistency, k int) *ring.Node {
	self := wire.Descriptor{IP: "127.0.0.1", Port: "9001", ID: 42}
	return ring.New(self, ring.Config{Consistency: consistency, KFactor: k})
}

func TestSoloNodeInsertAndQuery(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	ctx := context.Background()

	if _, err := n.Insert(ctx, "k", "v1"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := n.Insert(ctx, "k", "v2"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reply, err := n.Query(ctx, "k", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply.Value != "v1v2" {
		t.Errorf("Value = %q, want %q (append-concatenation)", reply.Value, "v1v2")
	}
}

func TestSoloNodeDeleteIsIdempotent(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	ctx := context.Background()

	n.Insert(ctx, "k", "v")
	if _, err := n.Delete(ctx, "k"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if _, err := n.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete on missing key should not error: %v", err)
	}

	if _, err := n.Query(ctx, "k", nil); err == nil {
		t.Errorf("expected NotFoundError after delete, got nil")
	}
}

func TestSoloNodeQueryMissingKey(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	if _, err := n.Query(context.Background(), "nope", nil); err == nil {
		t.Errorf("expected error for missing key")
	}
}

func TestSoloNodeQueryAllReturnsOwnData(t *testing.T) {
	n := newSoloNode(ring.Eventual, 1)
	ctx := context.Background()
	n.Insert(ctx, "a", "1")
	n.Insert(ctx, "b", "2")

	reply, err := n.Query(ctx, "*", nil)
	if err != nil {
		t.Fatalf("Query(*): %v", err)
	}
	if len(reply.Data) != 2 || reply.Data["a"] != "1" || reply.Data["b"] != "2" {
		t.Errorf("unexpected data snapshot: %+v", reply.Data)
	}
}

func TestSetConfigRejectsUnknownConsistency(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	if err := n.SetConfig("bogus", 0); err == nil {
		t.Errorf("expected error for unknown consistency mode")
	}
}

func TestSetConfigRejectsOutOfRangeKFactor(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	if err := n.SetConfig("", 11); err == nil {
		t.Errorf("expected error for k_factor > 10")
	}
	if err := n.SetConfig("", 0); err != nil {
		t.Errorf("k_factor=0 should mean 'leave unchanged', got error: %v", err)
	}
}

func TestSetConfigAppliesValidValues(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	if err := n.SetConfig("eventual", 5); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	info := n.NodeInfo()
	if info.Consistency != "eventual" || info.KFactor != 5 {
		t.Errorf("NodeInfo after SetConfig = %+v, want consistency=eventual k=5", info)
	}
}

func TestSoloNodeOverlayContainsOnlyItself(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	reply, err := n.Overlay(context.Background(), nil)
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	if len(reply.Overlay) != 1 || reply.Overlay[0].ID != n.Self().ID {
		t.Errorf("Overlay = %+v, want single self entry", reply.Overlay)
	}
}

func TestSoloNodeDepartResetsPointersToSelf(t *testing.T) {
	n := newSoloNode(ring.Linearizability, 1)
	reply, err := n.Depart(context.Background())
	if err != nil {
		t.Fatalf("Depart: %v", err)
	}
	if reply.Status != "success" {
		t.Errorf("status = %q, want success", reply.Status)
	}
	info := n.NodeInfo()
	if info.Successor.ID != n.Self().ID || info.Predecessor.ID != n.Self().ID {
		t.Errorf("solo depart should leave pointers at self, got successor=%v predecessor=%v", info.Successor, info.Predecessor)
	}
}
