package ring_test

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"distributed-kvstore/internal/api"
	"distributed-kvstore/internal/chordhash"
	"distributed-kvstore/internal/ring"
	"distributed-kvstore/internal/wire"
)

// testNode bundles a live ring.Node with the httptest server exposing it,
// so two of these can actually talk over real HTTP like separate processes
// would — exercising the wire protocol, not just in-process calls.
type testNode struct {
	node *ring.Node
	srv  *httptest.Server
}

func startTestNode(t *testing.T, cfg ring.Config) *testNode {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ip, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}

	self := wire.Descriptor{IP: ip, Port: port, ID: chordhash.Hash(ip + ":" + port)}
	cfg.Logger = zap.NewNop()
	node := ring.New(self, cfg)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.NewHandler(node, zap.NewNop()).Register(router)

	srv := httptest.NewUnstartedServer(router)
	srv.Listener.Close()
	srv.Listener = l
	srv.Start()

	t.Cleanup(srv.Close)
	return &testNode{node: node, srv: srv}
}

func TestTwoNodeJoinAndCrossNodeQuery(t *testing.T) {
	a := startTestNode(t, ring.Config{Consistency: ring.Linearizability, KFactor: 2})
	b := startTestNode(t, ring.Config{})

	ctx := context.Background()
	if err := b.node.PerformJoin(ctx, a.node.Self()); err != nil {
		t.Fatalf("PerformJoin: %v", err)
	}

	// After joining, each node's successor must point at the other (a
	// two-node ring is its own successor and predecessor of the other).
	infoA := a.node.NodeInfo()
	infoB := b.node.NodeInfo()
	if infoA.Successor.ID != infoB.Self.ID {
		t.Errorf("a.successor = %v, want b (%v)", infoA.Successor, infoB.Self)
	}
	if infoB.Successor.ID != infoA.Self.ID {
		t.Errorf("b.successor = %v, want a (%v)", infoB.Successor, infoA.Self)
	}

	// Insert through whichever node happens to receive the request; it
	// must route to the true owner transparently either way.
	if _, err := a.node.Insert(ctx, "hello", "world"); err != nil {
		t.Fatalf("Insert via a: %v", err)
	}
	if _, err := b.node.Insert(ctx, "another", "value"); err != nil {
		t.Fatalf("Insert via b: %v", err)
	}

	reply, err := a.node.Query(ctx, "another", nil)
	if err != nil {
		t.Fatalf("Query 'another' via a: %v", err)
	}
	if reply.Value != "value" {
		t.Errorf("got %q, want %q", reply.Value, "value")
	}

	reply, err = b.node.Query(ctx, "hello", nil)
	if err != nil {
		t.Fatalf("Query 'hello' via b: %v", err)
	}
	if reply.Value != "world" {
		t.Errorf("got %q, want %q", reply.Value, "world")
	}
}

func TestTwoNodeOverlayListsBoth(t *testing.T) {
	a := startTestNode(t, ring.Config{Consistency: ring.Linearizability, KFactor: 2})
	b := startTestNode(t, ring.Config{})

	ctx := context.Background()
	if err := b.node.PerformJoin(ctx, a.node.Self()); err != nil {
		t.Fatalf("PerformJoin: %v", err)
	}

	overlay, err := a.node.Overlay(ctx, nil)
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	if len(overlay.Overlay) != 2 {
		t.Fatalf("overlay has %d entries, want 2: %+v", len(overlay.Overlay), overlay.Overlay)
	}
}

func TestTwoNodeInsertReplicatesToChain(t *testing.T) {
	a := startTestNode(t, ring.Config{Consistency: ring.Linearizability, KFactor: 2})
	b := startTestNode(t, ring.Config{})

	ctx := context.Background()
	if err := b.node.PerformJoin(ctx, a.node.Self()); err != nil {
		t.Fatalf("PerformJoin: %v", err)
	}

	if _, err := a.node.Insert(ctx, "rkey", "rvalue"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// With k=2 on a two-node ring, whichever node owns "rkey" should have
	// replicated a copy onto the other.
	infoA := a.node.NodeInfo()
	infoB := b.node.NodeInfo()

	_, aHasPrimary := infoA.Data["rkey"]
	_, bHasPrimary := infoB.Data["rkey"]
	replicaA, aHasReplica := infoA.Replicas["rkey"]
	replicaB, bHasReplica := infoB.Replicas["rkey"]

	if aHasPrimary == bHasPrimary {
		t.Fatalf("exactly one node should own the primary, got a=%v b=%v", aHasPrimary, bHasPrimary)
	}
	if aHasPrimary && !bHasReplica {
		t.Errorf("a owns rkey but b holds no replica")
	}
	if bHasPrimary && !aHasReplica {
		t.Errorf("b owns rkey but a holds no replica")
	}
	if aHasReplica && replicaA.Value != "rvalue" {
		t.Errorf("a's replica value = %q, want %q", replicaA.Value, "rvalue")
	}
	if bHasReplica && replicaB.Value != "rvalue" {
		t.Errorf("b's replica value = %q, want %q", replicaB.Value, "rvalue")
	}
}

func TestTwoNodeDepartMergesBack(t *testing.T) {
	a := startTestNode(t, ring.Config{Consistency: ring.Linearizability, KFactor: 1})
	b := startTestNode(t, ring.Config{})

	ctx := context.Background()
	if err := b.node.PerformJoin(ctx, a.node.Self()); err != nil {
		t.Fatalf("PerformJoin: %v", err)
	}
	if _, err := a.node.Insert(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Insert via a: %v", err)
	}
	if _, err := b.node.Insert(ctx, "k2", "v2"); err != nil {
		t.Fatalf("Insert via b: %v", err)
	}

	if _, err := b.node.Depart(ctx); err != nil {
		t.Fatalf("Depart: %v", err)
	}

	// Every key must still answer through the surviving node.
	for key, want := range map[string]string{"k1": "v1", "k2": "v2"} {
		reply, err := a.node.Query(ctx, key, nil)
		if err != nil {
			t.Errorf("Query %q after depart: %v", key, err)
			continue
		}
		if reply.Value != want {
			t.Errorf("Query %q = %q, want %q", key, reply.Value, want)
		}
	}

	info := a.node.NodeInfo()
	if info.Successor.ID != info.Self.ID || info.Predecessor.ID != info.Self.ID {
		t.Errorf("surviving node should be alone on the ring after depart, got %+v", info)
	}
}

func TestAddrRoundTrip(t *testing.T) {
	d := wire.Descriptor{IP: "127.0.0.1", Port: "9999"}
	if !strings.Contains(d.Addr(), "127.0.0.1:9999") {
		t.Errorf("Addr() = %q", d.Addr())
	}
}
