// Package ring implements the Chord-style membership, routing, and
// replication engine (components C3-C7 of the design). A Node is an actor:
// all of its mutable state — pointers, local store, config — is guarded by
// a single mutex, and every outbound RPC happens outside the critical
// section (copy state under lock, release, call, reacquire to commit).
package ring

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"distributed-kvstore/internal/chordhash"
	"distributed-kvstore/internal/store"
	"distributed-kvstore/internal/wire"
)

// Consistency selects how writes and reads are propagated through the
// replica chain.
type Consistency string

const (
	Eventual        Consistency = "eventual"
	Linearizability Consistency = "linearizability"
)

// Node is one member of the ring. It owns a slice of the identifier space,
// forwards requests it doesn't own toward their owner, and holds replicas
// on behalf of its predecessors' chain.
type Node struct {
	self wire.Descriptor

	mu          sync.Mutex
	successor   wire.Descriptor
	predecessor wire.Descriptor
	consistency Consistency
	k           int

	store  *store.Store
	peer   *peerClient
	logger *zap.Logger
}

// Config bundles the knobs New needs beyond the node's own address.
type Config struct {
	Consistency Consistency
	KFactor     int
	Logger      *zap.Logger
}

// New creates a Node that is, for the moment, alone on its own ring: its
// successor and predecessor are both itself. Callers that join an existing
// ring overwrite these pointers via PerformJoin immediately afterward.
func New(self wire.Descriptor, cfg Config) *Node {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	k := cfg.KFactor
	if k < 1 {
		k = 1
	}
	consistency := cfg.Consistency
	if consistency != Eventual && consistency != Linearizability {
		consistency = Linearizability
	}
	return &Node{
		self:        self,
		successor:   self,
		predecessor: self,
		consistency: consistency,
		k:           k,
		store:       store.New(),
		peer:        newPeerClient(defaultRPCTimeout),
		logger:      logger,
	}
}

// Self returns this node's own descriptor. Immutable for the node's
// lifetime, so it needs no lock.
func (n *Node) Self() wire.Descriptor { return n.self }

// ─── Lock-discipline helpers ────────────────────────────────────────────────
//
// Every one of these takes the mutex just long enough to copy or assign a
// value; nothing here ever issues an RPC while holding n.mu.

func (n *Node) pointers() (succ, pred wire.Descriptor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.successor, n.predecessor
}

func (n *Node) setSuccessor(d wire.Descriptor) {
	n.mu.Lock()
	n.successor = d
	n.mu.Unlock()
}

func (n *Node) setPredecessor(d wire.Descriptor) {
	n.mu.Lock()
	n.predecessor = d
	n.mu.Unlock()
}

func (n *Node) configSnapshot() (Consistency, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.consistency, n.k
}

// owns reports whether this node is the primary owner of a key hashing to
// h: either it is alone on the ring, or h falls in (predecessor, self].
func (n *Node) owns(h chordhash.ID) bool {
	_, pred := n.pointers()
	if pred.ID == n.self.ID {
		return true
	}
	return chordhash.InInterval(h, pred.ID, n.self.ID)
}

// ─── Insert ──────────────────────────────────────────────────────────────

// Insert routes key to its owner (forwarding if necessary), writes it
// locally by append-concatenation, then propagates to the replica chain
// per the node's consistency mode.
func (n *Node) Insert(ctx context.Context, key, value string) (wire.InsertReply, error) {
	h := chordhash.Hash(key)
	if !n.owns(h) {
		succ, _ := n.pointers()
		var reply wire.InsertReply
		if err := n.peer.post(ctx, succ.Addr(), "/insert", wire.InsertRequest{Key: key, Value: value}, &reply); err != nil {
			return wire.InsertReply{}, &TransportError{Peer: succ.Addr(), Op: "insert", Err: err}
		}
		return reply, nil
	}

	n.store.Insert(key, value)
	consistency, k := n.configSnapshot()
	owner := n.self

	if consistency == Eventual {
		go func() {
			if _, err := n.forwardReplicate(context.Background(), key, value, k, false, n.self.ID); err != nil {
				n.logger.Warn("eventual insert propagation failed", zap.String("key", key), zap.Error(err))
			}
		}()
		return wire.InsertReply{Status: "success", Owner: owner}, nil
	}

	tail, err := n.forwardReplicate(ctx, key, value, k, false, n.self.ID)
	if err != nil {
		return wire.InsertReply{}, err
	}
	return wire.InsertReply{Status: "success", Owner: owner, Tail: tail}, nil
}

// ─── Delete ──────────────────────────────────────────────────────────────

// Delete routes key to its owner, pops it locally (idempotent: P7), then
// propagates the pop down the replica chain per the consistency mode.
func (n *Node) Delete(ctx context.Context, key string) (wire.DeleteReply, error) {
	h := chordhash.Hash(key)
	if !n.owns(h) {
		succ, _ := n.pointers()
		var reply wire.DeleteReply
		if err := n.peer.post(ctx, succ.Addr(), "/delete", wire.DeleteRequest{Key: key}, &reply); err != nil {
			return wire.DeleteReply{}, &TransportError{Peer: succ.Addr(), Op: "delete", Err: err}
		}
		return reply, nil
	}

	n.store.Delete(key)
	consistency, k := n.configSnapshot()

	if k <= 1 {
		return wire.DeleteReply{Status: "success"}, nil
	}

	if consistency == Eventual {
		go func() {
			if err := n.propagateDelete(context.Background(), key, k-1, n.self.ID); err != nil {
				n.logger.Warn("eventual delete propagation failed", zap.String("key", key), zap.Error(err))
			}
		}()
		return wire.DeleteReply{Status: "success"}, nil
	}

	if err := n.propagateDelete(ctx, key, k-1, n.self.ID); err != nil {
		return wire.DeleteReply{}, err
	}
	return wire.DeleteReply{Status: "success"}, nil
}

// ─── Query ───────────────────────────────────────────────────────────────

// Query answers key, or walks the whole ring when key is "*".
func (n *Node) Query(ctx context.Context, key string, visited []chordhash.ID) (wire.QueryReply, error) {
	if key == "*" {
		return n.HandleQueryAll(ctx, visited)
	}

	consistency, k := n.configSnapshot()
	h := chordhash.Hash(key)

	if consistency == Eventual {
		var origin *chordhash.ID
		if len(visited) > 0 {
			origin = &visited[0]
		}
		return n.queryEventual(ctx, key, h, origin)
	}
	return n.queryLinearizable(ctx, key, h, k)
}

// queryEventual answers from whichever store (primary, then replica) has
// the key locally; otherwise it forwards toward the owner. origin is nil
// on the first hop and set to the originating node's id on every hop after,
// so the walk can detect it has come full circle without finding the key.
func (n *Node) queryEventual(ctx context.Context, key string, h chordhash.ID, origin *chordhash.ID) (wire.QueryReply, error) {
	if n.owns(h) {
		if v, err := n.store.Get(key); err == nil {
			return wire.QueryReply{Status: "success", Value: v}, nil
		}
	}
	if r, ok := n.store.GetReplica(key); ok {
		return wire.QueryReply{Status: "success", Value: r.Value}, nil
	}

	originID := n.self.ID
	if origin != nil {
		originID = *origin
	}

	succ, _ := n.pointers()
	if succ.ID == originID {
		return wire.QueryReply{}, &NotFoundError{Key: key}
	}

	var reply wire.QueryReply
	req := wire.QueryRequest{Key: key, Origin: &originID}
	if err := n.peer.post(ctx, succ.Addr(), "/query", req, &reply); err != nil {
		return wire.QueryReply{}, &TransportError{Peer: succ.Addr(), Op: "query", Err: err}
	}
	return reply, nil
}

// queryLinearizable routes to the owner, then walks the chain of k-1
// successors via node_info lookups; the tail answers.
func (n *Node) queryLinearizable(ctx context.Context, key string, h chordhash.ID, k int) (wire.QueryReply, error) {
	succ, pred := n.pointers()
	if pred.ID == n.self.ID {
		v, err := n.store.Get(key)
		if err != nil {
			return wire.QueryReply{}, &NotFoundError{Key: key}
		}
		return wire.QueryReply{Status: "success", Value: v}, nil
	}

	if !n.owns(h) {
		var reply wire.QueryReply
		if err := n.peer.post(ctx, succ.Addr(), "/query", wire.QueryRequest{Key: key}, &reply); err != nil {
			return wire.QueryReply{}, &TransportError{Peer: succ.Addr(), Op: "query", Err: err}
		}
		return reply, nil
	}

	if k <= 1 {
		v, err := n.store.Get(key)
		if err != nil {
			return wire.QueryReply{}, &NotFoundError{Key: key}
		}
		return wire.QueryReply{Status: "success", Value: v}, nil
	}

	return n.queryChain(ctx, succ, key, k-1, n.self.ID)
}

// queryChain peeks at target's node_info, returning its value once it finds
// the tail: the node whose replica depth is 1, or whose own successor is
// back at startingID (the owner, meaning the chain wrapped because k > N).
func (n *Node) queryChain(ctx context.Context, target wire.Descriptor, key string, rc int, startingID chordhash.ID) (wire.QueryReply, error) {
	var info wire.NodeInfoReply
	if err := n.peer.get(ctx, target.Addr(), "/node_info", nil, &info); err != nil {
		return wire.QueryReply{}, &TransportError{Peer: target.Addr(), Op: "node_info", Err: err}
	}

	replica, ok := info.Replicas[key]
	isTail := ok && (replica.Depth == 1 || info.Successor.ID == startingID)
	if isTail {
		return wire.QueryReply{Status: "success", Value: replica.Value}, nil
	}
	if rc > 1 {
		return n.queryChain(ctx, info.Successor, key, rc-1, startingID)
	}
	return wire.QueryReply{}, &NotFoundError{Key: key}
}
