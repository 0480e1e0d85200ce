package ring

import (
	"context"

	"go.uber.org/zap"

	"distributed-kvstore/internal/chordhash"
	"distributed-kvstore/internal/store"
	"distributed-kvstore/internal/wire"
)

// ─── Join (existing-node side) ──────────────────────────────────────────────

// HandleJoin services a /join request landing on this node from newcomer X.
// If X's id falls in (predecessor, self] this node becomes X's successor
// and completes the hand-off; otherwise the request is forwarded.
func (n *Node) HandleJoin(ctx context.Context, newcomer wire.Descriptor) (wire.JoinReply, error) {
	_, pred := n.pointers()
	if pred.ID == n.self.ID || chordhash.InInterval(newcomer.ID, pred.ID, n.self.ID) {
		return n.completeJoin(ctx, newcomer)
	}

	succ, _ := n.pointers()
	var reply wire.JoinReply
	if err := n.peer.post(ctx, succ.Addr(), "/join", wire.JoinRequest{IP: newcomer.IP, Port: newcomer.Port}, &reply); err != nil {
		return wire.JoinReply{}, &TransportError{Peer: succ.Addr(), Op: "join", Err: err}
	}
	return reply, nil
}

func (n *Node) completeJoin(ctx context.Context, newcomer wire.Descriptor) (wire.JoinReply, error) {
	n.mu.Lock()
	oldPred := n.predecessor
	consistency := n.consistency
	k := n.k
	n.predecessor = newcomer
	n.mu.Unlock()

	toTransfer := n.store.TakeInterval(func(key string) bool {
		return chordhash.InInterval(chordhash.Hash(key), oldPred.ID, newcomer.ID)
	})

	var replicasSnapshot map[string]store.Replica
	if k > 1 {
		replicasSnapshot = n.store.ReplicasSnapshot()
		dataKeys := make([]string, 0, len(toTransfer))
		for key := range toTransfer {
			dataKeys = append(dataKeys, key)
		}
		n.propagateShiftReplicas(ctx, dataKeys, replicasSnapshot, n.self.ID)
	}

	// Notify the old predecessor that its successor is now the newcomer.
	// When this node was alone on the ring, the old predecessor IS this
	// node, so the update applies directly instead of round-tripping an
	// RPC to itself.
	if oldPred.ID == n.self.ID {
		n.setSuccessor(newcomer)
	} else {
		var ack wire.AckReply
		req := wire.UpdateSuccessorRequest{NewSuccessor: newcomer}
		if err := n.peer.post(ctx, oldPred.Addr(), "/update_successor", req, &ack); err != nil {
			n.logger.Warn("failed to notify old predecessor of new successor", zap.String("peer", oldPred.Addr()), zap.Error(err))
		}
	}

	return wire.JoinReply{
		Status:              "success",
		NewSuccessor:        n.self,
		NewPredecessor:      oldPred,
		TransferredKeys:     toTransfer,
		TransferredReplicas: replicasSnapshot,
		Consistency:         string(consistency),
		KFactor:             k,
	}, nil
}

// ─── Join (newcomer side) ───────────────────────────────────────────────────

// PerformJoin is run once by a newcomer at startup: it POSTs to a bootstrap
// node's /join, installs the resulting pointers, config, and transferred
// state, then asks its new successor to regenerate the replica chain for
// the keys it just inherited and drop its own now-stale copies of them.
func (n *Node) PerformJoin(ctx context.Context, bootstrap wire.Descriptor) error {
	var reply wire.JoinReply
	req := wire.JoinRequest{IP: n.self.IP, Port: n.self.Port}
	if err := n.peer.post(ctx, bootstrap.Addr(), "/join", req, &reply); err != nil {
		return &TransportError{Peer: bootstrap.Addr(), Op: "join", Err: err}
	}
	if reply.Status != "success" {
		return &MembershipError{Reason: reply.Error}
	}

	n.mu.Lock()
	n.successor = reply.NewSuccessor
	n.predecessor = reply.NewPredecessor
	n.consistency = Consistency(reply.Consistency)
	n.k = reply.KFactor
	n.mu.Unlock()

	n.store.MergeData(reply.TransferredKeys)
	n.store.MergeReplicas(reply.TransferredReplicas)

	if len(reply.TransferredKeys) == 0 {
		return nil
	}

	succ := reply.NewSuccessor
	var ack wire.AckReply
	genReq := wire.GenerateReplicasRequest{Keys: reply.TransferredKeys}
	if err := n.peer.post(ctx, succ.Addr(), "/generate_replicas", genReq, &ack); err != nil {
		n.logger.Warn("generate_replicas after join failed", zap.String("peer", succ.Addr()), zap.Error(err))
	}

	keys := make([]string, 0, len(reply.TransferredKeys))
	for key := range reply.TransferredKeys {
		keys = append(keys, key)
	}
	removeReq := wire.RemoveTransferredReplicasRequest{Keys: keys}
	if err := n.peer.post(ctx, succ.Addr(), "/remove_transferred_replicas", removeReq, &ack); err != nil {
		n.logger.Warn("remove_transferred_replicas after join failed", zap.String("peer", succ.Addr()), zap.Error(err))
	}
	return nil
}

// ─── Depart ──────────────────────────────────────────────────────────────

// Depart gracefully removes this node from the ring: it hands its primary
// data and replicas to its successor, has the successor rebuild a fresh
// replica chain for them, then clears its own state.
func (n *Node) Depart(ctx context.Context) (wire.DepartReply, error) {
	succ, pred := n.pointers()

	if succ.ID != n.self.ID {
		var ack wire.AckReply
		if err := n.peer.post(ctx, pred.Addr(), "/update_successor", wire.UpdateSuccessorRequest{NewSuccessor: succ}, &ack); err != nil {
			n.logger.Warn("depart: failed to update predecessor's successor", zap.String("peer", pred.Addr()), zap.Error(err))
		}
		if err := n.peer.post(ctx, succ.Addr(), "/update_predecessor", wire.UpdatePredecessorRequest{NewPredecessor: pred}, &ack); err != nil {
			n.logger.Warn("depart: failed to update successor's predecessor", zap.String("peer", succ.Addr()), zap.Error(err))
		}

		data := n.store.DataSnapshot()
		replicas := n.store.ReplicasSnapshot()

		if err := n.peer.post(ctx, succ.Addr(), "/transfer_keys", wire.TransferKeysRequest{Keys: data}, &ack); err != nil {
			n.logger.Warn("depart: transfer_keys failed", zap.String("peer", succ.Addr()), zap.Error(err))
		}
		if err := n.peer.post(ctx, succ.Addr(), "/transfer_replicas", wire.TransferReplicasRequest{Replicas: replicas}, &ack); err != nil {
			n.logger.Warn("depart: transfer_replicas failed", zap.String("peer", succ.Addr()), zap.Error(err))
		}
		if err := n.peer.post(ctx, succ.Addr(), "/generate_replicas", wire.GenerateReplicasRequest{Keys: data}, &ack); err != nil {
			n.logger.Warn("depart: generate_replicas failed", zap.String("peer", succ.Addr()), zap.Error(err))
		}
		keys := make([]string, 0, len(data))
		for key := range data {
			keys = append(keys, key)
		}
		if err := n.peer.post(ctx, succ.Addr(), "/remove_transferred_replicas", wire.RemoveTransferredReplicasRequest{Keys: keys}, &ack); err != nil {
			n.logger.Warn("depart: remove_transferred_replicas failed", zap.String("peer", succ.Addr()), zap.Error(err))
		}
	}

	n.mu.Lock()
	n.successor = n.self
	n.predecessor = n.self
	n.mu.Unlock()

	n.store.TakeInterval(func(string) bool { return true })
	stale := n.store.ReplicasSnapshot()
	staleKeys := make([]string, 0, len(stale))
	for key := range stale {
		staleKeys = append(staleKeys, key)
	}
	n.store.RemoveReplicaKeys(staleKeys)

	return wire.DepartReply{Status: "success"}, nil
}

// ─── Unilateral pointer updates ─────────────────────────────────────────────

func (n *Node) UpdateSuccessor(d wire.Descriptor) { n.setSuccessor(d) }

func (n *Node) UpdatePredecessor(d wire.Descriptor) { n.setPredecessor(d) }

// ─── Key hand-off ───────────────────────────────────────────────────────────

// HandleTransferKeys merges an incoming primary-key batch (from a
// departing predecessor) into this node's own primary store.
func (n *Node) HandleTransferKeys(keys map[string]string) {
	n.store.MergeData(keys)
}
