package ring

import (
	"context"

	"go.uber.org/zap"

	"distributed-kvstore/internal/store"
	"distributed-kvstore/internal/wire"
)

// ─── Insert-replica chain (C5) ──────────────────────────────────────────────

// forwardReplicate is the single entry point into the insert-replica chain,
// used both by the owner kicking it off (rc=k) and by each hop continuing
// it (rc decremented). It returns the descriptor of whichever node
// terminates the chain — the tail — which linearizability-mode writes use
// to answer the caller.
func (n *Node) forwardReplicate(ctx context.Context, key, value string, rc int, join bool, origin uint16) (wire.Descriptor, error) {
	succ, _ := n.pointers()
	if succ.ID == origin || rc <= 1 {
		return n.self, nil
	}

	req := wire.InsertReplicasRequest{
		Key:              key,
		Value:            value,
		ReplicationCount: rc - 1,
		Join:             join,
		StartingNode:     origin,
	}
	var reply wire.InsertReplicasReply
	if err := n.peer.post(ctx, succ.Addr(), "/insertReplicas", req, &reply); err != nil {
		return wire.Descriptor{}, &TransportError{Peer: succ.Addr(), Op: "insertReplicas", Err: err}
	}
	return reply.Tail, nil
}

// HandleInsertReplicas is the /insertReplicas endpoint: store the replica
// at this hop, then continue the chain.
func (n *Node) HandleInsertReplicas(ctx context.Context, key, value string, rc int, join bool, origin uint16) (wire.Descriptor, error) {
	if n.store.Has(key) {
		// Full loop: k > ring size and we walked back to the primary.
		return n.self, nil
	}
	if join {
		n.store.PutReplicaOverwrite(key, value, rc)
	} else {
		n.store.PutReplicaAppend(key, value, rc)
	}
	return n.forwardReplicate(ctx, key, value, rc, join, origin)
}

// ─── Delete-replica chain ───────────────────────────────────────────────────

// propagateDelete is the owner-side kickoff: tell the first replica holder
// to drop its copy and continue. rc is already k-1 by the time this runs.
func (n *Node) propagateDelete(ctx context.Context, key string, rc int, origin uint16) error {
	if rc < 1 {
		return nil
	}
	succ, _ := n.pointers()
	if succ.ID == origin {
		return nil
	}
	req := wire.DeleteReplicasRequest{Key: key, ReplicationCount: rc, StartingNode: origin}
	var reply wire.AckReply
	if err := n.peer.post(ctx, succ.Addr(), "/deleteReplicas", req, &reply); err != nil {
		return &TransportError{Peer: succ.Addr(), Op: "deleteReplicas", Err: err}
	}
	return nil
}

// HandleDeleteReplicas is the /deleteReplicas endpoint.
func (n *Node) HandleDeleteReplicas(ctx context.Context, key string, rc int, origin uint16) error {
	if !n.store.DeleteReplica(key) {
		return nil // already cleaned up
	}
	if rc <= 1 {
		return nil
	}
	succ, _ := n.pointers()
	if succ.ID == origin {
		return nil
	}
	req := wire.DeleteReplicasRequest{Key: key, ReplicationCount: rc - 1, StartingNode: origin}
	var reply wire.AckReply
	if err := n.peer.post(ctx, succ.Addr(), "/deleteReplicas", req, &reply); err != nil {
		return &TransportError{Peer: succ.Addr(), Op: "deleteReplicas", Err: err}
	}
	return nil
}

// ─── Shift replicas ─────────────────────────────────────────────────────────

// shiftReplicasLocal decrements the depth of every replica entry whose key
// appears in either dataKeys or snapshot, dropping entries that reach 0.
func (n *Node) shiftReplicasLocal(dataKeys []string, snapshot map[string]store.Replica) {
	touched := make(map[string]struct{}, len(dataKeys)+len(snapshot))
	for _, k := range dataKeys {
		touched[k] = struct{}{}
	}
	for k := range snapshot {
		touched[k] = struct{}{}
	}
	for k := range touched {
		n.store.ShiftReplica(k)
	}
}

// propagateShiftReplicas applies the shift locally, then forwards to the
// successor until the walk returns to origin.
func (n *Node) propagateShiftReplicas(ctx context.Context, dataKeys []string, snapshot map[string]store.Replica, origin uint16) {
	n.shiftReplicasLocal(dataKeys, snapshot)

	succ, _ := n.pointers()
	if succ.ID == origin {
		return
	}
	req := wire.ShiftReplicasRequest{Keys: dataKeys, Replicas: snapshot, StartingNode: origin}
	var reply wire.AckReply
	if err := n.peer.post(ctx, succ.Addr(), "/shift_replicas", req, &reply); err != nil {
		n.logger.Warn("shift_replicas propagation failed", zap.String("peer", succ.Addr()), zap.Error(err))
	}
}

// HandleShiftReplicas is the /shift_replicas endpoint.
func (n *Node) HandleShiftReplicas(ctx context.Context, dataKeys []string, snapshot map[string]store.Replica, origin uint16) {
	n.propagateShiftReplicas(ctx, dataKeys, snapshot, origin)
}

// ─── Generate / transfer / update replicas ─────────────────────────────────

// HandleGenerateReplicas starts a fresh insertReplicas chain for each key,
// originating at this node (the node the RPC landed on, not necessarily the
// true primary — see DESIGN.md for the grounding of this origin choice).
func (n *Node) HandleGenerateReplicas(ctx context.Context, keys map[string]string) {
	_, k := n.configSnapshot()
	for key, value := range keys {
		if _, err := n.forwardReplicate(ctx, key, value, k, true, n.self.ID); err != nil {
			n.logger.Warn("generate_replicas propagation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// HandleTransferReplicas adopts each entry not already primary here, then
// re-propagates it to refresh the downstream chain's depths.
func (n *Node) HandleTransferReplicas(ctx context.Context, replicas map[string]store.Replica) {
	for key, r := range replicas {
		if n.store.Has(key) {
			continue
		}
		n.store.PutReplicaOverwrite(key, r.Value, r.Depth)
		if _, err := n.forwardReplicate(ctx, key, r.Value, r.Depth, true, n.self.ID); err != nil {
			n.logger.Warn("transfer_replicas propagation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// HandleRemoveTransferredReplicas clears the now-stale replica entries for
// keys newly promoted to primary on this node.
func (n *Node) HandleRemoveTransferredReplicas(keys []string) {
	n.store.RemoveReplicaKeys(keys)
}

// HandleUpdateReplicas is the supplemented update_replicas broadcast
// (SPEC_FULL.md §11): install a whole batch of replica entries and forward
// the same batch onward until the walk returns to whichever node started
// it (tracked by newNodeID, matching the origin-by-id pattern used
// everywhere else in the replication engine rather than the original's
// unterminated broadcast).
func (n *Node) HandleUpdateReplicas(ctx context.Context, replicas map[string]store.Replica, newNodeID uint16) {
	for key, r := range replicas {
		n.store.PutReplicaOverwrite(key, r.Value, r.Depth)
	}
	succ, _ := n.pointers()
	if succ.ID == n.self.ID || succ.ID == newNodeID {
		return
	}
	req := wire.UpdateReplicasRequest{Replicas: replicas, NewNodeID: newNodeID}
	var reply wire.AckReply
	if err := n.peer.post(ctx, succ.Addr(), "/update_replicas", req, &reply); err != nil {
		n.logger.Warn("update_replicas propagation failed", zap.String("peer", succ.Addr()), zap.Error(err))
	}
}
