package ring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"distributed-kvstore/internal/wire"
)

// selfHeal regenerates replicas for this node's own data (in case a prior
// propagation was dropped by a timed-out hop) and asks the successor to do
// the same for its data. Grounded on the original's one-shot
// replica_handler (src/helper_functions.py), generalized into a periodic
// tick per SPEC_FULL.md §11.
func (n *Node) selfHeal(ctx context.Context) {
	data := n.store.DataSnapshot()
	if len(data) > 0 {
		n.HandleGenerateReplicas(ctx, data)
	}

	succ, _ := n.pointers()
	if succ.ID == n.self.ID {
		return
	}

	var info wire.NodeInfoReply
	if err := n.peer.get(ctx, succ.Addr(), "/node_info", nil, &info); err != nil {
		n.logger.Warn("self-heal: successor unreachable", zap.String("peer", succ.Addr()), zap.Error(err))
		return
	}
	if len(info.Data) == 0 {
		return
	}
	var ack wire.AckReply
	req := wire.GenerateReplicasRequest{Keys: info.Data}
	if err := n.peer.post(ctx, succ.Addr(), "/generate_replicas", req, &ack); err != nil {
		n.logger.Warn("self-heal: generate_replicas on successor failed", zap.String("peer", succ.Addr()), zap.Error(err))
	}
}

// RunSelfHealing ticks selfHeal every interval until ctx is cancelled.
// Intended to run as a single background goroutine started from
// cmd/server/main.go.
func (n *Node) RunSelfHealing(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.selfHeal(ctx)
		}
	}
}
