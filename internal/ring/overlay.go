package ring

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"distributed-kvstore/internal/chordhash"
	"distributed-kvstore/internal/wire"
)

// Overlay walks the ring via successor pointers, accumulating each node's
// {id, ip, port}, and stops once a node's own id already appears in
// visited.
func (n *Node) Overlay(ctx context.Context, visited []chordhash.ID) (wire.OverlayReply, error) {
	for _, v := range visited {
		if v == n.self.ID {
			return wire.OverlayReply{Status: "success"}, nil
		}
	}
	visited = append(visited, n.self.ID)
	entries := []wire.OverlayEntry{{ID: n.self.ID, IP: n.self.IP, Port: n.self.Port}}

	succ, _ := n.pointers()
	if succ.ID == n.self.ID {
		return wire.OverlayReply{Status: "success", Overlay: entries}, nil
	}

	q := url.Values{"visited_ids": []string{idsToCSV(visited)}}
	var reply wire.OverlayReply
	if err := n.peer.get(ctx, succ.Addr(), "/overlay", q, &reply); err != nil {
		return wire.OverlayReply{}, &TransportError{Peer: succ.Addr(), Op: "overlay", Err: err}
	}
	return wire.OverlayReply{Status: "success", Overlay: append(entries, reply.Overlay...)}, nil
}

func idsToCSV(ids []chordhash.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}

// ParseVisitedIDs parses the comma-separated visited_ids query parameter of
// /overlay into a slice of ring identifiers, skipping entries that are not
// integers. (The query="*" walk carries its visited ids in the request body.)
func ParseVisitedIDs(csv string) []chordhash.ID {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]chordhash.ID, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, chordhash.ID(v))
	}
	return out
}

// HandleQueryAll answers a key="*" query by collecting this node's primary
// data and every node reachable by walking successor pointers, terminating
// when a node's own id reappears in visited.
func (n *Node) HandleQueryAll(ctx context.Context, visited []chordhash.ID) (wire.QueryReply, error) {
	for _, v := range visited {
		if v == n.self.ID {
			return wire.QueryReply{Status: "success", Data: map[string]string{}}, nil
		}
	}
	visited = append(visited, n.self.ID)
	result := n.store.DataSnapshot()

	succ, _ := n.pointers()
	if succ.ID == n.self.ID {
		return wire.QueryReply{Status: "success", Data: result}, nil
	}

	ids := make([]uint16, len(visited))
	copy(ids, visited)
	req := wire.QueryRequest{Key: "*", Visited: ids}
	var reply wire.QueryReply
	if err := n.peer.post(ctx, succ.Addr(), "/query", req, &reply); err != nil {
		return wire.QueryReply{}, &TransportError{Peer: succ.Addr(), Op: "query", Err: err}
	}
	for k, v := range reply.Data {
		result[k] = v
	}
	return wire.QueryReply{Status: "success", Data: result}, nil
}

// NodeInfo reports this node's full local state: identity, pointers, both
// stores, and config. Used for introspection and as the chain-query peek.
func (n *Node) NodeInfo() wire.NodeInfoReply {
	succ, pred := n.pointers()
	consistency, k := n.configSnapshot()
	return wire.NodeInfoReply{
		Self:        n.self,
		Successor:   succ,
		Predecessor: pred,
		Data:        n.store.DataSnapshot(),
		Replicas:    n.store.ReplicasSnapshot(),
		Consistency: string(consistency),
		KFactor:     k,
	}
}

// SetConfig updates consistency and/or k on a running node. Per spec.md
// §9 this has no re-balancing effect on existing replicas — a running ring
// may briefly carry chains shaped by the old k until new writes land.
func (n *Node) SetConfig(consistency string, k int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if consistency != "" {
		c := Consistency(consistency)
		if c != Eventual && c != Linearizability {
			return &InvalidRequestError{Reason: "unknown consistency mode " + consistency}
		}
		n.consistency = c
	}
	if k != 0 {
		if k < 1 || k > 10 {
			return &InvalidRequestError{Reason: "k_factor out of range [1,10]"}
		}
		n.k = k
	}
	return nil
}
