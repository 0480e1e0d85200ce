// Package wire defines the JSON request/response shapes exchanged between
// ring nodes (and between the CLI client and a node) over the seventeen
// HTTP endpoints of the wire protocol, plus update_replicas. Kept separate from internal/api so
// both internal/client (the external SDK) and internal/ring's outbound
// peer RPCs can share the shapes without importing gin.
package wire

import "distributed-kvstore/internal/store"

// Descriptor identifies a ring member by address and identifier. It is a
// value, never a handle: nobody holds a remote Node, only its descriptor.
type Descriptor struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
	ID   uint16 `json:"id"`
}

// Addr renders the descriptor as a dialable host:port string.
func (d Descriptor) Addr() string {
	return d.IP + ":" + d.Port
}

// ─── /insert, /delete ───────────────────────────────────────────────────────

type InsertRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type InsertReply struct {
	Status string     `json:"status"`
	Owner  Descriptor `json:"owner"`
	Tail   Descriptor `json:"tail,omitempty"`
	Error  string     `json:"error,omitempty"`
}

type DeleteRequest struct {
	Key string `json:"key"`
}

type DeleteReply struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ─── /query ──────────────────────────────────────────────────────────────────

type QueryRequest struct {
	Key string `json:"key"`
	// Origin is set by the forwarding node on every hop after the first,
	// so a "not found anywhere" walk can detect it has come full circle.
	// Left nil on the request that originates the query.
	Origin *uint16 `json:"origin,omitempty"`
	// Visited accumulates node ids for the key="*" ring walk.
	Visited []uint16 `json:"visited,omitempty"`
}

type QueryReply struct {
	Status string            `json:"status"`
	Value  string            `json:"value,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// ─── /join ───────────────────────────────────────────────────────────────────

type JoinRequest struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
}

type JoinReply struct {
	Status              string                   `json:"status"`
	NewSuccessor        Descriptor               `json:"new_successor"`
	NewPredecessor      Descriptor               `json:"new_predecessor"`
	TransferredKeys     map[string]string        `json:"transferred_keys"`
	TransferredReplicas map[string]store.Replica `json:"transferred_replicas"`
	Consistency         string                   `json:"consistency"`
	KFactor             int                      `json:"k_factor"`
	Error               string                   `json:"error,omitempty"`
}

// ─── /depart ─────────────────────────────────────────────────────────────────

type DepartReply struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ─── /overlay ────────────────────────────────────────────────────────────────

type OverlayEntry struct {
	ID   uint16 `json:"id"`
	IP   string `json:"ip"`
	Port string `json:"port"`
}

type OverlayReply struct {
	Status  string         `json:"status"`
	Overlay []OverlayEntry `json:"overlay"`
}

// ─── /node_info ──────────────────────────────────────────────────────────────

type NodeInfoReply struct {
	Self        Descriptor               `json:"self"`
	Successor   Descriptor               `json:"successor"`
	Predecessor Descriptor               `json:"predecessor"`
	Data        map[string]string        `json:"data"`
	Replicas    map[string]store.Replica `json:"replicas"`
	Consistency string                   `json:"consistency"`
	KFactor     int                      `json:"k_factor"`
}

// ─── /set_config ─────────────────────────────────────────────────────────────

type SetConfigRequest struct {
	Consistency string `json:"consistency,omitempty"`
	KFactor     int    `json:"k_factor,omitempty"`
}

type AckReply struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ─── /insertReplicas, /deleteReplicas ───────────────────────────────────────

type InsertReplicasRequest struct {
	Key              string `json:"key"`
	Value            string `json:"value"`
	ReplicationCount int    `json:"replication_count"`
	Join             bool   `json:"join"`
	StartingNode     uint16 `json:"starting_node"`
}

type InsertReplicasReply struct {
	Status string     `json:"status"`
	Tail   Descriptor `json:"tail"`
	Error  string     `json:"error,omitempty"`
}

type DeleteReplicasRequest struct {
	Key              string `json:"key"`
	ReplicationCount int    `json:"replication_count"`
	StartingNode     uint16 `json:"starting_node"`
}

// ─── /update_successor, /update_predecessor ─────────────────────────────────

type UpdateSuccessorRequest struct {
	NewSuccessor Descriptor `json:"new_successor"`
}

type UpdatePredecessorRequest struct {
	NewPredecessor Descriptor `json:"new_predecessor"`
}

// ─── /transfer_keys, /transfer_replicas ─────────────────────────────────────

type TransferKeysRequest struct {
	Keys map[string]string `json:"keys"`
}

type TransferReplicasRequest struct {
	Replicas map[string]store.Replica `json:"replicas"`
}

// ─── /generate_replicas, /remove_transferred_replicas ───────────────────────

type GenerateReplicasRequest struct {
	Keys map[string]string `json:"keys"`
}

type RemoveTransferredReplicasRequest struct {
	Keys []string `json:"keys"`
}

// ─── /shift_replicas ─────────────────────────────────────────────────────────

type ShiftReplicasRequest struct {
	Keys         []string                 `json:"keys"`
	Replicas     map[string]store.Replica `json:"replicas"`
	StartingNode uint16                   `json:"starting_node"`
}

// ─── /update_replicas (supplemented — see SPEC_FULL.md §11) ─────────────────

type UpdateReplicasRequest struct {
	Replicas  map[string]store.Replica `json:"replicas"`
	NewNodeID uint16                   `json:"new_node_id"`
}
