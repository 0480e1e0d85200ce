// Package store is the local, per-node key-value engine (component C2).
//
// Every ring node holds exactly two maps:
//
//   - data: the primary copies this node owns.
//   - replicas: copies held on behalf of an upstream owner, each carrying
//     the remaining chain depth (1 at the tail).
//
// Insert is append-concatenation: writing value v to an existing key K
// sets its value to old+v with no separator. Get distinguishes "absent"
// from "present" with a dedicated NotFound sentinel rather than a magic
// string, so callers can't confuse a stored value that happens to read
// "not found" with an actual miss. Delete of a missing key is a no-op.
package store

import "sync"

// Replica is a copy of a key held somewhere other than its owner, tagged
// with how many more hops down the chain it represents.
type Replica struct {
	Value string `json:"value"`
	Depth int    `json:"depth"`
}

// ErrNotFound is returned by Get when the key is absent from this node's
// primary map. The replica map is not consulted.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "key not found" }

// Store holds one node's primary and replica maps. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	data     map[string]string
	replicas map[string]Replica
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data:     make(map[string]string),
		replicas: make(map[string]Replica),
	}
}

// ─── Primary store (owned keys) ────────────────────────────────────────────

// Insert appends value to the existing primary value for key, if any, and
// returns the resulting stored value.
func (s *Store) Insert(key, value string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.data[key] + value
	s.data[key] = merged
	return merged
}

// Get returns the primary value for key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Delete removes key from the primary store. Deleting a missing key is a
// no-op (P7: idempotent delete).
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Has reports whether key is present in the primary store.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// TakeInterval removes and returns every primary entry whose key falls in
// the circular interval test supplied by owns. Used by join to compute the
// set of keys handed off to a newcomer.
func (s *Store) TakeInterval(owns func(key string) bool) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	for k, v := range s.data {
		if owns(k) {
			out[k] = v
			delete(s.data, k)
		}
	}
	return out
}

// MergeData adds every entry of keys into the primary store, overwriting
// any existing value for the same key. Used by transfer_keys.
func (s *Store) MergeData(keys map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range keys {
		s.data[k] = v
	}
}

// DataSnapshot returns a copy of the primary map.
func (s *Store) DataSnapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// ─── Replica store ──────────────────────────────────────────────────────────

// PutReplicaAppend concatenates value onto any existing replica value for
// key and sets its depth to depth (the write-propagation case, where the
// incoming value is a single insert's worth of data to append).
func (s *Store) PutReplicaAppend(key, value string, depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.replicas[key]
	s.replicas[key] = Replica{Value: existing.Value + value, Depth: depth}
}

// PutReplicaOverwrite stores value verbatim as the replica for key (the
// join/depart hand-off case, where value is already the fully-merged
// authoritative value and must not be concatenated again).
func (s *Store) PutReplicaOverwrite(key, value string, depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicas[key] = Replica{Value: value, Depth: depth}
}

// GetReplica returns the replica entry for key, if any.
func (s *Store) GetReplica(key string) (Replica, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.replicas[key]
	return r, ok
}

// DeleteReplica removes the replica entry for key, reporting whether it was
// present (deleteReplicas stops propagating once a hop finds nothing to
// remove).
func (s *Store) DeleteReplica(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.replicas[key]
	delete(s.replicas, key)
	return ok
}

// ShiftReplica decrements the depth of the replica for key by one,
// removing the entry entirely once depth reaches 0. No-op if key has no
// replica entry.
func (s *Store) ShiftReplica(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replicas[key]
	if !ok {
		return
	}
	r.Depth--
	if r.Depth <= 0 {
		delete(s.replicas, key)
		return
	}
	s.replicas[key] = r
}

// ReplicasSnapshot returns a copy of the replica map.
func (s *Store) ReplicasSnapshot() map[string]Replica {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Replica, len(s.replicas))
	for k, v := range s.replicas {
		out[k] = v
	}
	return out
}

// MergeReplicas installs every entry of in into the replica map, skipping
// any key that is already a primary on this node (I5: no duplicate
// storage — a key lives in data XOR replicas on a single node).
func (s *Store) MergeReplicas(in map[string]Replica) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range in {
		if _, isPrimary := s.data[k]; isPrimary {
			continue
		}
		s.replicas[k] = v
	}
}

// RemoveReplicaKeys deletes the replica entries named in keys, used after a
// join promotes those keys to primaries on this node (remove_transferred_replicas).
func (s *Store) RemoveReplicaKeys(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.replicas, k)
	}
}

// Counts returns the number of primary and replica entries held locally.
func (s *Store) Counts() (data, replicas int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), len(s.replicas)
}
