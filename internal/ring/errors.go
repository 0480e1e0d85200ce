package ring

import "fmt"

// Error taxonomy (spec §7). Each variant wraps enough context to log or
// surface to the client; none of them retry automatically.

// RoutingError reports a forwarding loop (the caller's own id reappeared
// among the visited set) or an unreachable neighbour encountered while
// routing a request toward its owner.
type RoutingError struct {
	Reason string
}

func (e *RoutingError) Error() string { return "routing error: " + e.Reason }

// NotFoundError is returned by a query that found no value anywhere it
// looked. Distinct from TransportError: the request succeeded, the key
// just isn't there.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("key %q not found", e.Key) }

// TransportError wraps an RPC timeout, connection failure, or non-2xx
// response from a peer.
type TransportError struct {
	Peer string
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error calling %s on %s: %v", e.Op, e.Peer, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvalidRequestError reports a missing field, unknown command, or
// out-of-range configuration value (k outside [1,10], unknown consistency
// mode).
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return "invalid request: " + e.Reason }

// MembershipError reports a depart race that left a pointer dangling.
// It is reported, not auto-repaired (spec §7).
type MembershipError struct {
	Reason string
}

func (e *MembershipError) Error() string { return "membership error: " + e.Reason }
