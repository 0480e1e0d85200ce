package api

import (
	"net/http"
	"testing"

	"distributed-kvstore/internal/ring"
)

func TestStatusForMapsErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &ring.NotFoundError{Key: "k"}, http.StatusNotFound},
		{"invalid request", &ring.InvalidRequestError{Reason: "bad"}, http.StatusBadRequest},
		{"routing error", &ring.RoutingError{Reason: "loop"}, http.StatusConflict},
		{"membership error", &ring.MembershipError{Reason: "race"}, http.StatusConflict},
		{"transport error", &ring.TransportError{Peer: "x", Op: "insert", Err: http.ErrHandlerTimeout}, http.StatusBadGateway},
		{"unknown error", errString("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusFor(tc.err); got != tc.want {
				t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestChordhashIDIsDeterministic(t *testing.T) {
	a := chordhashID("127.0.0.1", "8080")
	b := chordhashID("127.0.0.1", "8080")
	if a != b {
		t.Errorf("chordhashID not deterministic: %d != %d", a, b)
	}
}
