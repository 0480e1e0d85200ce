package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"distributed-kvstore/internal/client"
	"distributed-kvstore/internal/wire"
)

func TestInsertSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wire.InsertRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Key != "k" || req.Value != "v" {
			t.Errorf("unexpected request body: %+v", req)
		}
		json.NewEncoder(w).Encode(wire.InsertReply{Status: "success", Owner: wire.Descriptor{ID: 7}})
	}))
	defer srv.Close()

	c := client.New(srv.URL, time.Second)
	reply, err := c.Insert(context.Background(), "k", "v")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if reply.Owner.ID != 7 {
		t.Errorf("owner id = %d, want 7", reply.Owner.ID)
	}
}

func TestInsertServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
	}))
	defer srv.Close()

	c := client.New(srv.URL, time.Second)
	if _, err := c.Insert(context.Background(), "k", "v"); err == nil {
		t.Fatalf("expected error")
	} else if apiErr, ok := err.(*client.APIError); !ok {
		t.Fatalf("expected *APIError, got %T", err)
	} else if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.Status)
	}
}

func TestQueryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.QueryReply{Status: "error", Error: "key not found"})
	}))
	defer srv.Close()

	c := client.New(srv.URL, time.Second)
	if _, err := c.Query(context.Background(), "missing"); err != client.ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestOverlay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.OverlayReply{
			Status:  "success",
			Overlay: []wire.OverlayEntry{{ID: 1, IP: "127.0.0.1", Port: "8080"}},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL, time.Second)
	reply, err := c.Overlay(context.Background())
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	if len(reply.Overlay) != 1 || reply.Overlay[0].ID != 1 {
		t.Errorf("unexpected overlay: %+v", reply.Overlay)
	}
}

func TestDepartPropagatesFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.DepartReply{Status: "error", Error: "already departed"})
	}))
	defer srv.Close()

	c := client.New(srv.URL, time.Second)
	if err := c.Depart(context.Background()); err == nil {
		t.Errorf("expected error for failed depart")
	}
}
