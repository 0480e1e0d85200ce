// Package client provides a Go SDK for talking to one ring node.
//
// Big idea:
//
// Instead of writing raw HTTP requests everywhere,
// we wrap them inside a clean Go API.
//
// So instead of:
//
//	http.NewRequest(...)
//	json.Marshal(...)
//
// Users can simply call:
//
//	client.Insert(ctx, "key", "value")
//	client.Query(ctx, "key")
//
// It hides HTTP details, JSON encoding/decoding, and error handling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"distributed-kvstore/internal/wire"
)

// Client talks to exactly one ring node over its base URL. The node it
// talks to is responsible for routing a request to the right owner; this
// SDK has no ring-topology knowledge of its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Client. baseURL is e.g. "http://localhost:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Insert stores key=value. The reply carries the owner's (and, under
// linearizability, the tail's) identity.
func (c *Client) Insert(ctx context.Context, key, value string) (*wire.InsertReply, error) {
	var reply wire.InsertReply
	if err := c.post(ctx, "/insert", wire.InsertRequest{Key: key, Value: value}, &reply); err != nil {
		return nil, err
	}
	if reply.Status != "success" {
		return nil, &APIError{Message: reply.Error}
	}
	return &reply, nil
}

// Query retrieves the value for key, or passes "*" to fetch every key in
// the ring.
func (c *Client) Query(ctx context.Context, key string) (*wire.QueryReply, error) {
	var reply wire.QueryReply
	if err := c.post(ctx, "/query", wire.QueryRequest{Key: key}, &reply); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if reply.Status != "success" {
		return nil, ErrNotFound
	}
	return &reply, nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	var reply wire.DeleteReply
	if err := c.post(ctx, "/delete", wire.DeleteRequest{Key: key}, &reply); err != nil {
		return err
	}
	if reply.Status != "success" {
		return &APIError{Message: reply.Error}
	}
	return nil
}

// Join asks the node at baseURL to admit a newcomer at ip:port into the
// ring. Most callers use this indirectly by starting a server process with
// bootstrap arguments; this method exists for tooling that drives joins
// without spawning a node (e.g. tests, batch scripts).
func (c *Client) Join(ctx context.Context, ip, port string) (*wire.JoinReply, error) {
	var reply wire.JoinReply
	if err := c.post(ctx, "/join", wire.JoinRequest{IP: ip, Port: port}, &reply); err != nil {
		return nil, err
	}
	if reply.Status != "success" {
		return nil, &APIError{Message: reply.Error}
	}
	return &reply, nil
}

// Overlay returns the ring's topology as seen from this node.
func (c *Client) Overlay(ctx context.Context) (*wire.OverlayReply, error) {
	var reply wire.OverlayReply
	if err := c.get(ctx, "/overlay", &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// NodeInfo returns the node's full local state snapshot.
func (c *Client) NodeInfo(ctx context.Context) (*wire.NodeInfoReply, error) {
	var reply wire.NodeInfoReply
	if err := c.get(ctx, "/node_info", &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Depart instructs the node to gracefully leave the ring.
func (c *Client) Depart(ctx context.Context) error {
	var reply wire.DepartReply
	if err := c.post(ctx, "/depart", struct{}{}, &reply); err != nil {
		return err
	}
	if reply.Status != "success" {
		return &APIError{Message: reply.Error}
	}
	return nil
}

// SetConfig updates consistency and/or k on the running node. Pass an
// empty consistency or zero kFactor to leave that field unchanged.
func (c *Client) SetConfig(ctx context.Context, consistency string, kFactor int) error {
	var reply wire.AckReply
	req := wire.SetConfigRequest{Consistency: consistency, KFactor: kFactor}
	if err := c.post(ctx, "/set_config", req, &reply); err != nil {
		return err
	}
	if reply.Status != "success" {
		return &APIError{Message: reply.Error}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a key does not exist anywhere in the ring.
var ErrNotFound = fmt.Errorf("key not found")

// APIError carries the HTTP status and the error message from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// checkStatus converts a non-2xx HTTP response into an APIError.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
