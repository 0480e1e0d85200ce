// Package api wires up the Gin HTTP router with all handler functions for
// the wire protocol's seventeen endpoints (spec.md §6) plus the supplemented
// update_replicas broadcast (SPEC_FULL.md §11).
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"distributed-kvstore/internal/chordhash"
	"distributed-kvstore/internal/ring"
	"distributed-kvstore/internal/wire"
)

// Handler holds the single ring.Node this process runs.
type Handler struct {
	node *ring.Node
	log  *zap.Logger
}

// NewHandler creates a Handler for node, logging through log.
func NewHandler(node *ring.Node, log *zap.Logger) *Handler {
	return &Handler{node: node, log: log}
}

// Register mounts every wire-protocol route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/insert", h.Insert)
	r.POST("/delete", h.Delete)
	r.POST("/query", h.Query)
	r.POST("/join", h.Join)
	r.POST("/depart", h.Depart)
	r.GET("/overlay", h.Overlay)
	r.GET("/node_info", h.NodeInfo)
	r.POST("/set_config", h.SetConfig)

	r.POST("/insertReplicas", h.InsertReplicas)
	r.POST("/deleteReplicas", h.DeleteReplicas)
	r.POST("/update_successor", h.UpdateSuccessor)
	r.POST("/update_predecessor", h.UpdatePredecessor)
	r.POST("/transfer_keys", h.TransferKeys)
	r.POST("/transfer_replicas", h.TransferReplicas)
	r.POST("/generate_replicas", h.GenerateReplicas)
	r.POST("/remove_transferred_replicas", h.RemoveTransferredReplicas)
	r.POST("/shift_replicas", h.ShiftReplicas)
	r.POST("/update_replicas", h.UpdateReplicas)
}

// statusFor maps the ring error taxonomy (spec §7) onto HTTP status codes.
func statusFor(err error) int {
	var notFound *ring.NotFoundError
	var invalid *ring.InvalidRequestError
	var routing *ring.RoutingError
	var membership *ring.MembershipError
	var transport *ring.TransportError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &routing), errors.As(err, &membership):
		return http.StatusConflict
	case errors.As(err, &transport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// chordhashID computes the ring identifier of an "ip:port" address, the
// same way every node identifies both itself and its neighbours.
func chordhashID(ip, port string) uint16 {
	return chordhash.Hash(ip + ":" + port)
}

// ─── Client-facing endpoints ────────────────────────────────────────────────

func (h *Handler) Insert(c *gin.Context) {
	var req wire.InsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.InsertReply{Error: err.Error()})
		return
	}
	reply, err := h.node.Insert(c.Request.Context(), req.Key, req.Value)
	if err != nil {
		c.JSON(statusFor(err), wire.InsertReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) Delete(c *gin.Context) {
	var req wire.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.DeleteReply{Error: err.Error()})
		return
	}
	reply, err := h.node.Delete(c.Request.Context(), req.Key)
	if err != nil {
		c.JSON(statusFor(err), wire.DeleteReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) Query(c *gin.Context) {
	var req wire.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.QueryReply{Error: err.Error()})
		return
	}

	var visited []uint16
	if req.Key == "*" {
		visited = req.Visited
	} else if req.Origin != nil {
		visited = []uint16{*req.Origin}
	}

	reply, err := h.node.Query(c.Request.Context(), req.Key, visited)
	if err != nil {
		c.JSON(statusFor(err), wire.QueryReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) Join(c *gin.Context) {
	var req wire.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.JoinReply{Error: err.Error()})
		return
	}
	newcomer := wire.Descriptor{IP: req.IP, Port: req.Port, ID: chordhashID(req.IP, req.Port)}
	reply, err := h.node.HandleJoin(c.Request.Context(), newcomer)
	if err != nil {
		c.JSON(statusFor(err), wire.JoinReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) Depart(c *gin.Context) {
	reply, err := h.node.Depart(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), wire.DepartReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) Overlay(c *gin.Context) {
	visited := ring.ParseVisitedIDs(c.Query("visited_ids"))
	reply, err := h.node.Overlay(c.Request.Context(), visited)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) NodeInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.node.NodeInfo())
}

func (h *Handler) SetConfig(c *gin.Context) {
	var req wire.SetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	if err := h.node.SetConfig(req.Consistency, req.KFactor); err != nil {
		c.JSON(statusFor(err), wire.AckReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

// ─── Peer-to-peer replication endpoints ─────────────────────────────────────

func (h *Handler) InsertReplicas(c *gin.Context) {
	var req wire.InsertReplicasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.InsertReplicasReply{Error: err.Error()})
		return
	}
	tail, err := h.node.HandleInsertReplicas(c.Request.Context(), req.Key, req.Value, req.ReplicationCount, req.Join, req.StartingNode)
	if err != nil {
		c.JSON(statusFor(err), wire.InsertReplicasReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, wire.InsertReplicasReply{Status: "success", Tail: tail})
}

func (h *Handler) DeleteReplicas(c *gin.Context) {
	var req wire.DeleteReplicasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	if err := h.node.HandleDeleteReplicas(c.Request.Context(), req.Key, req.ReplicationCount, req.StartingNode); err != nil {
		c.JSON(statusFor(err), wire.AckReply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) UpdateSuccessor(c *gin.Context) {
	var req wire.UpdateSuccessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.UpdateSuccessor(req.NewSuccessor)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) UpdatePredecessor(c *gin.Context) {
	var req wire.UpdatePredecessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.UpdatePredecessor(req.NewPredecessor)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) TransferKeys(c *gin.Context) {
	var req wire.TransferKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.HandleTransferKeys(req.Keys)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) TransferReplicas(c *gin.Context) {
	var req wire.TransferReplicasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.HandleTransferReplicas(c.Request.Context(), req.Replicas)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) GenerateReplicas(c *gin.Context) {
	var req wire.GenerateReplicasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.HandleGenerateReplicas(c.Request.Context(), req.Keys)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) RemoveTransferredReplicas(c *gin.Context) {
	var req wire.RemoveTransferredReplicasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.HandleRemoveTransferredReplicas(req.Keys)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) ShiftReplicas(c *gin.Context) {
	var req wire.ShiftReplicasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.HandleShiftReplicas(c.Request.Context(), req.Keys, req.Replicas, req.StartingNode)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}

func (h *Handler) UpdateReplicas(c *gin.Context) {
	var req wire.UpdateReplicasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.AckReply{Error: err.Error()})
		return
	}
	h.node.HandleUpdateReplicas(c.Request.Context(), req.Replicas, req.NewNodeID)
	c.JSON(http.StatusOK, wire.AckReply{Status: "success"})
}
