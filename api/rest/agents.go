package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gridpath/game/grid"
	"go.uber.org/zap"
)

// AgentHandler handles agent REST endpoints. Agents walk the routes their
// path requests return, one tile per movement cooldown.
type AgentHandler struct {
	rooms  *Rooms
	logger *zap.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(rooms *Rooms, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{rooms: rooms, logger: logger}
}

type spawnAgentRequest struct {
	ID string `json:"id" binding:"required,min=1,max=64"`
	profileBody
	Pos *grid.Point `json:"pos" binding:"required"`
}

// Spawn handles POST /api/maps/:id/agents.
func (h *AgentHandler) Spawn(c *gin.Context) {
	var req spawnAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := req.resolve()
	if err != nil {
		writeError(c, err)
		return
	}
	room, err := h.rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	view, err := room.SpawnAgent(req.ID, profile, *req.Pos)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"agent": view})
}

// List handles GET /api/maps/:id/agents.
func (h *AgentHandler) List(c *gin.Context) {
	room := h.rooms.Active(c.Param("id"))
	if room == nil {
		c.JSON(http.StatusOK, gin.H{"agents": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": room.Agents()})
}

// Detail handles GET /api/maps/:id/agents/:agent.
func (h *AgentHandler) Detail(c *gin.Context) {
	room := h.rooms.Active(c.Param("id"))
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	view, ok := room.Agent(c.Param("agent"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": view})
}

type moveAgentRequest struct {
	Goal *grid.Point `json:"goal" binding:"required"`
}

// Move handles POST /api/maps/:id/agents/:agent/move.
func (h *AgentHandler) Move(c *gin.Context) {
	var req moveAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room := h.rooms.Active(c.Param("id"))
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	handle, err := room.MoveAgent(c.Param("agent"), *req.Goal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": handle.ID})
}

// Remove handles DELETE /api/maps/:id/agents/:agent.
func (h *AgentHandler) Remove(c *gin.Context) {
	room := h.rooms.Active(c.Param("id"))
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err := room.RemoveAgent(c.Param("agent")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
