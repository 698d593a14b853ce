package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gridpath/audit"
	"github.com/kasuganosora/gridpath/cache"
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"github.com/kasuganosora/gridpath/game/world"
	mw "github.com/kasuganosora/gridpath/middleware"
	"go.uber.org/zap"
)

// RejectCounter counts path requests refused at submit time.
type RejectCounter interface {
	Rejected(reason string)
}

// PathHandler handles path request REST endpoints.
type PathHandler struct {
	rooms   *Rooms
	cache   cache.Cache
	audit   *audit.Service
	rejects RejectCounter
	logger  *zap.Logger
}

// NewPathHandler creates a new PathHandler. rejects may be nil.
func NewPathHandler(rooms *Rooms, c cache.Cache, auditSvc *audit.Service, rejects RejectCounter, logger *zap.Logger) *PathHandler {
	return &PathHandler{rooms: rooms, cache: c, audit: auditSvc, rejects: rejects, logger: logger}
}

type profileBody struct {
	Profile string  `json:"profile"`
	Speed   float64 `json:"speed"`
}

func (b profileBody) resolve() (pathfind.Profile, error) {
	return pathfind.ResolveProfile(b.Profile, b.Speed)
}

type submitPathRequest struct {
	profileBody
	Start *grid.Point `json:"start" binding:"required"`
	Goal  *grid.Point `json:"goal"  binding:"required"`
}

// Submit handles POST /api/maps/:id/paths. The result is delivered
// asynchronously; the caller polls /api/requests/:id or subscribes to events.
func (h *PathHandler) Submit(c *gin.Context) {
	start := time.Now()
	mapID := c.Param("id")
	var req submitPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := audit.Entry{
		TraceID: mw.GetTraceID(c),
		Action:  audit.ActionPathSubmit,
		MapID:   mapID,
		Request: req,
		IP:      c.ClientIP(),
	}
	handle, err := h.submit(c, mapID, req)
	entry.DurationMs = int(time.Since(start).Milliseconds())
	if err != nil {
		entry.Action = audit.ActionPathReject
		entry.Error = err.Error()
		h.audit.Log(entry)
		if statusFor(err) != http.StatusNotFound && h.rejects != nil {
			h.rejects.Rejected(rejectReason(err))
		}
		writeError(c, err)
		return
	}
	entry.RequestID = handle.ID
	h.audit.Log(entry)
	c.JSON(http.StatusAccepted, gin.H{"request_id": handle.ID, "status": world.StatusQueued})
}

func (h *PathHandler) submit(c *gin.Context, mapID string, req submitPathRequest) (pathfind.Handle, error) {
	profile, err := req.resolve()
	if err != nil {
		return pathfind.Handle{}, err
	}
	room, err := h.rooms.Get(c.Request.Context(), mapID)
	if err != nil {
		return pathfind.Handle{}, err
	}
	return room.Submit(world.PathRequest{
		Profile: profile,
		Start:   *req.Start,
		Goal:    *req.Goal,
	})
}

// RequestStatus handles GET /api/requests/:id.
func (h *PathHandler) RequestStatus(c *gin.Context) {
	st, err := world.LoadStatus(c.Request.Context(), h.cache, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Recent handles GET /api/maps/:id/recent?n=.
func (h *PathHandler) Recent(c *gin.Context) {
	n := world.RecentLimit
	if s := c.Query("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid n"})
			return
		}
		n = v
	}
	outcomes, err := world.RecentOutcomes(c.Request.Context(), h.cache, c.Param("id"), n)
	if err != nil {
		h.logger.Warn("load recent outcomes failed", zap.String("map_id", c.Param("id")), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "count": len(outcomes)})
}
