package rest

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gridpath/audit"
	"github.com/kasuganosora/gridpath/config"
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/mapstore"
	"github.com/kasuganosora/gridpath/game/world"
	mw "github.com/kasuganosora/gridpath/middleware"
	"github.com/kasuganosora/gridpath/model"
	"github.com/kasuganosora/gridpath/scheduler"
	"go.uber.org/zap"
)

const maxRebindDelay = 10 * time.Minute

// MapHandler handles map REST endpoints.
type MapHandler struct {
	store  *mapstore.Store
	rooms  *Rooms
	audit  *audit.Service
	sched  *scheduler.Scheduler
	game   config.GameConfig
	logger *zap.Logger
}

// NewMapHandler creates a new MapHandler.
func NewMapHandler(
	store *mapstore.Store,
	rooms *Rooms,
	auditSvc *audit.Service,
	sched *scheduler.Scheduler,
	game config.GameConfig,
	logger *zap.Logger,
) *MapHandler {
	return &MapHandler{store: store, rooms: rooms, audit: auditSvc, sched: sched, game: game, logger: logger}
}

type mapView struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Size      int                `json:"size"`
	Seed      uint64             `json:"seed"`
	Version   int                `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Rows      []string           `json:"rows,omitempty"`
	Costs     map[string]float64 `json:"costs,omitempty"`
}

func viewOf(rec *model.MapRecord, g *grid.Grid) mapView {
	v := mapView{
		ID:        rec.ID,
		Name:      rec.Name,
		Size:      rec.Size,
		Seed:      rec.Seed,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if g != nil {
		v.Rows = g.Rows()
		v.Costs = g.Costs().Named()
	}
	return v
}

// gridBody describes a grid either literally (Rows) or by generator
// parameters (Size, Seed).
type gridBody struct {
	Size  int                `json:"size"`
	Seed  *uint64            `json:"seed"`
	Rows  []string           `json:"rows"`
	Costs map[string]float64 `json:"costs"`
}

func (h *MapHandler) buildGrid(b gridBody) (*grid.Grid, uint64, error) {
	costs := grid.DefaultCosts()
	if len(b.Costs) > 0 {
		parsed, err := grid.ParseCosts(b.Costs)
		if err != nil {
			return nil, 0, err
		}
		costs = parsed
	}
	if len(b.Rows) > 0 {
		if len(b.Rows) > h.game.MaxMapSize {
			return nil, 0, errMapTooLarge
		}
		g, err := grid.Parse(b.Rows, costs)
		return g, 0, err
	}

	size := b.Size
	if size == 0 {
		size = h.game.DefaultMapSize
	}
	if size > h.game.MaxMapSize {
		return nil, 0, errMapTooLarge
	}
	seed := h.game.MapSeed
	if b.Seed != nil {
		seed = *b.Seed
	} else if seed == 0 {
		seed = rand.Uint64()
	}
	g, err := grid.Generate(size, seed, costs)
	return g, seed, err
}

type createMapRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
	gridBody
}

// Create handles POST /api/maps.
func (h *MapHandler) Create(c *gin.Context) {
	start := time.Now()
	var req createMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, seed, err := h.buildGrid(req.gridBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.store.Save(c.Request.Context(), req.Name, g, seed)
	if err != nil {
		h.logger.Error("save map failed", zap.String("name", req.Name), zap.Error(err))
		writeError(c, err)
		return
	}
	if _, err := h.rooms.wm.GetOrCreate(rec.ID, g); err != nil {
		h.logger.Error("start map room failed", zap.String("map_id", rec.ID), zap.Error(err))
		writeError(c, err)
		return
	}
	view := viewOf(rec, nil)
	h.audit.Log(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Action:     audit.ActionMapCreate,
		MapID:      rec.ID,
		Request:    gin.H{"name": req.Name, "size": g.Size(), "seed": seed, "literal": len(req.Rows) > 0},
		Response:   view,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	})
	c.JSON(http.StatusCreated, gin.H{"map": view})
}

// List handles GET /api/maps.
func (h *MapHandler) List(c *gin.Context) {
	recs, err := h.store.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	maps := make([]mapView, 0, len(recs))
	for i := range recs {
		maps = append(maps, viewOf(&recs[i], nil))
	}
	c.JSON(http.StatusOK, gin.H{"maps": maps})
}

// Detail handles GET /api/maps/:id.
func (h *MapHandler) Detail(c *gin.Context) {
	g, rec, err := h.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"map": viewOf(rec, g)})
}

type rebindRequest struct {
	gridBody
	DelayMs int `json:"delay_ms" binding:"min=0"`
}

// Rebind handles POST /api/maps/:id/rebind. The map's tiles are replaced and
// its room rebinds, withdrawing every outstanding request. With delay_ms the
// swap is scheduled instead and the call returns 202.
func (h *MapHandler) Rebind(c *gin.Context) {
	mapID := c.Param("id")
	var req rebindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delay := time.Duration(req.DelayMs) * time.Millisecond
	if delay > maxRebindDelay {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delay_ms too large"})
		return
	}
	if _, _, err := h.store.Load(c.Request.Context(), mapID); err != nil {
		writeError(c, err)
		return
	}
	g, _, err := h.buildGrid(req.gridBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := audit.Entry{
		TraceID: mw.GetTraceID(c),
		Action:  audit.ActionMapBind,
		MapID:   mapID,
		Request: gin.H{"size": g.Size(), "delay_ms": req.DelayMs},
		IP:      c.ClientIP(),
	}
	if delay > 0 {
		h.sched.AddDelay("rebind:"+mapID, delay, func() {
			if _, err := h.rebind(context.Background(), mapID, g, entry); err != nil {
				h.logger.Error("scheduled rebind failed", zap.String("map_id", mapID), zap.Error(err))
			}
		})
		c.JSON(http.StatusAccepted, gin.H{"scheduled": true, "delay_ms": req.DelayMs})
		return
	}
	rec, err := h.rebind(c.Request.Context(), mapID, g, entry)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"map": viewOf(rec, nil)})
}

func (h *MapHandler) rebind(ctx context.Context, mapID string, g *grid.Grid, entry audit.Entry) (*model.MapRecord, error) {
	start := time.Now()
	rec, err := h.store.Replace(ctx, mapID, g)
	if err == nil {
		// A room that is not running picks the new tiles up when it next starts.
		if room := h.rooms.Active(mapID); room != nil {
			err = room.Bind(g)
		}
	}
	entry.DurationMs = int(time.Since(start).Milliseconds())
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Response = gin.H{"version": rec.Version}
	}
	h.audit.Log(entry)
	if err != nil {
		return nil, err
	}
	h.logger.Info("map rebound", zap.String("map_id", mapID), zap.Int("version", rec.Version))
	return rec, nil
}

// Status handles GET /api/maps/:id/status.
func (h *MapHandler) Status(c *gin.Context) {
	mapID := c.Param("id")
	if room := h.rooms.Active(mapID); room != nil {
		c.JSON(http.StatusOK, room.Status())
		return
	}
	_, rec, err := h.store.Load(c.Request.Context(), mapID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, world.RoomStatus{MapID: rec.ID, State: "stopped", Size: rec.Size})
}
