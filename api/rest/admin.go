package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gridpath/game/world"
	"github.com/kasuganosora/gridpath/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	wm     *world.WorldManager
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(wm *world.WorldManager, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{wm: wm, sched: sched, logger: logger}
}

// Metrics returns a summary of the running rooms.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_rooms":    h.wm.ActiveRoomCount(),
		"rooms":           h.wm.Statuses(),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// StopRoom stops a map's room, withdrawing its outstanding requests.
// The room restarts on the next request for the map.
// POST /api/admin/rooms/:id/stop
func (h *AdminHandler) StopRoom(c *gin.Context) {
	mapID := c.Param("id")
	if !h.wm.Destroy(mapID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not active"})
		return
	}
	h.logger.Info("admin stopped room", zap.String("map_id", mapID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListSchedulerTasks returns every registered task with its run counters.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// If adminKey is empty all admin endpoints answer 503.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
