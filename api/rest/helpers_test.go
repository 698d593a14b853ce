package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gridpath/api/rest"
	"github.com/kasuganosora/gridpath/audit"
	"github.com/kasuganosora/gridpath/cache"
	"github.com/kasuganosora/gridpath/config"
	"github.com/kasuganosora/gridpath/game/mapstore"
	"github.com/kasuganosora/gridpath/game/world"
	"github.com/kasuganosora/gridpath/scheduler"
	"github.com/kasuganosora/gridpath/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type rejectLog struct {
	mu      sync.Mutex
	reasons []string
}

func (l *rejectLog) Rejected(reason string) {
	l.mu.Lock()
	l.reasons = append(l.reasons, reason)
	l.mu.Unlock()
}

func (l *rejectLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.reasons...)
}

type server struct {
	r       *gin.Engine
	wm      *world.WorldManager
	store   *mapstore.Store
	cache   cache.Cache
	sched   *scheduler.Scheduler
	rejects *rejectLog
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	pub := world.NewPublisher(c, ps, time.Minute, logger)
	t.Cleanup(pub.Stop)
	wm := world.NewWorldManager(world.RoomConfig{
		TickInterval:     time.Millisecond,
		GameTickInterval: 5 * time.Millisecond,
	}, pub, nil, logger)
	t.Cleanup(wm.StopAll)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	store := mapstore.New(db, logger)
	rooms := rest.NewRooms(store, wm)
	game := config.Default().Game
	game.MaxMapSize = 64
	rejects := &rejectLog{}

	mapH := rest.NewMapHandler(store, rooms, auditSvc, sched, game, logger)
	pathH := rest.NewPathHandler(rooms, c, auditSvc, rejects, logger)
	agentH := rest.NewAgentHandler(rooms, logger)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/maps", mapH.Create)
	api.GET("/maps", mapH.List)
	api.GET("/maps/:id", mapH.Detail)
	api.POST("/maps/:id/rebind", mapH.Rebind)
	api.GET("/maps/:id/status", mapH.Status)
	api.POST("/maps/:id/paths", pathH.Submit)
	api.GET("/maps/:id/recent", pathH.Recent)
	api.GET("/requests/:id", pathH.RequestStatus)
	api.POST("/maps/:id/agents", agentH.Spawn)
	api.GET("/maps/:id/agents", agentH.List)
	api.GET("/maps/:id/agents/:agent", agentH.Detail)
	api.POST("/maps/:id/agents/:agent/move", agentH.Move)
	api.DELETE("/maps/:id/agents/:agent", agentH.Remove)

	return &server{r: r, wm: wm, store: store, cache: c, sched: sched, rejects: rejects}
}

func (s *server) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

// createMap posts a literal map and returns its ID.
func (s *server) createMap(t *testing.T, rows ...string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": "test", "rows": rows})
	require.NoError(t, err)
	w := s.do(http.MethodPost, "/api/maps", string(body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Map struct {
			ID string `json:"id"`
		} `json:"map"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Map.ID)
	return resp.Map.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
