package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apirest "github.com/kasuganosora/gridpath/api/rest"
	"github.com/kasuganosora/gridpath/api/sse"
	apows "github.com/kasuganosora/gridpath/api/ws"
	"github.com/kasuganosora/gridpath/audit"
	"github.com/kasuganosora/gridpath/cache"
	"github.com/kasuganosora/gridpath/config"
	"github.com/kasuganosora/gridpath/game/mapstore"
	"github.com/kasuganosora/gridpath/game/world"
	"github.com/kasuganosora/gridpath/metrics"
	mw "github.com/kasuganosora/gridpath/middleware"
	"github.com/kasuganosora/gridpath/scheduler"
	"github.com/kasuganosora/gridpath/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const adminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	WM     *world.WorldManager
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go. A zero roomCfg ticks fast.
func NewTestServer(t *testing.T, roomCfg world.RoomConfig) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	game := config.Default().Game

	auditSvc := audit.New(db, logger)
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	// ---- Rooms ----
	if roomCfg.TickInterval == 0 {
		roomCfg.TickInterval = time.Millisecond
	}
	if roomCfg.GameTickInterval == 0 {
		roomCfg.GameTickInterval = 5 * time.Millisecond
	}
	pub := world.NewPublisher(c, pubsub, time.Minute, logger)
	wm := world.NewWorldManager(roomCfg, pub, met, logger)
	store := mapstore.New(db, logger)
	rooms := apirest.NewRooms(store, wm)
	sched := scheduler.New(logger)

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	apows.NewPathHandlers(rooms, pubsub, logger).RegisterHandlers(wsRouter)
	wsH := apows.NewHandler(sec, wsRouter, logger)

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "active_rooms": wm.ActiveRoomCount()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	mapH := apirest.NewMapHandler(store, rooms, auditSvc, sched, game, logger)
	pathH := apirest.NewPathHandler(rooms, c, auditSvc, met, logger)
	agentH := apirest.NewAgentHandler(rooms, logger)
	adminH := apirest.NewAdminHandler(wm, sched, logger)

	api := r.Group("/api")
	{
		mapsG := api.Group("/maps")
		mapsG.POST("", mapH.Create)
		mapsG.GET("", mapH.List)
		mapsG.GET("/:id", mapH.Detail)
		mapsG.POST("/:id/rebind", mapH.Rebind)
		mapsG.GET("/:id/status", mapH.Status)
		mapsG.POST("/:id/paths", pathH.Submit)
		mapsG.GET("/:id/recent", pathH.Recent)
		mapsG.POST("/:id/agents", agentH.Spawn)
		mapsG.GET("/:id/agents", agentH.List)
		mapsG.GET("/:id/agents/:agent", agentH.Detail)
		mapsG.POST("/:id/agents/:agent/move", agentH.Move)
		mapsG.DELETE("/:id/agents/:agent", agentH.Remove)

		api.GET("/requests/:id", pathH.RequestStatus)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(adminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/rooms/:id/stop", adminH.StopRoom)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	r.GET("/ws", wsH.ServeWS)
	r.GET("/sse", sse.NewHandler(pubsub, logger).ServeSSE)

	server := httptest.NewServer(r)
	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		WM:     wm,
		Sched:  sched,
		Server: server,
		URL:    server.URL,
		WSURL:  "ws" + server.URL[len("http"):] + "/ws",
	}
	t.Cleanup(func() {
		wsH.CloseAll()
		server.Close()
		sched.Stop()
		wm.StopAll()
		pub.Stop()
		auditSvc.Stop(context.Background())
	})
	return ts
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body and decodes a JSON reply into out.
func (ts *TestServer) Do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Admin-Key", adminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

// CreateMap posts a literal map and returns its ID.
func (ts *TestServer) CreateMap(t *testing.T, rows ...string) string {
	t.Helper()
	var resp struct {
		Map struct {
			ID string `json:"id"`
		} `json:"map"`
	}
	code := ts.Do(t, http.MethodPost, "/api/maps", map[string]any{"name": t.Name(), "rows": rows}, &resp)
	require.Equal(t, http.StatusCreated, code)
	return resp.Map.ID
}

// Submit posts a path request and returns its request ID.
func (ts *TestServer) Submit(t *testing.T, mapID string, body map[string]any) string {
	t.Helper()
	var resp struct {
		RequestID string `json:"request_id"`
	}
	code := ts.Do(t, http.MethodPost, "/api/maps/"+mapID+"/paths", body, &resp)
	require.Equal(t, http.StatusAccepted, code)
	return resp.RequestID
}

// AwaitStatus polls the status mailbox until requestID reaches want.
func (ts *TestServer) AwaitStatus(t *testing.T, requestID, want string) world.RequestStatus {
	t.Helper()
	var st world.RequestStatus
	require.Eventually(t, func() bool {
		st = world.RequestStatus{}
		code := ts.Do(t, http.MethodGet, "/api/requests/"+requestID, nil, &st)
		return code == http.StatusOK && st.Status == want
	}, 3*time.Second, 5*time.Millisecond, "request %s never reached %s (last %q)", requestID, want, st.Status)
	return st
}

// --- WebSocket helpers ---

// WSClient is a test WebSocket connection.
type WSClient struct {
	Conn *websocket.Conn
}

// DialWS connects to the server's WebSocket endpoint.
func (ts *TestServer) DialWS(t *testing.T) *WSClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.WSURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &WSClient{Conn: conn}
}

// Send writes one packet.
func (c *WSClient) Send(t *testing.T, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, c.Conn.WriteJSON(apows.Packet{Type: msgType, Payload: raw}))
}

// Recv reads packets until one of msgType arrives and returns its payload.
func (c *WSClient) Recv(t *testing.T, msgType string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, c.Conn.SetReadDeadline(deadline))
		var pkt apows.Packet
		require.NoError(t, c.Conn.ReadJSON(&pkt), "waiting for %s", msgType)
		if pkt.Type == msgType {
			return pkt.Payload
		}
	}
}
