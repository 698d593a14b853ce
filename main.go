package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/gridpath/api/rest"
	"github.com/kasuganosora/gridpath/api/sse"
	apows "github.com/kasuganosora/gridpath/api/ws"
	"github.com/kasuganosora/gridpath/audit"
	"github.com/kasuganosora/gridpath/cache"
	"github.com/kasuganosora/gridpath/config"
	dbadapter "github.com/kasuganosora/gridpath/db"
	"github.com/kasuganosora/gridpath/game/mapstore"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"github.com/kasuganosora/gridpath/game/world"
	"github.com/kasuganosora/gridpath/metrics"
	mw "github.com/kasuganosora/gridpath/middleware"
	"github.com/kasuganosora/gridpath/model"
	"github.com/kasuganosora/gridpath/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Metrics ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	// ---- Rooms ----
	heuristic := pathfind.HeuristicConfig{
		Name:   cfg.Pathfinding.Heuristic,
		Weight: cfg.Pathfinding.Weight,
		Bias:   cfg.Pathfinding.CrossBias,
		Spread: cfg.Pathfinding.Jitter,
		Seed:   cfg.Pathfinding.Seed,
	}
	if _, err := pathfind.NewHeuristic(heuristic); err != nil {
		log.Fatalf("pathfinding: %v", err)
	}
	pub := world.NewPublisher(c, pubsub, cfg.Pathfinding.StatusTTL, logger)
	defer pub.Stop()
	wm := world.NewWorldManager(world.RoomConfig{
		TickInterval:     cfg.Pathfinding.TickInterval(),
		GameTickInterval: cfg.Game.TickInterval(),
		SliceBudget:      cfg.Pathfinding.SliceBudget,
		Heuristic:        heuristic,
	}, pub, met, logger)
	defer wm.StopAll()
	store := mapstore.New(db, logger)
	rooms := apirest.NewRooms(store, wm)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	limiter := mw.NewRateLimiter(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst)

	sched.AddTicker("room-stats", time.Minute, func() {
		for _, st := range wm.Statuses() {
			logger.Info("room stats",
				zap.String("map_id", st.MapID),
				zap.String("state", st.State),
				zap.Int("queue_depth", st.QueueDepth),
				zap.Int("agents", st.Agents),
				zap.Uint64("found", st.Stats.Found),
				zap.Uint64("exhausted", st.Stats.Exhausted),
				zap.Uint64("withdrawn", st.Stats.Withdrawn))
		}
	})
	if ttl := cfg.Game.RoomIdleTTL; ttl > 0 {
		sched.AddTicker("room-reaper", ttl/2, func() {
			if reaped := wm.ReapIdle(ttl, time.Now()); len(reaped) > 0 {
				logger.Info("idle rooms stopped", zap.Strings("map_ids", reaped))
			}
		})
	}
	sched.AddTicker("ratelimit-sweep", 5*time.Minute, func() {
		if n := limiter.Sweep(10 * time.Minute); n > 0 {
			logger.Debug("rate limiter entries swept", zap.Int("count", n))
		}
	})

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	apows.NewPathHandlers(rooms, pubsub, logger).RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(limiter.Handler())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "active_rooms": wm.ActiveRoomCount()})
	})
	r.GET("/metrics", mw.IPWhitelist(cfg.Security.AdminIPs),
		gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// ---- REST API routes ----
	mapH := apirest.NewMapHandler(store, rooms, auditSvc, sched, cfg.Game, logger)
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
		adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/rooms/:id/stop", adminH.StopRoom)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(cfg.Security, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	wsH.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}
