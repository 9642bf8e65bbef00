package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"PShop/global/config"
	"PShop/logger"
	"PShop/middleware"
	producthandler "PShop/module/product/handler"
	productservice "PShop/module/product/service"
	productstore "PShop/module/product/store"
	"PShop/module/seed"
	userhandler "PShop/module/user/handler"
	userservice "PShop/module/user/service"
	userstore "PShop/module/user/store"
	"PShop/service/chat"
	"PShop/service/chat/handlers"
	mgoSrv "PShop/service/mgo"
	redis "PShop/service/storage/redis"
	ids "PShop/tools/ids"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	defer logger.Sync()
	config.ConfigLog()
	config.ConfigIds()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ===== 存储 =====
	var (
		users    userstore.Repo    = userstore.NewMemStore()
		products productstore.Repo = productstore.NewMemStore()
	)
	pool, err := config.ConfigPostgres(ctx)
	if err != nil {
		logger.Error("[main] postgres", zap.Error(err))
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		users = userstore.NewPgStore(pool)
		products = productstore.NewPgStore(pool)
	}
	usvc := userservice.NewService(users, config.JwtOptions())
	psvc := productservice.NewService(products)

	// ===== 网关旁路：presence / 审计 / 事件 =====
	opts := chat.Options{RegisterTimeout: config.Global.RegisterTimeout}
	presence := config.ConfigRedis()
	if presence != nil {
		opts.Presence = presence
		opts.PresenceRefresh = config.Global.PresenceTTL / 3
		defer func() { _ = redis.CloseRedis() }()
	}
	mgr := config.ConfigMgo(ctx)
	if mgr != nil {
		opts.Audit = mgoSrv.NewConnAudit(mgr)
	}
	bus, err := config.ConfigBus()
	if err != nil {
		logger.Error("[main] event bus", zap.Error(err))
		os.Exit(1)
	}
	defer bus.Close()
	if bus.Publisher != nil {
		opts.Events = bus.Publisher
	}

	cluster := chat.NewClusterView()
	startConsumers(ctx, bus, mgr, cluster)

	// ===== 网关 =====
	connMgr := chat.NewConnManagerWithConf(chat.ManagerConf{
		SendQueue:    config.Global.SendQueue,
		PingInterval: config.Global.PingInterval,
	}, config.Global.NodeId, ids.GenerateString)
	srv := chat.NewServer(chat.NewRegistry(usvc), connMgr, usvc, opts)
	handlers.Register(srv)

	// ===== HTTP =====
	if config.Global.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.AccessLog())
	mm := middleware.NewManager()
	mm.Add(middleware.Origin(config.Global.AllowOrigins))
	r.Use(mm.Use())

	r.GET("/chat", srv.HandleWS)
	r.GET("/healthz", srv.Health)

	api := r.Group("/api")
	router := middleware.NewRouter(api, usvc)
	userhandler.NewAuthHandler(usvc).Mount(router)
	producthandler.NewProductHandler(psvc).Mount(router)
	seed.NewService(users, products, usvc).Mount(router)
	mountChatApi(router, cluster, mgr, presence)

	httpSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(config.Global.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("[main] listening", zap.String("addr", httpSrv.Addr), zap.String("node", config.Global.NodeId))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[main] http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[main] shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// 先断开 websocket，hijack 过的连接 http.Server.Shutdown 不管
	srv.Shutdown()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("[main] http shutdown", zap.Error(err))
	}
}
