package main

import (
	"context"
	"strconv"

	"PShop/global/config"
	"PShop/logger"
	"PShop/middleware"
	usermodel "PShop/module/user/model"
	"PShop/service/chat"
	"PShop/service/kafka"
	mgoSrv "PShop/service/mgo"
	"PShop/service/natsx"
	"PShop/service/storage"
	"PShop/tools/apiresp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// startConsumers feeds the cluster view from every gateway's roster events
// and, with mongo configured, archives chat lines once per cluster.
func startConsumers(ctx context.Context, bus *config.Bus, mgr *mgoSrv.MongoManager, cluster *chat.ClusterView) {
	var archive *mgoSrv.ChatArchive
	if mgr != nil {
		archive = mgoSrv.NewChatArchive(mgr)
	}

	switch {
	case bus.Nats != nil:
		// 广播：每个网关都要看到全部 roster
		if err := bus.Nats.RegisterRoute(natsx.NatsxRoute{Biz: chat.SubjectRoster, Subject: chat.SubjectRoster, Mode: natsx.Core}); err != nil {
			logger.Warn("[main] roster route", zap.Error(err))
			return
		}
		if err := bus.Nats.Subscribe(chat.SubjectRoster, func(_ context.Context, m natsx.NatsxMessage) error {
			return cluster.Apply(m.Data)
		}); err != nil {
			logger.Warn("[main] roster subscribe", zap.Error(err))
		}
		if archive == nil {
			return
		}
		// 队列组：一条消息只入库一次
		route := natsx.NatsxRoute{
			Biz:     chat.SubjectMessage,
			Subject: chat.SubjectMessage,
			Mode:    natsx.Core,
			Queue:   config.Global.ArchiveGroup,
		}
		if config.Global.NatsJetStream {
			route.Mode = natsx.JetStreamPush
			route.Durable = config.Global.ArchiveGroup
		}
		if err := bus.Nats.RegisterRoute(route); err != nil {
			logger.Warn("[main] message route", zap.Error(err))
			return
		}
		if err := bus.Nats.Subscribe(chat.SubjectMessage, func(ctx context.Context, m natsx.NatsxMessage) error {
			return archive.Save(ctx, m.Data)
		}); err != nil {
			logger.Warn("[main] message subscribe", zap.Error(err))
		}

	case bus.Kafka != nil:
		roster := kafka.NewRouter()
		roster.Handle(chat.SubjectRoster, func(_ context.Context, _ string, _, value []byte) error {
			return cluster.Apply(value)
		})
		go runGroup(ctx, bus.KafkaConf, config.Global.ArchiveGroup+"-roster-"+config.Global.NodeId, roster)

		if archive == nil {
			return
		}
		messages := kafka.NewRouter()
		messages.Handle(chat.SubjectMessage, func(ctx context.Context, _ string, _, value []byte) error {
			return archive.Save(ctx, value)
		})
		go runGroup(ctx, bus.KafkaConf, config.Global.ArchiveGroup, messages)
	}
}

func runGroup(ctx context.Context, cfg kafka.Config, group string, router *kafka.Router) {
	if err := kafka.RunConsumerGroup(ctx, cfg, group, router); err != nil {
		logger.Warn("[main] kafka consumer stopped", zap.String("group", group), zap.Error(err))
	}
}

func mountChatApi(r *middleware.Router, cluster *chat.ClusterView, mgr *mgoSrv.MongoManager, presence *storage.PresenceStore) {
	r.GET("/chat/cluster", cluster.Handle, middleware.RouteOpt{})
	if presence != nil {
		r.GET("/chat/presence/:userId", apiresp.Wrap(func(c *gin.Context) error {
			entries, err := presence.Lookup(c.Request.Context(), c.Param("userId"))
			if err != nil {
				return err
			}
			return apiresp.OK(c, gin.H{"online": len(entries) > 0, "devices": entries})
		}), middleware.RouteOpt{IsAuth: true})
	}
	if mgr == nil {
		return
	}
	archive := mgoSrv.NewChatArchive(mgr)
	audit := mgoSrv.NewConnAudit(mgr)

	r.GET("/chat/history", apiresp.Wrap(func(c *gin.Context) error {
		out, err := archive.Recent(c.Request.Context(), queryLimit(c))
		if err != nil {
			return err
		}
		return apiresp.OK(c, out)
	}), middleware.RouteOpt{IsAuth: true})

	r.GET("/chat/audit/:userId", apiresp.Wrap(func(c *gin.Context) error {
		out, err := audit.History(c.Request.Context(), c.Param("userId"), queryLimit(c))
		if err != nil {
			return err
		}
		return apiresp.OK(c, out)
	}), middleware.RouteOpt{IsAuth: true, Roles: []string{usermodel.RoleAdmin}})
}

func queryLimit(c *gin.Context) int64 {
	n, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || n <= 0 {
		return 50
	}
	return n
}

