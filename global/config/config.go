package config

import (
	"context"
	"time"

	"PShop/data/database/mgo/mongoutil"
	"PShop/data/database/pg"
	"PShop/logger"
	"PShop/service/chat"
	"PShop/service/kafka"
	mgoSrv "PShop/service/mgo"
	"PShop/service/natsx"
	"PShop/service/storage"
	redis "PShop/service/storage/redis"
	"PShop/tools/errs"
	ids "PShop/tools/ids"
	jwtlib "PShop/tools/security"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var Global = Load()

func ConfigIds() {
	logger.Infof("配置id生成 node=%d", Global.SnowNode)
	ids.SetNodeID(Global.SnowNode)
}

func ConfigLog() {
	logger.SetLevel(Global.LogLevel)
}

func JwtOptions() jwtlib.Options {
	opts := jwtlib.DefaultOptions([]byte(Global.JwtSecret))
	opts.TTL = Global.JwtTTL
	return opts
}

// ConfigPostgres returns nil when no dsn is set.
func ConfigPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	if Global.PgDSN == "" {
		logger.Warn("[config] PSHOP_PG_DSN empty, using in-memory stores")
		return nil, nil
	}
	pool, err := pg.NewPool(ctx, pg.Config{DSN: Global.PgDSN})
	if err != nil {
		return nil, err
	}
	if err := pg.Bootstrap(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ConfigRedis returns nil when redis is not configured or down.
func ConfigRedis() *storage.PresenceStore {
	if Global.RedisAddr == "" {
		return nil
	}
	c := redis.Config{Addr: Global.RedisAddr, Password: Global.RedisPassword, DB: Global.RedisDB}
	if err := redis.InitRedis(c); err != nil {
		logger.Warn("[config] redis unavailable, presence disabled", zap.Error(err))
		return nil
	}
	return storage.NewPresenceStore(redis.GetRedis(), storage.PresenceConfig{TTL: Global.PresenceTTL})
}

// ConfigMgo starts the manager in the background; writes before it is
// ready fail fast and are logged by the gateway.
func ConfigMgo(ctx context.Context) *mgoSrv.MongoManager {
	if Global.MongoURI == "" {
		return nil
	}
	cfg := &mongoutil.Config{
		Uri:         Global.MongoURI,
		Database:    Global.MongoDatabase,
		MaxPoolSize: 20,
		Username:    Global.MongoUser,
		Password:    Global.MongoPassword,
		MaxRetry:    3, // StartAsync 里自己做指数退避
	}
	mgoSrv.StartAsync(ctx, cfg)
	mgr := mgoSrv.Manager()

	go func() {
		if err := mgr.WaitReady(ctx); err != nil {
			return
		}
		ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := mgoSrv.NewConnAudit(mgr).EnsureIndexes(ictx, Global.AuditTTL); err != nil {
			logger.Warn("[config] conn_events indexes", zap.Error(err))
		}
	}()
	return mgr
}

// Bus is whichever event transport PSHOP_BUS selected.
type Bus struct {
	Kind      string
	Publisher chat.EventPublisher
	Nats      *natsx.NatsManager
	Kafka     *kafka.Bus
	KafkaConf kafka.Config
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	if b.Nats != nil {
		_ = b.Nats.Close()
	}
	if b.Kafka != nil {
		_ = b.Kafka.Close()
	}
}

const ChatStream = "PSHOP_CHAT"

// busKey keeps one gateway's events on one kafka partition.
func busKey(nodeID string) string { return "gw:" + nodeID }

func ConfigBus() (*Bus, error) {
	b := &Bus{Kind: Global.BusKind}
	switch Global.BusKind {
	case "", BusNone:
		b.Kind = BusNone
	case BusNats:
		m, err := natsx.NewNatsManager(natsx.NatsxConfig{
			Servers: Global.NatsServers,
			Name:    "pshop-" + Global.NodeId,
		}, natsx.NatsxLogMiddleware(500*time.Millisecond),
			natsx.NatsxIdemMiddleware(natsx.NewMemIdem(10*time.Minute), 0))
		if err != nil {
			return nil, err
		}
		b.Nats = m
		if Global.NatsJetStream {
			if err := m.EnsureStream(ChatStream, 7*24*time.Hour, chat.SubjectMessage); err != nil {
				_ = m.Close()
				return nil, err
			}
		}
		b.Publisher = natsx.NewEventBus(m, 2)
	case BusKafka:
		kc := kafka.DefaultConfig()
		kc.Brokers = Global.KafkaBrokers
		kc.ClientID = "pshop-" + Global.NodeId
		kb, err := kafka.NewBus(kc, busKey(Global.NodeId))
		if err != nil {
			return nil, err
		}
		if err := kb.EnsureTopics(chat.SubjectRoster, chat.SubjectMessage); err != nil {
			logger.Warn("[config] ensure kafka topics", zap.Error(err))
		}
		b.Kafka = kb
		b.KafkaConf = kc
		b.Publisher = kb
	default:
		return nil, errs.ErrArgs.WrapMsg("unknown PSHOP_BUS", "bus", Global.BusKind)
	}
	logger.Info("[config] event bus", zap.String("kind", b.Kind))
	return b, nil
}
