package config

import (
	"time"

	"PShop/tools"
)

const (
	BusNone  = "none"
	BusNats  = "nats"
	BusKafka = "kafka"
)

type AppConfig struct {
	NodeId       string   // 网关节点 ID，进 presence 与事件
	SnowNode     int64    // 连接 ID 的 snowflake 节点号
	Port         int      // http 启动端口
	LogLevel     string   // debug/info/warn/error
	AllowOrigins []string // 空或 "*" 表示全部

	JwtSecret string
	JwtTTL    time.Duration

	PgDSN string // 为空时用内存存储

	RedisAddr     string // 为空时不写 presence
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	MongoURI      string // 为空时不写审计
	MongoDatabase string
	MongoUser     string
	MongoPassword string
	AuditTTL      time.Duration

	BusKind       string // none|nats|kafka
	NatsServers   []string
	NatsJetStream bool // chat.message 走 JetStream，入库可重放
	KafkaBrokers  []string
	ArchiveGroup  string // 消费 chat.message 入库的消费组

	SendQueue       int
	PingInterval    time.Duration
	RegisterTimeout time.Duration
}

// Load reads PSHOP_* variables over local defaults.
func Load() AppConfig {
	return AppConfig{
		NodeId:       tools.GetEnv("PSHOP_NODE_ID", "gateway_01"),
		SnowNode:     int64(tools.GetEnvInt("PSHOP_SNOW_NODE", 100)),
		Port:         tools.GetEnvInt("PSHOP_PORT", 8080),
		LogLevel:     tools.GetEnv("PSHOP_LOG_LEVEL", "info"),
		AllowOrigins: tools.GetEnvList("PSHOP_ALLOW_ORIGINS", nil),

		JwtSecret: tools.GetEnv("PSHOP_JWT_SECRET", "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="),
		JwtTTL:    tools.GetEnvDuration("PSHOP_JWT_TTL", 2*time.Hour),

		PgDSN: tools.GetEnv("PSHOP_PG_DSN", ""),

		RedisAddr:     tools.GetEnv("PSHOP_REDIS_ADDR", ""),
		RedisPassword: tools.GetEnv("PSHOP_REDIS_PASSWORD", ""),
		RedisDB:       tools.GetEnvInt("PSHOP_REDIS_DB", 0),
		PresenceTTL:   tools.GetEnvDuration("PSHOP_PRESENCE_TTL", 24*time.Hour),

		MongoURI:      tools.GetEnv("PSHOP_MONGO_URI", ""),
		MongoDatabase: tools.GetEnv("PSHOP_MONGO_DB", "pshop"),
		MongoUser:     tools.GetEnv("PSHOP_MONGO_USER", ""),
		MongoPassword: tools.GetEnv("PSHOP_MONGO_PASSWORD", ""),
		AuditTTL:      tools.GetEnvDuration("PSHOP_AUDIT_TTL", 30*24*time.Hour),

		BusKind:       tools.GetEnv("PSHOP_BUS", BusNone),
		NatsServers:   tools.GetEnvList("PSHOP_NATS_SERVERS", []string{"nats://127.0.0.1:4222"}),
		NatsJetStream: tools.GetEnvBool("PSHOP_NATS_JETSTREAM", false),
		KafkaBrokers:  tools.GetEnvList("PSHOP_KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
		ArchiveGroup:  tools.GetEnv("PSHOP_ARCHIVE_GROUP", "pshop-chat-archive"),

		SendQueue:       tools.GetEnvInt("PSHOP_SEND_QUEUE", 256),
		PingInterval:    tools.GetEnvDuration("PSHOP_PING_INTERVAL", 54*time.Second),
		RegisterTimeout: tools.GetEnvDuration("PSHOP_REGISTER_TIMEOUT", 5*time.Second),
	}
}
