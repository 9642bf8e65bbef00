package kafka

import (
	"strings"

	"github.com/Shopify/sarama"
)

// Config 生产/消费共用配置
type Config struct {
	Brokers               []string
	ClientID              string
	TopicPrefix           string // 事件 subject 前面加的前缀，例如 "pshop."
	PartitionsPerTopic    int32
	ReplicationFactor     int16
	ProducerRetries       int
	ProducerCompression   string // none/snappy/lz4/zstd
	ConsumerInitialOffset string // newest/oldest
	KafkaVersion          sarama.KafkaVersion
	AutoCreateTopics      bool
}

// DefaultConfig 单机默认值
func DefaultConfig() Config {
	return Config{
		Brokers:               []string{"127.0.0.1:9092"},
		ClientID:              "pshop",
		TopicPrefix:           "pshop.",
		PartitionsPerTopic:    8,
		ReplicationFactor:     1,
		ProducerRetries:       5,
		ProducerCompression:   "snappy",
		ConsumerInitialOffset: "newest",
		KafkaVersion:          sarama.V2_1_0_0,
		AutoCreateTopics:      true,
	}
}

// TopicFor maps an event subject onto its kafka topic.
func (c Config) TopicFor(subject string) string {
	return c.TopicPrefix + subject
}

// SubjectOf is the inverse of TopicFor.
func (c Config) SubjectOf(topic string) string {
	return strings.TrimPrefix(topic, c.TopicPrefix)
}
