package kafka

import (
	"errors"

	"PShop/logger"
	"PShop/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EnsureTopics 会：
// 1) 不存在就按 cfg 创建；
// 2) 已存在且分区数 < 期望值时扩分区（Kafka 只能增加分区）。
func EnsureTopics(admin sarama.ClusterAdmin, topics []string, cfg Config) error {
	for _, t := range topics {
		descs, err := admin.DescribeTopics([]string{t})
		if err != nil {
			return errs.WrapMsg(err, "describe topic", "topic", t)
		}
		exists := len(descs) == 1 && errors.Is(descs[0].Err, sarama.ErrNoError)

		if !exists {
			if err := admin.CreateTopic(t, topicDetail(cfg), false); err != nil {
				if isTopicExists(err) {
					logger.Info("[Topic] exists (race)", zap.String("topic", t))
					continue
				}
				return errs.WrapMsg(err, "create topic", "topic", t)
			}
			logger.Info("[Topic] created", zap.String("topic", t),
				zap.Int32("partitions", cfg.PartitionsPerTopic), zap.Int16("rf", cfg.ReplicationFactor))
			continue
		}

		cur := int32(len(descs[0].Partitions))
		if cfg.PartitionsPerTopic > cur {
			if err := admin.CreatePartitions(t, cfg.PartitionsPerTopic, nil, false); err != nil {
				return errs.WrapMsg(err, "expand partitions", "topic", t, "from", cur, "to", cfg.PartitionsPerTopic)
			}
			logger.Info("[Topic] partitions expanded", zap.String("topic", t), zap.Int32("from", cur), zap.Int32("to", cfg.PartitionsPerTopic))
		}
	}
	return nil
}

func topicDetail(cfg Config) *sarama.TopicDetail {
	minISR := "1"
	if cfg.ReplicationFactor >= 3 {
		minISR = "2"
	}
	return &sarama.TopicDetail{
		NumPartitions:     cfg.PartitionsPerTopic,
		ReplicationFactor: cfg.ReplicationFactor,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"min.insync.replicas":            strPtr(minISR),
			"unclean.leader.election.enable": strPtr("false"),
			"compression.type":               strPtr("producer"),
		},
	}
}

func isTopicExists(err error) bool {
	var te *sarama.TopicError
	if errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists {
		return true
	}
	return errors.Is(err, sarama.ErrTopicAlreadyExists)
}

func strPtr(s string) *string { return &s }
