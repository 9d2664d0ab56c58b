// Package kafka 提供了向 Kafka 发布线索事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"site-assistant-go/internal/config"
	"site-assistant-go/pkg/log"
	"strings"

	"github.com/segmentio/kafka-go"
)

// messageWriter 抽象出 kafka.Writer 的写入方法，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 将事件以 JSON 形式写入指定主题。
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer 初始化 Kafka 生产者。brokers 支持逗号分隔的多个地址。
func NewProducer(cfg config.KafkaConfig) *Producer {
	var brokers []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.Topic)
	return &Producer{writer: writer, topic: cfg.Topic}
}

// Publish 以 key 作为分区键发送一条 JSON 事件。
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close 刷新并关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}
