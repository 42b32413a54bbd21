package publisher

import (
	"context"
	"encoding/json"

	"Symposium/internal/models"
	"Symposium/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// TaskPublisher 把后台任务投递到 Kafka 的任务主题。
type TaskPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewTaskPublisher 创建一个新的 TaskPublisher。
func NewTaskPublisher(brokers []string, topic string, log *logger.Logger) *TaskPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &TaskPublisher{
		writer: writer,
		logger: log,
	}
}

// Publish 把一条任务消息写入 Kafka 主题，key 为任务 ID 以保证同任务顺序。
func (p *TaskPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to marshal task for Kafka")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"topic": p.writer.Topic}).Error("Failed to write message to Kafka")
		return err
	}
	return nil
}

// Close 关闭底层的 Kafka writer。
func (p *TaskPublisher) Close() error {
	return p.writer.Close()
}
