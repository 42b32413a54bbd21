package consumer

import (
	"context"

	"Symposium/internal/models"
	"Symposium/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// TaskConsumer 从 Kafka 的任务主题消费后台任务，供 worker 进程使用。
type TaskConsumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewTaskConsumer 创建一个新的 TaskConsumer。
func NewTaskConsumer(brokers []string, topic, groupID string, log *logger.Logger) *TaskConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &TaskConsumer{
		reader: reader,
		logger: log,
	}
}

// Start 启动消费循环，直到 ctx 被取消。handler 返回错误时只记录日志，
// 消息仍然提交，避免毒消息阻塞整个分区。
func (c *TaskConsumer) Start(ctx context.Context, handler func(kafka.Message) error) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping Kafka task consumer...")
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error fetching message from Kafka")
					}
					continue
				}

				if err := handler(msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
						"topic":     msg.Topic,
						"partition": msg.Partition,
						"offset":    msg.Offset,
					}).Error("Error handling Kafka message")
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit Kafka message")
				}
			}
		}
	}()
}

// Close 关闭底层的 Kafka reader。
func (c *TaskConsumer) Close() error {
	return c.reader.Close()
}
