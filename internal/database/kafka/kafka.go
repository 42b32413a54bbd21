package kafka

import (
	"fmt"
	"log"
	"sync"

	"Symposium/internal/config"

	"github.com/segmentio/kafka-go"
)

// Client 持有 Kafka 管理连接与配置的单例实例。
// 任务与结果主题的 writer/reader 由 task_service 按需创建。
type Client struct {
	Conn   *kafka.Conn // 用于管理的连接
	Config *config.KafkaConfig
}

var (
	client  *Client
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 Kafka 客户端实例。
// 首次调用时，它会连接到 Kafka 并确保任务主题与结果主题存在。
func GetClient(cfg *config.KafkaConfig) (*Client, error) {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("未配置 Kafka brokers")
			return
		}
		if cfg.TaskTopic == "" || cfg.ResultTopic == "" {
			initErr = fmt.Errorf("未配置 Kafka 任务/结果主题")
			return
		}

		// 1. 建立管理连接
		conn, err := kafka.Dial("tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("kafka 初始化连接失败: %w", err)
			return
		}

		// 2. 获取已存在的主题
		partitions, err := conn.ReadPartitions()
		if err != nil {
			initErr = fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
			conn.Close()
			return
		}
		existingTopics := make(map[string]struct{})
		for _, p := range partitions {
			existingTopics[p.Topic] = struct{}{}
		}

		// 3. 创建不存在的主题
		var topicsToCreate []kafka.TopicConfig
		for _, topicName := range []string{cfg.TaskTopic, cfg.ResultTopic} {
			if _, exists := existingTopics[topicName]; !exists {
				log.Printf("主题 '%s' 不存在，准备创建...", topicName)
				topicsToCreate = append(topicsToCreate, kafka.TopicConfig{
					Topic:             topicName,
					NumPartitions:     1,
					ReplicationFactor: 1,
				})
			}
		}

		if len(topicsToCreate) > 0 {
			if err := conn.CreateTopics(topicsToCreate...); err != nil {
				initErr = fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
				conn.Close()
				return
			}
		}

		log.Println("✅ 成功连接到 Kafka!")
		client = &Client{Conn: conn, Config: cfg}
	})

	return client, initErr
}

// Close 安全地关闭单例的 Kafka 管理连接。
func Close() error {
	if client != nil && client.Conn != nil {
		return client.Conn.Close()
	}
	return nil
}
