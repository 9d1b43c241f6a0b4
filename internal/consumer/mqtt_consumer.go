// Package consumer 实现广播事件的消费管道
//
// 两级解耦：MQTT 消费者只做解析和转发（入 Redis Streams），
// Stream 消费者做真正的聚合入库。扫描源突发流量由 Stream 缓冲吸收
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wisefido-bluetrace/internal/config"
	"wisefido-bluetrace/internal/models"
	"wisefido-bluetrace/internal/redisutil"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-bluetrace/internal/mqtt"
)

// scanPayload 扫描器单条上报消息
// 兼容两种形式：单条广播对象，或 {"advertisements": [...]} 批量
type scanPayload struct {
	MAC          string   `json:"mac"`
	Name         string   `json:"name"`
	RSSI         int      `json:"rssi"`
	ServiceUUIDs []string `json:"service_uuids"`
	SeenAt       int64    `json:"seen_at"` // Unix 秒，0 表示用接收时间

	Advertisements []scanPayload `json:"advertisements"`
}

// MQTTConsumer MQTT消息消费者
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqtt.Client
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	// 订阅广播上报主题
	if err := c.mqttClient.Subscribe(c.config.Tracker.AdvTopic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to adv topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.Tracker.AdvTopic),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Tracker.AdvTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 主题格式: bluetrace/{scanner_id}/adv
	scannerID, err := ScannerIDFromTopic(topic)
	if err != nil {
		return err
	}

	var msg scanPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("Failed to unmarshal MQTT message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	batch := msg.Advertisements
	if batch == nil {
		batch = []scanPayload{msg}
	}
	batchID := uuid.New().String()
	now := time.Now()

	published := 0
	for _, adv := range batch {
		if adv.MAC == "" {
			continue
		}
		seenAt := now
		if adv.SeenAt > 0 {
			seenAt = time.Unix(adv.SeenAt, 0)
		}
		event := &models.AdvertisementEvent{
			MAC:          adv.MAC,
			Name:         adv.Name,
			RSSI:         adv.RSSI,
			ServiceUUIDs: adv.ServiceUUIDs,
			SeenAt:       seenAt,
			ScannerID:    scannerID,
			BatchID:      batchID,
		}

		if _, err := redisutil.PublishJSONToStream(context.Background(), c.redisClient, c.config.Tracker.Stream.Adv, event); err != nil {
			c.logger.Error("Failed to publish to Redis Streams",
				zap.String("stream", c.config.Tracker.Stream.Adv),
				zap.Error(err),
			)
			return fmt.Errorf("failed to publish to stream: %w", err)
		}
		published++
	}

	c.logger.Debug("Published advertisements to Redis Streams",
		zap.String("scanner_id", scannerID),
		zap.String("batch_id", batchID),
		zap.Int("count", published),
	)

	return nil
}

// ScannerIDFromTopic 从主题中提取扫描器标识
// 主题格式: bluetrace/{scanner_id}/adv
func ScannerIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "bluetrace" || parts[2] != "adv" || parts[1] == "" {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[1], nil
}
