package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-bluetrace/internal/address"
	"wisefido-bluetrace/internal/config"
	"wisefido-bluetrace/internal/models"
	"wisefido-bluetrace/internal/redisutil"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ingester 聚合入库接口（由 aggregator 实现）
type Ingester interface {
	Ingest(ctx context.Context, event *models.AdvertisementEvent) error
}

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功处理的消息数
	MessagesFailed    int64 // 处理失败的消息数

	// 错误分类统计
	ErrorsParse   int64 // 解析错误
	ErrorsAddress int64 // 地址格式错误
	ErrorsStorage int64 // 存储失败

	// 性能指标
	TotalProcessingTime time.Duration // 总处理时间
	LastProcessTime     time.Time     // 最后处理时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:   m.MessagesProcessed,
		MessagesSucceeded:   m.MessagesSucceeded,
		MessagesFailed:      m.MessagesFailed,
		ErrorsParse:         m.ErrorsParse,
		ErrorsAddress:       m.ErrorsAddress,
		ErrorsStorage:       m.ErrorsStorage,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "address":
		m.ErrorsAddress++
	case "storage":
		m.ErrorsStorage++
	}
}

// StreamConsumer Redis Streams 消费者
// 单条消息失败只丢弃该条并确认，不阻塞后续消息
type StreamConsumer struct {
	config       *config.Config
	redisClient  *redis.Client
	ingester     Ingester
	logger       *zap.Logger
	metrics      *Metrics
	consumerName string
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	ingester Ingester,
	logger *zap.Logger,
) *StreamConsumer {
	name := cfg.Tracker.ConsumerName
	if name == "" {
		name = "bluetrace-" + uuid.New().String()[:8]
	}
	return &StreamConsumer{
		config:       cfg,
		redisClient:  redisClient,
		ingester:     ingester,
		logger:       logger,
		consumerName: name,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Metrics 暴露指标（供 HTTP 层查询）
func (c *StreamConsumer) Metrics() *Metrics {
	return c.metrics
}

// Start 启动消费者
func (c *StreamConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	stream := c.config.Tracker.Stream.Adv
	if err := redisutil.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Tracker.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", c.config.Tracker.ConsumerGroup),
		zap.String("consumer_name", c.consumerName),
		zap.String("stream", stream),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	// 启动消费循环
	backoffDuration := time.Second // 初始退避时间
	maxBackoff := 30 * time.Second // 最大退避时间

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避：等待后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 消费单个 Stream
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := redisutil.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Tracker.ConsumerGroup,
		c.consumerName,
		c.config.Tracker.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		}

		// 成功与失败都确认：失败的事件按丢弃处理，不无限重投
		if err := redisutil.AckMessage(ctx, c.redisClient, stream, c.config.Tracker.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条消息
func (c *StreamConsumer) processMessage(ctx context.Context, msg redisutil.StreamMessage) error {
	startTime := time.Now()

	// 解析消息数据
	var dataStr string
	if val, ok := msg.Values["data"]; ok {
		if str, ok := val.(string); ok {
			dataStr = str
		} else {
			c.metrics.IncrementFailed("parse")
			return fmt.Errorf("invalid data format in message")
		}
	} else {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing data field in message")
	}

	var event models.AdvertisementEvent
	if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("failed to unmarshal message data: %w", err)
	}

	if err := c.ingester.Ingest(ctx, &event); err != nil {
		if isAddressError(err) {
			c.metrics.IncrementFailed("address")
		} else {
			c.metrics.IncrementFailed("storage")
		}
		return fmt.Errorf("failed to ingest event: %w", err)
	}

	c.metrics.IncrementSucceeded(time.Since(startTime))
	return nil
}

func isAddressError(err error) bool {
	return errors.Is(err, address.ErrInvalidAddress)
}

// reportMetrics 定期报告指标（每60秒）
func (c *StreamConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			uptime := time.Since(snapshot.StartTime)

			var avgProcessingTime time.Duration
			if snapshot.MessagesSucceeded > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.MessagesSucceeded)
			}

			successRate := float64(0)
			if snapshot.MessagesProcessed > 0 {
				successRate = float64(snapshot.MessagesSucceeded) / float64(snapshot.MessagesProcessed) * 100
			}

			c.logger.Info("Metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Float64("success_rate", successRate),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_address", snapshot.ErrorsAddress),
				zap.Int64("errors_storage", snapshot.ErrorsStorage),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", uptime),
			)
		}
	}
}
