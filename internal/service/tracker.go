// Package service 负责组装跟踪服务的全部组件
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"wisefido-bluetrace/internal/aggregator"
	"wisefido-bluetrace/internal/config"
	"wisefido-bluetrace/internal/consumer"
	"wisefido-bluetrace/internal/database"
	httpapi "wisefido-bluetrace/internal/http"
	"wisefido-bluetrace/internal/mqtt"
	"wisefido-bluetrace/internal/redisutil"
	"wisefido-bluetrace/internal/repository"
	"wisefido-bluetrace/internal/resolver"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TrackerService 蓝牙设备跟踪服务
// 组件：MQTT 消费者（扫描源 → Stream）、Stream 消费者（聚合入库）、HTTP 查询层
type TrackerService struct {
	config         *config.Config
	logger         *zap.Logger
	db             *sql.DB
	redis          *redis.Client
	mqttClient     *mqtt.Client
	mqttConsumer   *consumer.MQTTConsumer
	streamConsumer *consumer.StreamConsumer
	server         *Server
}

// NewTrackerService 创建跟踪服务
func NewTrackerService(cfg *config.Config, logger *zap.Logger) (*TrackerService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis
	redisClient := redisutil.NewRedisClient(&cfg.Redis)
	if err := redisutil.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 创建Repository
	devicesRepo := repository.NewPostgresDevicesRepo(db, logger)
	sightingsRepo := repository.NewPostgresSightingsRepo(db, logger)
	ouiRepo := repository.NewPostgresOUIRepo(db)
	groupsRepo := repository.NewPostgresGroupsRepo(db)

	// 身份解析：本地 OUI 表 + 可选远程查询
	var remote resolver.Remote
	if cfg.Tracker.RemoteLookupEnabled {
		remote = resolver.NewRemoteClient(
			cfg.Tracker.RemoteLookupBaseURL,
			cfg.Tracker.RemoteLookupTimeout,
			cfg.Tracker.RemoteLookupInterval,
			logger,
		)
	}
	res := resolver.NewResolver(ouiRepo, remote, logger)

	// 聚合器
	kv := aggregator.NewRedisKVStore(redisClient)
	randomized := aggregator.NewRandomizedCounter(kv, cfg.Tracker.RandomizedKeyPrefix, cfg.Tracker.RandomizedTTL)
	agg := aggregator.NewAggregator(devicesRepo, sightingsRepo, res, randomized, logger)

	// 消费管道
	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, logger)
	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, agg, logger)

	// HTTP 查询层
	router := httpapi.NewRouter(logger)
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(devicesRepo, sightingsRepo, cfg.Pattern, logger))
	router.RegisterGroupRoutes(httpapi.NewGroupHandler(groupsRepo, logger))
	router.RegisterStatsRoutes(httpapi.NewStatsHandler(devicesRepo, randomized, kv, streamConsumer.Metrics(), logger))
	router.RegisterOUIRoutes(httpapi.NewOUIHandler(ouiRepo, logger))
	router.RegisterHealthRoute()

	server := NewServer(cfg.HTTP.Addr, router, logger)

	return &TrackerService{
		config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		mqttClient:     mqttClient,
		mqttConsumer:   mqttConsumer,
		streamConsumer: streamConsumer,
		server:         server,
	}, nil
}

// Start 启动服务（阻塞直到 ctx 取消或组件失败）
func (s *TrackerService) Start(ctx context.Context) error {
	s.logger.Info("Starting tracker service components")

	errCh := make(chan error, 3)

	go func() {
		if err := s.mqttConsumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("mqtt consumer: %w", err)
		}
	}()

	go func() {
		if err := s.streamConsumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("stream consumer: %w", err)
		}
	}()

	go func() {
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	s.logger.Info("Tracker service started successfully",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("adv_topic", s.config.Tracker.AdvTopic),
		zap.String("stream", s.config.Tracker.Stream.Adv),
	)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop 停止服务
func (s *TrackerService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping tracker service")

	if s.server != nil {
		if err := s.server.Stop(ctx); err != nil {
			s.logger.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redis != nil {
		if err := redisutil.Close(s.redis); err != nil {
			s.logger.Error("Error closing redis", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database", zap.Error(err))
		}
	}

	s.logger.Info("Tracker service stopped")
	return nil
}
