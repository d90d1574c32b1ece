package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-guardian/internal/audit"
	"wisefido-guardian/internal/cache"
	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/consumer"
	"wisefido-guardian/internal/database"
	"wisefido-guardian/internal/dispatch"
	"wisefido-guardian/internal/engine"
	"wisefido-guardian/internal/mqtt"
	"wisefido-guardian/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// GuardianService 报警决策服务（整合各层）
type GuardianService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	guardian        *Guardian
	sink            dispatch.Sink
	readingConsumer *consumer.StreamConsumer
	eventConsumer   *consumer.StreamConsumer
	mqttConsumer    *consumer.MQTTEventConsumer
	opsServer       *http.Server
}

// NewGuardianService 创建服务
func NewGuardianService(cfg *config.Config, logger *zap.Logger) (*GuardianService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. Repository 层
	alertRepo := repository.NewAlertRepository(db, logger)
	baselineRepo := repository.NewBaselineRepository(db, logger)
	circleRepo := repository.NewCareCircleRepository(db, logger)
	prefRepo := repository.NewPreferenceRepository(db, logger)

	// 4. 读穿缓存
	kv := cache.NewRedisKVStore(redisClient)
	circleCache := cache.NewCareCircleCache(circleRepo, kv,
		cfg.Guardian.Cache.KeyPrefix, cfg.Guardian.Cache.LinkTTL, logger)
	prefCache := cache.NewPreferenceCache(prefRepo, kv,
		cfg.Guardian.Cache.KeyPrefix, cfg.Guardian.Cache.PreferenceTTL, logger)

	// 5. 分发与审计
	sink, err := dispatch.New(cfg, redisClient, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to create dispatch sink: %w", err)
	}
	auditor := audit.NewPublisher(redisClient, cfg.Guardian.Streams.Audit, logger)

	// 6. 决策引擎
	eng := engine.New(engine.WithEscalationThreshold(cfg.Guardian.Escalation.ThresholdMinutes))
	guardian := NewGuardian(eng, alertRepo, baselineRepo, circleCache, prefCache, auditor, sink, logger)

	// 7. Consumer 层
	opts := consumer.StreamOptions{
		Group:        cfg.Guardian.Streams.Group,
		ConsumerName: cfg.Guardian.Streams.ConsumerName,
		BatchSize:    cfg.Guardian.Streams.BatchSize,
		BlockTimeout: cfg.Guardian.Streams.BlockTimeout,
	}
	readingOpts := opts
	readingOpts.Stream = cfg.Guardian.Streams.Readings
	eventOpts := opts
	eventOpts.Stream = cfg.Guardian.Streams.Events

	s := &GuardianService{
		config:          cfg,
		db:              db,
		redisClient:     redisClient,
		logger:          logger,
		guardian:        guardian,
		sink:            sink,
		readingConsumer: consumer.NewReadingConsumer(redisClient, readingOpts, guardian, logger),
		eventConsumer:   consumer.NewEventConsumer(redisClient, eventOpts, guardian, logger),
		opsServer:       &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: NewRouter(guardian, logger),
		},
	}

	// 8. 设备事件（MQTT，可选）
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.mqttClient = mqttClient
		s.mqttConsumer = consumer.NewMQTTEventConsumer(mqttClient, cfg.MQTT.EventTopic, cfg.MQTT.QoS, guardian, logger)
	}

	return s, nil
}

// Start 启动服务，阻塞到 ctx 取消或任一组件出错
func (s *GuardianService) Start(ctx context.Context) error {
	s.logger.Info("Starting guardian service",
		zap.String("dispatch_sink", s.sink.Name()),
		zap.Bool("mqtt_enabled", s.mqttConsumer != nil),
	)

	errChan := make(chan error, 5)
	run := func(name string, fn func(context.Context) error) {
		go func() {
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	run("reading consumer", s.readingConsumer.Start)
	run("event consumer", s.eventConsumer.Start)
	if s.mqttConsumer != nil {
		run("mqtt consumer", s.mqttConsumer.Start)
	}
	run("escalation sweep", s.runEscalationLoop)

	go func() {
		s.logger.Info("Ops server listening", zap.String("addr", s.opsServer.Addr))
		if err := s.opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ops server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// runEscalationLoop 定时执行升级扫描；单次失败只记录
func (s *GuardianService) runEscalationLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Guardian.Escalation.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.guardian.RunEscalationSweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Escalation sweep failed", zap.Error(err))
			}
		}
	}
}

// Stop 停止服务
func (s *GuardianService) Stop() error {
	s.logger.Info("Stopping guardian service")

	if s.opsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.opsServer.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shutdown ops server", zap.Error(err))
		}
	}

	if s.mqttConsumer != nil {
		s.mqttConsumer.Stop()
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.logger.Error("Failed to close dispatch sink", zap.Error(err))
		}
	}

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	// 关闭 Redis 连接
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}
