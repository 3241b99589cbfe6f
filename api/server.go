package api

import (
	"fmt"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"

	"bidflow/adapters/sse"
	"bidflow/adapters/stream"
	"bidflow/engine"
	"bidflow/storage"
)

// ServerImpl 持有 API 層依賴的所有元件。
type ServerImpl struct {
	engine      *engine.Engine
	sseManager  sse.IConnectionManager[engine.Event]
	htmlChecker *bluemonday.Policy
	redisClient *redis.Client

	config ServerConfig
}

// NewServer 依設定組裝持久層、SSE 管理器與引擎。
// 設定了 Redis 時，事件繞經 Redis Stream 讓多個節點協同推播；
// 否則退化為單節點的 in-process 廣播。
func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化持久層
	var store engine.Store
	switch config.DB.Driver {
	case "memory":
		store = storage.NewMemory()
	case "postgres", "":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s",
			config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
		pg, err := storage.NewPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to initial storage, err=%w", op, err)
		}
		store = pg
	default:
		return nil, fmt.Errorf("[%s] Unknown db driver: %s", op, config.DB.Driver)
	}

	// 初始化SSE管理器
	var redisClient *redis.Client
	managerOpts := []sse.ManagerOption[engine.Event]{
		sse.WithManagerLogger[engine.Event](slog.Default()),
	}
	if config.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		producer, err := stream.NewProducer[sse.PublishRequest[engine.Event]](redisClient, config.Redis.StreamKeys.SSE)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create stream producer, err=%w", op, err)
		}
		consumer, err := stream.NewConsumer[sse.PublishRequest[engine.Event]](redisClient, config.Redis.StreamKeys.SSE)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create stream consumer, err=%w", op, err)
		}
		managerOpts = append(managerOpts,
			sse.WithManagerPublisher[engine.Event](producer),
			sse.WithManagerSubscriber[engine.Event](consumer),
		)
	}
	sseManager := sse.NewConnectionManager[engine.Event](managerOpts...)

	// 初始化引擎
	engineOpts := []engine.EngineOption{
		engine.WithLogger(slog.Default()),
		engine.WithPublisher(sseManager),
	}
	if config.Engine.LockTimeout > 0 {
		engineOpts = append(engineOpts, engine.WithLockTimeout(config.Engine.LockTimeout))
	}
	if config.Engine.ClockInterval > 0 {
		engineOpts = append(engineOpts, engine.WithClockInterval(config.Engine.ClockInterval))
	}
	if config.Engine.MaxExtensions != 0 {
		engineOpts = append(engineOpts, engine.WithMaxExtensions(config.Engine.MaxExtensions))
	}
	if !config.Engine.DraftFullRules {
		engineOpts = append(engineOpts, engine.WithDraftPolicy(engine.PolicyCeilingOnly))
	}
	eng, err := engine.NewEngine(store, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create engine, err=%w", op, err)
	}

	return &ServerImpl{
		engine:      eng,
		sseManager:  sseManager,
		htmlChecker: bluemonday.UGCPolicy(),
		redisClient: redisClient,
		config:      config,
	}, nil
}

func (impl *ServerImpl) Start() {
	// 啟動sse connection manager
	impl.sseManager.Start()
	// 啟動拍賣時鐘
	impl.engine.StartClock()
}

func (impl *ServerImpl) Close() {
	// 關閉拍賣時鐘
	impl.engine.Close()
	// 關閉sse connection manager
	impl.sseManager.Done()
	if impl.redisClient != nil {
		impl.redisClient.Close()
	}
}
