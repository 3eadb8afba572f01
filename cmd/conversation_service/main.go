package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conversation_sync_service/internal/conversation/app"
	"conversation_sync_service/internal/conversation/cache"
	"conversation_sync_service/internal/conversation/repository"
	"conversation_sync_service/internal/conversation/router"
	"conversation_sync_service/pkg/config"
	"conversation_sync_service/pkg/database"
	errprocess "conversation_sync_service/pkg/err"
	"conversation_sync_service/pkg/logger"
	testtool "conversation_sync_service/pkg/test_tool"
	"conversation_sync_service/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ConversationService, config.EnvConfig.ConversationServiceLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Conversation](config.EnvConfig.ConversationService, config.EnvConfig.ConversationServiceYAMLPath)
	cfg.ApplyDefaults()
	token.SetSecret(cfg.JWTSecret)
	testtool.StartPprof(cfg.PprofPort)

	ctx := context.Background()

	// 1. Mongo (使用者目錄)，沒有設定時使用記憶體
	var mongoDB *mongo.Database
	if cfg.MongoSQL.Host != "" {
		uri := database.MongoURI(cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
		m, err := database.NewMongoDB(ctx,
			database.Connection{
				ConnectStr:    uri,
				RetryCount:    cfg.MongoSQL.RetryCount,
				RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
			},
			cfg.MongoSQL.Database)
		if err != nil {
			logger.Log.Fatal("Unable to connect to mongoDB database after retries",
				zap.String("host", cfg.MongoSQL.Host),
				zap.Error(err),
			)
		}
		defer m.Close(ctx)
		mongoDB = m.Database
	}

	// 2. Redis (session 紀錄、redis stream)
	redisClient := newRedisClient(cfg)
	if redisClient == nil && cfg.Stream.Transport == "redis" {
		logger.Log.Fatal("stream transport redis requires a redis connection")
	}

	// 3. 每個會員的遠端 client 與使用者目錄
	timeout := time.Duration(cfg.Upstream.Timeout) * time.Second
	build := func(memberID string, store *cache.Store) (app.SessionDependencies, error) {
		var stream repository.ConversationStream
		switch cfg.Stream.Transport {
		case "redis":
			stream = repository.NewRedisConversationStream(redisClient, cfg.Stream.Channel, memberID)
		case "websocket":
			if cfg.Upstream.StreamURL == "" {
				return app.SessionDependencies{}, errprocess.Set("upstream stream_url is empty")
			}
			stream = repository.NewWebsocketConversationStream(cfg.Upstream.StreamURL, timeout, store)
		default:
			return app.SessionDependencies{}, errprocess.Set(fmt.Sprintf("unknown stream transport %q", cfg.Stream.Transport))
		}

		var users repository.UserDirectory
		if mongoDB != nil {
			users = repository.NewMongoUserDirectory(mongoDB, memberID)
		} else {
			users = repository.NewMemoryUserDirectory(memberID)
		}

		return app.SessionDependencies{
			Remote: repository.NewConversationAPI(cfg.Upstream.BaseURL, timeout, store, stream),
			Users:  users,
		}, nil
	}

	var records database.RedisRepository[app.SessionRecord]
	if redisClient != nil {
		records = database.NewRedisRepository[app.SessionRecord](redisClient)
	}
	registry := app.NewSessionRegistry(build, app.Options{
		ParticipantLimit:    cfg.List.ParticipantLimit,
		PreviewMessageLimit: cfg.List.PreviewMessageLimit,
	}, records, time.Duration(cfg.SessionTTL)*time.Minute)

	// 4. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ConversationServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(r, app.NewConversationWebsocketHandler(registry))

	// 收到中斷訊號時登出所有 session
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("shutting down conversation service")
		if err := r.Shutdown(); err != nil {
			logger.Log.Warn("fiber shutdown failed", zap.Error(err))
		}
	}()

	// Listen
	port := ":" + cfg.Port
	logger.Log.Info("Conversation Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
	registry.Shutdown(context.Background())
}

// newRedisClient sentinel 優先，沒有 sentinel 時連 REDIS_ADDR，都沒有回傳 nil
func newRedisClient(cfg config.Conversation) *redis.Client {
	masterName, sentinel := config.GetRedisSetting()
	if len(sentinel) > 0 {
		client, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
		}
		return client
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Log.Warn("redis not configured, session records disabled")
		return nil
	}
	client, err := database.NewRedisStandaloneClient(addr, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	return client
}
