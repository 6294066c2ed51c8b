package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "social_network_service/cmd/chat_service/docs" // 引入 Swagger 文档
	"social_network_service/internal/chat/app"
	"social_network_service/internal/chat/domain"
	"social_network_service/internal/chat/presence"
	"social_network_service/internal/chat/repository"
	"social_network_service/internal/chat/router"
	memberrepo "social_network_service/internal/member/repository"
	"social_network_service/pkg/config"
	"social_network_service/pkg/database"
	"social_network_service/pkg/logger"
	testtool "social_network_service/pkg/test_tool"
	"social_network_service/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	ctx := context.Background()

	// 1. 建立 Mongo 連線 (聊天室 / 會員)
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	if err := repository.EnsureChatIndexes(ctx, mongo.Database); err != nil {
		logger.Log.Fatal("ensure chat indexes", zap.Error(err))
	}

	// 2. 建立 Redis 連線 (token 註銷 / 事件)
	redisClient := newRedisClient(cfg.Redis)
	defer redisClient.Close()

	// 3. 會員資料來源
	directory := newDirectory(cfg, mongo)

	// 4. 附件儲存
	storage, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		Prefix:        cfg.AppName,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("connect minio", zap.Error(err))
	}

	// 5. 聊天事件
	publisher, closePublisher := newPublisher(ctx, cfg, redisClient)
	defer closePublisher()

	// 6. 初始化 UseCases
	registry := presence.NewRegistry()
	signer := token.NewSigner([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.TTL)
	authenticator := app.NewAuthenticator(signer,
		database.NewRedisRepository[string](redisClient, app.RevokedTokenPrefix),
		directory)
	chatUC := app.NewChatUseCase(repository.NewMongoChatRepository(mongo.Database), directory, storage, publisher, registry)

	// 7. gRPC health
	health, err := database.NewHealthServer(":" + cfg.GRPCPort)
	if err != nil {
		logger.Log.Fatal("listen grpc health", zap.Error(err))
	}
	go func() {
		if err := health.Serve(); err != nil {
			logger.Log.Error("grpc health server stopped", zap.Error(err))
		}
	}()
	defer health.Stop()

	testtool.StartPprof()

	// 8. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(chatUC, registry, cfg.PingInterval),
		app.NewChatHandler(chatUC, authenticator),
		authenticator)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("shutting down chat service")
		health.SetServing(cfg.AppName, false)
		if err := r.Shutdown(); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	health.SetServing(cfg.AppName, true)

	// Listen
	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port), zap.String("directory", cfg.Directory), zap.String("events", cfg.Events))
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}

// newRedisClient addr 有值用單機，否則走 sentinel
func newRedisClient(c config.RedisConfig) *redis.Client {
	var (
		client *redis.Client
		err    error
	)
	if c.Addr != "" {
		client, err = database.NewRedisStandaloneClient(c.Addr, c.RedisDB)
	} else {
		masterName, sentinel := config.GetRedisSetting()
		client, err = database.NewRedisClient(masterName, sentinel, c.RedisDB)
	}
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	return client
}

func newDirectory(cfg config.Chat, mongo *database.MongoDB) memberrepo.Directory {
	switch cfg.Directory {
	case "postgres":
		pg := cfg.PostgreSQL
		pool, err := database.NewDatabaseConnection(database.Connection{
			ConnectStr:    fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", pg.User, pg.Password, pg.Host, pg.Port, pg.Database),
			RetryCount:    pg.RetryCount,
			RetryInterval: time.Duration(pg.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.Error(err))
		}
		if _, err := pool.Exec(context.Background(), memberrepo.PostgresSchema); err != nil {
			logger.Log.Fatal("migrate member schema", zap.Error(err))
		}
		return memberrepo.NewPostgresDirectory(pool)
	default:
		return memberrepo.NewMemberRepository(mongo.Database)
	}
}

func newPublisher(ctx context.Context, cfg config.Chat, redisClient *redis.Client) (repository.EventPublisher, func()) {
	switch cfg.Events {
	case repository.EventsKafka:
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("create kafka writer", zap.Error(err))
		}
		return repository.NewKafkaPublisher(writer), func() {
			if err := writer.Close(); err != nil {
				logger.Log.Error("close kafka writer", zap.Error(err))
			}
		}
	case repository.EventsRedis:
		pubsub := repository.NewRedisPubSub(redisClient, cfg.Redis.Channel)
		// debug 模式下把事件印出來
		if err := pubsub.Subscribe(ctx, func(evt domain.ChatEvent) {
			logger.Log.Debug("chat event", zap.String("type", string(evt.Type)), zap.String("chat", evt.ChatKey))
		}); err != nil {
			logger.Log.Warn("subscribe chat events", zap.Error(err))
		}
		return pubsub, func() {}
	default:
		return repository.NewNopPublisher(), func() {}
	}
}
