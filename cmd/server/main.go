package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"Symposium/internal/agent"
	agentapi "Symposium/internal/agent_service/api"
	agentservice "Symposium/internal/agent_service/service"
	agentstore "Symposium/internal/agent_service/store"
	chatapi "Symposium/internal/chat_service/api"
	chatservice "Symposium/internal/chat_service/service"
	chatstore "Symposium/internal/chat_service/store"
	"Symposium/internal/config"
	"Symposium/internal/database/kafka"
	"Symposium/internal/database/mongo"
	"Symposium/internal/database/mysql"
	"Symposium/internal/database/redis"
	"Symposium/internal/middleware"
	"Symposium/internal/tools"
	taskapi "Symposium/internal/task_service/api"
	"Symposium/internal/task_service/publisher"
	taskservice "Symposium/internal/task_service/service"
	taskstore "Symposium/internal/task_service/store"

	"Symposium/internal/llm"
	"Symposium/pkg/logger"
	"Symposium/pkg/ratelimiter"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 2. 初始化 Logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("server", "")
	appLogger.Info("Logger initialized")

	// 3. 初始化 MySQL 并迁移表结构
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to connect to MySQL: %v", err))
	}
	if err := mysql.AutoMigrate(db); err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to migrate database: %v", err))
	}
	appLogger.Info("MySQL initialized")

	// 4. 初始化 Redis / MongoDB / Kafka
	rdb, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to connect to MongoDB: %v", err))
	}
	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to connect to Kafka: %v", err))
	}
	appLogger.Info("Datastores initialized")

	// 5. 工具注册表与执行器
	toolRegistry := tools.NewDefaultRegistry()
	toolExecutor := tools.NewExecutor(toolRegistry, tools.Options{
		WorkspaceRoot:    cfg.Tools.WorkspaceRoot,
		ExecTimeout:      time.Duration(cfg.Tools.ExecTimeout) * time.Second,
		AllowedLanguages: cfg.Tools.AllowedLanguages,
		BrowserRemoteURL: cfg.Tools.BrowserRemoteURL,
		BrowserHeadless:  cfg.Tools.BrowserHeadless,
	})
	defer toolExecutor.Close()

	// 6. Agent 域：模型管理器、运行时注册表、管理服务
	agentStore := agentstore.NewStore(db)
	modelManager := llm.NewModelManager(agentStore, time.Duration(cfg.LLM.GenerateTimeout)*time.Second)
	agentRegistry := agent.NewLocalRegistry()
	agentManager := agentservice.NewManager(agentStore, modelManager, agentRegistry, toolExecutor, cfg.LLM.HistoryLimit)
	catalog := agentservice.NewCatalog(agentStore, toolRegistry)
	if err := agentManager.ResumeActiveAgents(context.Background()); err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to resume active agents: %v", err))
	}
	appLogger.Info("Agent services initialized")

	// 7. 群聊域：编排器，并恢复数据库中的活跃会话
	chatStore := chatstore.NewStore(db)
	orchestrator := chatservice.NewOrchestrator(chatStore, agentManager, cfg.Chat.MaxIterations)
	if err := orchestrator.ResumeSessions(context.Background()); err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to resume active sessions: %v", err))
	}
	appLogger.Info("Chat orchestrator initialized")

	// 8. 任务域：MongoDB 记录 + Redis 状态缓存 + Kafka 投递
	mongoDB := mongoClient.Database(cfg.Databases.MongoDB.Database)
	taskStore := taskstore.NewMongoTaskStore(mongoDB, cfg.Databases.MongoDB.Collection)
	statusCache := taskstore.NewStatusCache(rdb)
	taskPublisher := publisher.NewTaskPublisher(kafkaClient.Config.Brokers, kafkaClient.Config.TaskTopic, logger.New("task_publisher", ""))
	defer taskPublisher.Close()
	coordinator := taskservice.NewCoordinator(taskStore, statusCache, taskPublisher, logger.New("task_coordinator", ""))
	appLogger.Info("Task coordinator initialized")

	// 9. HTTP 路由
	router := gin.Default()
	v1 := router.Group("/api/v1")
	if cfg.Auth.Enabled {
		v1.Use(middleware.AuthMiddleware(cfg.Auth.JwtSecret))
	}
	if cfg.Middleware.RateLimiter.Enabled {
		bucket := ratelimiter.NewTokenBucket(cfg.Middleware.RateLimiter.Rate, cfg.Middleware.RateLimiter.Capacity)
		v1.Use(middleware.RateLimitMiddleware(bucket))
	}
	agentapi.RegisterRoutes(v1, agentapi.NewHandler(agentManager, catalog))
	chatapi.RegisterRoutes(v1, chatapi.NewHandler(orchestrator))
	taskapi.RegisterRoutes(v1, taskapi.NewHandler(coordinator))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 10. 启动 HTTP 服务并优雅关闭
	srv := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		appLogger.Info("Starting HTTP server on " + cfg.App.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(fmt.Sprintf("HTTP server shutdown error: %v", err))
	}
	if err := mongo.Close(shutdownCtx); err != nil {
		appLogger.Error(fmt.Sprintf("MongoDB close error: %v", err))
	}
	if err := redis.Close(); err != nil {
		appLogger.Error(fmt.Sprintf("Redis close error: %v", err))
	}
	if err := kafka.Close(); err != nil {
		appLogger.Error(fmt.Sprintf("Kafka close error: %v", err))
	}
	appLogger.Info("Server stopped")
}
