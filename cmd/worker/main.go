package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"Symposium/internal/agent"
	agentservice "Symposium/internal/agent_service/service"
	agentstore "Symposium/internal/agent_service/store"
	chatservice "Symposium/internal/chat_service/service"
	chatstore "Symposium/internal/chat_service/store"
	"Symposium/internal/config"
	"Symposium/internal/database/kafka"
	"Symposium/internal/database/mongo"
	"Symposium/internal/database/mysql"
	"Symposium/internal/database/redis"
	"Symposium/internal/llm"
	"Symposium/internal/task_service/consumer"
	"Symposium/internal/task_service/publisher"
	taskservice "Symposium/internal/task_service/service"
	taskstore "Symposium/internal/task_service/store"
	"Symposium/internal/tools"
	"Symposium/pkg/logger"
	"github.com/sirupsen/logrus"
)

// worker 进程消费 Kafka 任务主题，在进程内用与 server 相同的
// 编排器和 agent 管理服务执行后台任务。
func main() {
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("worker", "")
	appLogger.Info("Logger initialized")

	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to connect to MySQL: %v", err))
	}
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

	toolRegistry := tools.NewDefaultRegistry()
	toolExecutor := tools.NewExecutor(toolRegistry, tools.Options{
		WorkspaceRoot:    cfg.Tools.WorkspaceRoot,
		ExecTimeout:      time.Duration(cfg.Tools.ExecTimeout) * time.Second,
		AllowedLanguages: cfg.Tools.AllowedLanguages,
		BrowserRemoteURL: cfg.Tools.BrowserRemoteURL,
		BrowserHeadless:  cfg.Tools.BrowserHeadless,
	})
	defer toolExecutor.Close()

	agentStore := agentstore.NewStore(db)
	modelManager := llm.NewModelManager(agentStore, time.Duration(cfg.LLM.GenerateTimeout)*time.Second)
	agentRegistry := agent.NewLocalRegistry()
	agentManager := agentservice.NewManager(agentStore, modelManager, agentRegistry, toolExecutor, cfg.LLM.HistoryLimit)

	chatStore := chatstore.NewStore(db)
	orchestrator := chatservice.NewOrchestrator(chatStore, agentManager, cfg.Chat.MaxIterations)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := agentManager.ResumeActiveAgents(ctx); err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to resume active agents: %v", err))
	}
	if err := orchestrator.ResumeSessions(ctx); err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to resume active sessions: %v", err))
	}

	mongoDB := mongoClient.Database(cfg.Databases.MongoDB.Database)
	taskStore := taskstore.NewMongoTaskStore(mongoDB, cfg.Databases.MongoDB.Collection)
	statusCache := taskstore.NewStatusCache(rdb)
	resultPublisher := publisher.NewTaskPublisher(kafkaClient.Config.Brokers, kafkaClient.Config.ResultTopic, logger.New("result_publisher", ""))
	defer resultPublisher.Close()
	worker := taskservice.NewWorker(taskStore, statusCache, orchestrator, agentManager, resultPublisher, logger.New("task_worker", ""))

	taskConsumer := consumer.NewTaskConsumer(kafkaClient.Config.Brokers, kafkaClient.Config.TaskTopic, kafkaClient.Config.GroupID, logger.New("task_consumer", ""))
	defer taskConsumer.Close()
	taskConsumer.Start(ctx, worker.HandleMessage)
	appLogger.Info("Worker started, consuming task topic " + kafkaClient.Config.TaskTopic)

	<-ctx.Done()
	appLogger.Info("Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mongo.Close(shutdownCtx); err != nil {
		appLogger.Error(fmt.Sprintf("MongoDB close error: %v", err))
	}
	if err := redis.Close(); err != nil {
		appLogger.Error(fmt.Sprintf("Redis close error: %v", err))
	}
	if err := kafka.Close(); err != nil {
		appLogger.Error(fmt.Sprintf("Kafka close error: %v", err))
	}
	appLogger.Info("Worker stopped")
}
