// Package main 是应用程序的入口点。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"site-assistant-go/internal/config"
	"site-assistant-go/internal/handler"
	"site-assistant-go/internal/middleware"
	"site-assistant-go/internal/moderation"
	"site-assistant-go/internal/repository"
	"site-assistant-go/internal/service"
	"site-assistant-go/pkg/database"
	"site-assistant-go/pkg/es"
	"site-assistant-go/pkg/kafka"
	"site-assistant-go/pkg/llm"
	"site-assistant-go/pkg/log"
	"site-assistant-go/pkg/mail"
	"site-assistant-go/pkg/storage"
	"site-assistant-go/pkg/whatsapp"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		panic(err)
	}
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化 Repository（按配置选择内存/Redis、文件/MySQL）
	ledger, err := newThrottleLedger(cfg)
	if err != nil {
		log.Fatal("封禁台账初始化失败", err)
	}
	leadRepo, err := newLeadRepository(cfg)
	if err != nil {
		log.Fatal("线索存储初始化失败", err)
	}
	knowledge := loadKnowledge(cfg)

	// 4. 初始化通知渠道
	channels, closers := newNotificationChannels(cfg)
	notifier := service.NewNotificationService(cfg.Notification.Timeout, channels...)

	// 5. 初始化 Service (依赖注入)
	classifier := moderation.NewClassifier(cfg.Moderation.IncludedKeywords, cfg.Moderation.ExcludedKeywords)
	engine := moderation.NewEngine(classifier, ledger, cfg.Moderation.BlockThreshold)
	llmClient := llm.NewClient(cfg.LLM)
	chatService := service.NewChatService(engine, llmClient, cfg.Assistant, cfg.Moderation.BlockThreshold, knowledge)
	leadService := service.NewLeadService(leadRepo, notifier)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Fatal("设置可信代理失败", err)
	}
	r.Use(middleware.RequestID(), middleware.RequestLogger(), middleware.CORS(), gin.Recovery())

	// 7. 注册路由
	chatHandler := handler.NewChatHandler(chatService, cfg.Moderation.BlockedRedirect)
	leadHandler := handler.NewLeadHandler(leadService)
	webhookHandler := handler.NewWebhookHandler(leadService, cfg.WhatsApp)

	r.POST("/v1/messages", chatHandler.Messages)
	r.POST("/v1/leads", leadHandler.SubmitLenient)
	r.GET("/assistant-profile", chatHandler.Profile)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/leads", leadHandler.SubmitStrict)
		apiV1.GET("/leads", leadHandler.List)
		apiV1.POST("/unblock", chatHandler.Unblock)
		apiV1.GET("/whatsapp-webhook", webhookHandler.Verify)
		apiV1.POST("/whatsapp-webhook", webhookHandler.Receive)
		apiV1.GET("/diagnostics", handler.NewDiagnosticsHandler(cfg).Status)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Errorf("关闭外部连接失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

// newThrottleLedger 根据 moderation.ledger 选择封禁台账实现。
func newThrottleLedger(cfg config.Config) (repository.ThrottleLedger, error) {
	switch cfg.Moderation.Ledger {
	case "", "memory":
		return repository.NewMemoryThrottleLedger(cfg.Moderation.BlockDuration), nil
	case "redis":
		redisCfg := cfg.Database.Redis
		if err := database.InitRedis(redisCfg.Addr, redisCfg.Password, redisCfg.DB); err != nil {
			return nil, err
		}
		return repository.NewRedisThrottleLedger(database.RDB, cfg.Moderation.BlockDuration), nil
	default:
		return nil, fmt.Errorf("未知的封禁台账类型: %s", cfg.Moderation.Ledger)
	}
}

// newLeadRepository 根据 leads.store 选择线索存储实现。
func newLeadRepository(cfg config.Config) (repository.LeadRepository, error) {
	switch cfg.Leads.Store {
	case "", "file":
		return repository.NewFileLeadRepository(cfg.Leads.FilePath), nil
	case "mysql":
		if err := database.InitMySQL(cfg.Database.MySQL.DSN); err != nil {
			return nil, err
		}
		return repository.NewMySQLLeadRepository(database.DB)
	default:
		return nil, fmt.Errorf("未知的线索存储类型: %s", cfg.Leads.Store)
	}
}

// loadKnowledge 在启动时加载一次网站知识，失败时退化为空对象，服务照常启动。
func loadKnowledge(cfg config.Config) json.RawMessage {
	var source repository.KnowledgeSource
	switch cfg.Assistant.KnowledgeSource {
	case "minio":
		if err := storage.InitMinIO(cfg.MinIO); err != nil {
			log.Error("MinIO 初始化失败，使用空的网站知识", err)
			return nil
		}
		source = repository.NewMinioKnowledgeSource(storage.MinioClient, cfg.MinIO.BucketName, cfg.MinIO.KnowledgeObject)
	default:
		source = repository.NewFileKnowledgeSource(cfg.Assistant.KnowledgePath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	knowledge, err := source.Load(ctx)
	if err != nil {
		log.Error("加载网站知识失败，使用空对象", err)
		return nil
	}
	log.Infof("网站知识加载成功, %d bytes", len(knowledge))
	return knowledge
}

// newNotificationChannels 按配置启用各通知渠道，并返回停机时需要调用的关闭函数。
func newNotificationChannels(cfg config.Config) ([]service.NotificationChannel, []func() error) {
	var channels []service.NotificationChannel
	var closers []func() error
	brand := cfg.Assistant.Brand

	if cfg.Mail.Enabled {
		channels = append(channels, service.NewEmailChannel(mail.NewSender(cfg.Mail), brand))
		log.Infof("邮件通知已启用, host=%s", cfg.Mail.Host)
	}
	if cfg.WhatsApp.Enabled {
		channels = append(channels, service.NewWhatsAppChannel(whatsapp.NewClient(cfg.WhatsApp, nil), brand))
		log.Info("WhatsApp 通知已启用")
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		channels = append(channels, service.NewEventChannel(producer))
		closers = append(closers, producer.Close)
		log.Infof("Kafka 事件发布已启用, topic=%s", cfg.Kafka.Topic)
	}
	if cfg.Elasticsearch.Enabled {
		indexer, err := es.NewLeadIndexer(cfg.Elasticsearch)
		if err != nil {
			log.Error("Elasticsearch 初始化失败，跳过线索索引", err)
		} else {
			channels = append(channels, service.NewSearchIndexChannel(indexer))
		}
	}
	return channels, closers
}
