package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yumiao07/genshin-QA-system/api"
	"github.com/yumiao07/genshin-QA-system/api/handler"
	"github.com/yumiao07/genshin-QA-system/api/middleware"
	qaconfig "github.com/yumiao07/genshin-QA-system/config"
	"github.com/yumiao07/genshin-QA-system/internal/cache"
	"github.com/yumiao07/genshin-QA-system/internal/database"
	"github.com/yumiao07/genshin-QA-system/internal/embedding"
	"github.com/yumiao07/genshin-QA-system/internal/llm"
	"github.com/yumiao07/genshin-QA-system/internal/processor"
	"github.com/yumiao07/genshin-QA-system/internal/repository"
	"github.com/yumiao07/genshin-QA-system/internal/services"
	"github.com/yumiao07/genshin-QA-system/internal/vectordb"
	"github.com/yumiao07/genshin-QA-system/internal/wiki"
	"github.com/yumiao07/genshin-QA-system/pkg/storage"
	"github.com/yumiao07/genshin-QA-system/pkg/taskqueue"
)

// 命令行选项
type options struct {
	ConfigFile string // 配置文件路径
	Job        string // 运行任务：serve, crawl, rebuild
	Mode       string // 运行模式 (debug/release)
	LogLevel   string // 日志级别
	LogFile    string // 日志文件路径，为空则只输出到标准输出
	Port       int    // 服务端口，覆盖配置文件
}

func main() {
	opts := parseFlags()

	// 加载.env文件（如果存在），再读配置，API密钥可以放在.env里
	_ = godotenv.Load()

	cfg, err := qaconfig.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	gin.SetMode(opts.Mode)

	logger := setupLogger(opts.LogLevel, opts.LogFile)
	logger.Info("Starting Genshin QA System...")

	// 初始化数据库
	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// 快照存储
	store, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 向量数据库
	vectorDB, err := setupVectorDB(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	// 嵌入客户端
	embeddingClient, err := setupEmbedding(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	// 大语言模型客户端
	llmClient, err := setupLLM(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	// 缓存服务，禁用时传nil（问答服务允许无缓存运行）
	var cacheService cache.Cache
	if cfg.Cache.Enable {
		cacheService, err = setupCache(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
	}

	// wiki爬虫
	crawler := setupCrawler(cfg, logger)

	// 批量嵌入处理器
	batchEmbedder := embedding.NewBatchProcessor(embeddingClient,
		embedding.WithBatchProcessorSize(cfg.Embed.BatchSize),
		embedding.WithBatchLogger(logger),
	)

	// 角色仓储和语料库服务
	repo := repository.NewCharacterRepository()
	corpusService, err := services.NewCorpusService(
		crawler,
		processor.NewProcessor(),
		repo,
		batchEmbedder,
		vectorDB,
		store,
		services.WithCorpusLogger(logger),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize corpus service: %v", err)
	}

	// RAG问答服务
	ragService := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
	)
	qaService, err := services.NewQAService(
		embeddingClient,
		vectorDB,
		ragService,
		cacheService,
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithMinScore(cfg.Search.MinScore),
		services.WithCacheTTL(time.Duration(cfg.Cache.TTL)*time.Second),
		services.WithQALogger(logger),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize QA service: %v", err)
	}

	// 一次性任务直接执行后退出
	switch opts.Job {
	case "crawl":
		runCrawl(corpusService, logger)
		return
	case "process":
		runProcess(corpusService, logger)
		return
	case "index", "rebuild":
		runRebuild(corpusService, logger)
		return
	case "serve":
		// 继续启动HTTP服务
	default:
		logger.Fatalf("Unknown job: %s (expected serve, crawl, process or index)", opts.Job)
	}

	// 任务队列（可选），未启用时调度器同步执行
	var queue taskqueue.Queue
	var worker taskqueue.Worker
	corpusTaskHandler := taskqueue.NewCorpusHandler(corpusService, nil, logger)
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()

		corpusTaskHandler = taskqueue.NewCorpusHandler(corpusService, queue, logger)
		if redisQueue, ok := queue.(*taskqueue.RedisQueue); ok {
			worker = taskqueue.NewRedisWorker(redisQueue, queueConfig(cfg))
			worker.RegisterHandler(taskqueue.TaskCharacterProcess, corpusTaskHandler)
			worker.RegisterHandler(taskqueue.TaskCorpusReindex, corpusTaskHandler)
			if err := worker.Start(); err != nil {
				logger.Fatalf("Failed to start task worker: %v", err)
			}
			defer worker.Stop()
			logger.Info("Task queue worker started")
		}
	}
	dispatcher := taskqueue.NewDispatcher(queue, corpusTaskHandler, logger)

	// API处理器和路由
	r := api.SetupRouter(
		handler.NewQAHandler(qaService),
		handler.NewCharacterHandler(repo, corpusService, cacheService),
		handler.NewCorpusHandler(dispatcher, queue),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "", "Path to config file")
	flag.StringVar(&opts.Job, "job", "serve", "Job to run (serve/crawl/rebuild)")
	flag.StringVar(&opts.Mode, "mode", "debug", "Run mode (debug/release)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	flag.StringVar(&opts.LogFile, "log-file", "", "Log file path (empty for stdout only)")
	flag.IntVar(&opts.Port, "port", 0, "Server port (overrides config file)")

	flag.Parse()
	return opts
}

// runCrawl 爬取wiki并保存原始快照
func runCrawl(corpus *services.CorpusService, logger *logrus.Logger) {
	record, _, err := corpus.Crawl(context.Background())
	if err != nil {
		logger.Fatalf("Crawl failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"total":     record.Total,
		"succeeded": record.Succeeded,
		"failed":    record.Failed,
		"snapshot":  record.SnapshotKey,
	}).Info("Crawl completed")
}

// runProcess 从最新快照构建结构化记录和切块并入库
func runProcess(corpus *services.CorpusService, logger *logrus.Logger) {
	raws, err := corpus.LoadSnapshot("")
	if err != nil {
		logger.Fatalf("Failed to load snapshot: %v", err)
	}

	batch, err := corpus.Process(context.Background(), raws)
	if err != nil {
		logger.Fatalf("Process failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"characters": batch.Succeeded,
		"failed":     batch.Failed,
		"chunks":     len(batch.Chunks),
	}).Info("Processing completed")
}

// runRebuild 从最新快照重建语料库（处理+嵌入+索引）
func runRebuild(corpus *services.CorpusService, logger *logrus.Logger) {
	result, err := corpus.Rebuild(context.Background())
	if err != nil {
		logger.Fatalf("Rebuild failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"characters": result.Characters,
		"chunks":     result.Chunks,
		"indexed":    result.Indexed,
		"snapshot":   result.Snapshot,
	}).Info("Rebuild completed")
}

// setupLogger 设置日志系统
func setupLogger(level string, logFile string) *logrus.Logger {
	logger := middleware.GetLogger()

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	// 指定日志文件时同时输出到文件（带轮转）和标准输出
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // 天
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}

// setupDatabase 设置数据库
func setupDatabase(cfg *qaconfig.Config, logger *logrus.Logger) error {
	if cfg.Database.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %v", err)
		}
	}

	return database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger)
}

// setupStorage 设置快照存储
func setupStorage(cfg *qaconfig.Config) (storage.Storage, error) {
	if cfg.Storage.Type == "minio" {
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	}

	if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}
	return storage.NewLocalStorage(storage.LocalConfig{
		Path: cfg.Storage.Path,
	})
}

// setupVectorDB 设置向量数据库
func setupVectorDB(cfg *qaconfig.Config, logger *logrus.Logger) (vectordb.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.VectorDB.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector database directory: %v", err)
	}

	vdbConfig := vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              cfg.VectorDB.Path,
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      vectordb.DistanceType(cfg.VectorDB.Distance),
		CreateIfNotExists: true,
	}

	repo, err := vectordb.NewRepository(vdbConfig)
	if err != nil {
		// FAISS初始化失败时回退到内存实现
		logger.Warnf("Failed to initialize %s vector database: %v, falling back to in-memory", cfg.VectorDB.Type, err)
		vdbConfig.Type = "memory"
		return vectordb.NewRepository(vdbConfig)
	}
	return repo, nil
}

// setupEmbedding 设置嵌入模型客户端
func setupEmbedding(cfg *qaconfig.Config) (embedding.Client, error) {
	if cfg.Embed.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required (set embed.api_key or EMBED_API_KEY)")
	}

	opts := []embedding.Option{
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithDimensions(cfg.VectorDB.Dim),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	}
	if cfg.Embed.Endpoint != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.Embed.Endpoint))
	}

	return embedding.NewClient(cfg.Embed.Provider, opts...)
}

// setupLLM 设置大语言模型客户端
func setupLLM(cfg *qaconfig.Config) (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required (set llm.api_key or LLM_API_KEY)")
	}

	opts := []llm.Option{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.Endpoint))
	}

	return llm.NewClient(cfg.LLM.Provider, opts...)
}

// setupCache 设置缓存服务
func setupCache(cfg *qaconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Cache.Type,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupCrawler 设置wiki爬虫
func setupCrawler(cfg *qaconfig.Config, logger *logrus.Logger) *wiki.Crawler {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.Crawler.Timeout) * time.Second,
	}

	return wiki.NewCrawler(
		wiki.WithBaseURL(cfg.Crawler.BaseURL),
		wiki.WithHTTPClient(httpClient),
		wiki.WithDelay(time.Duration(cfg.Crawler.Delay)*time.Millisecond),
		wiki.WithConcurrency(cfg.Crawler.Concurrency),
		wiki.WithMaxCharacters(cfg.Crawler.MaxCharacters),
		wiki.WithCrawlerLogger(logger),
	)
}

// queueConfig 从应用配置构建队列配置
func queueConfig(cfg *qaconfig.Config) *taskqueue.Config {
	queueCfg := taskqueue.DefaultConfig()
	queueCfg.RedisAddr = cfg.Queue.RedisAddr
	queueCfg.RedisPassword = cfg.Queue.RedisPassword
	queueCfg.RedisDB = cfg.Queue.RedisDB
	if cfg.Queue.Concurrency > 0 {
		queueCfg.Concurrency = cfg.Queue.Concurrency
	}
	if cfg.Queue.RetryLimit > 0 {
		queueCfg.RetryLimit = cfg.Queue.RetryLimit
	}
	if cfg.Queue.RetryDelay > 0 {
		queueCfg.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second
	}
	return queueCfg
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg *qaconfig.Config, logger *logrus.Logger) (taskqueue.Queue, error) {
	logger.WithFields(logrus.Fields{
		"type":        cfg.Queue.Type,
		"redis_addr":  cfg.Queue.RedisAddr,
		"concurrency": cfg.Queue.Concurrency,
		"retry_limit": cfg.Queue.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Queue.Type, queueConfig(cfg))
}
