package main

import (
	"fmt"

	"github.com/fyerfyer/docling-nodes/config"
	"github.com/fyerfyer/docling-nodes/internal/cache"
	"github.com/fyerfyer/docling-nodes/internal/converter"
	"github.com/fyerfyer/docling-nodes/internal/database"
	"github.com/fyerfyer/docling-nodes/internal/pyprovider"
	"github.com/fyerfyer/docling-nodes/internal/repository"
	"github.com/fyerfyer/docling-nodes/internal/services"
	"github.com/fyerfyer/docling-nodes/pkg/storage"
	"github.com/fyerfyer/docling-nodes/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// app 服务和工作者共用的组件
type app struct {
	svc   *services.IngestService
	queue *taskqueue.RedisQueue
}

// Close 释放队列和数据库连接
func (a *app) Close() {
	if a.queue != nil {
		_ = a.queue.Close()
	}
	_ = database.Close()
}

// setupApp 按配置组装入库服务
func setupApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	conv, err := setupConverter(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize converter: %w", err)
	}

	if err := setupDatabase(cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	opts := []services.IngestOption{
		services.WithStorage(fileStorage),
		services.WithLogger(logger),
	}
	if cfg.Queue.TaskTimeout > 0 {
		opts = append(opts, services.WithTimeout(cfg.Queue.TaskTimeout))
	}

	a := &app{}
	if cfg.Queue.Enable {
		a.queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		opts = append(opts, services.WithTaskQueue(a.queue))
		logger.Info("Ingestion will use async task queue")
	}

	a.svc = services.NewIngestService(conv, repository.NewNodeRepository(), opts...)
	return a, nil
}

// setupConverter 创建转换器，启用缓存时包装缓存层
func setupConverter(cfg *config.Config, logger *logrus.Logger) (converter.Converter, error) {
	convCfg := converter.Config{
		Type:    cfg.Converter.Type,
		MaxSize: cfg.Converter.MaxSize,
		Timeout: cfg.Converter.Timeout,
		Service: &pyprovider.PyServiceConfig{
			BaseURL:    cfg.PythonService.BaseURL,
			Timeout:    cfg.PythonService.Timeout,
			MaxRetries: cfg.PythonService.MaxRetries,
			RetryDelay: cfg.PythonService.RetryDelay,
			APIKey:     cfg.PythonService.APIKey,
		},
		Logger: logger,
	}

	if cfg.Cache.Enable {
		c, err := setupCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		convCfg.Cache = c
		convCfg.CacheTTL = cfg.Cache.TTL
	}

	return converter.New(convCfg)
}

// setupCache 设置转换结果缓存
func setupCache(cc config.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cc.Type
	if cc.TTL > 0 {
		cacheConfig.DefaultTTL = cc.TTL
	}
	if cc.KeyPrefix != "" {
		cacheConfig.KeyPrefix = cc.KeyPrefix
	}
	if cc.Type == "redis" {
		cacheConfig.RedisAddr = cc.Address
		cacheConfig.RedisPassword = cc.Password
		cacheConfig.RedisDB = cc.DB
	}
	return cache.NewCache(cacheConfig)
}

// setupDatabase 初始化全局数据库连接
func setupDatabase(dc config.DatabaseConfig, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	if dc.Type != "" {
		dbConfig.Type = dc.Type
	}
	if dc.DSN != "" {
		dbConfig.DSN = dc.DSN
	}
	if dc.MaxOpenConns > 0 {
		dbConfig.MaxOpenConns = dc.MaxOpenConns
	}
	if dc.MaxIdleConns > 0 {
		dbConfig.MaxIdleConns = dc.MaxIdleConns
	}
	if dc.MaxLifetime > 0 {
		dbConfig.MaxLifetime = dc.MaxLifetime
	}
	return database.Setup(dbConfig, logger)
}

// setupStorage 设置上传文件存储
func setupStorage(sc config.StorageConfig) (storage.Storage, error) {
	return storage.New(storage.Config{
		Type:  sc.Type,
		Local: storage.LocalConfig{Path: sc.Path},
		Minio: storage.MinioConfig{
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			UseSSL:    sc.UseSSL,
			Bucket:    sc.Bucket,
			Prefix:    sc.Prefix,
		},
	})
}

// setupTaskQueue 设置任务队列，目前只支持redis
func setupTaskQueue(qc config.QueueConfig, logger *logrus.Logger) (*taskqueue.RedisQueue, error) {
	if qc.Type != "" && qc.Type != "redis" {
		return nil, fmt.Errorf("unsupported queue type: %s", qc.Type)
	}

	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = qc.RedisAddr
	queueConfig.RedisPassword = qc.RedisPassword
	queueConfig.RedisDB = qc.RedisDB
	if qc.Concurrency > 0 {
		queueConfig.Concurrency = qc.Concurrency
	}
	if qc.RetryLimit > 0 {
		queueConfig.RetryLimit = qc.RetryLimit
	}
	if qc.RetryDelay > 0 {
		queueConfig.RetryDelay = qc.RetryDelay
	}
	if qc.TaskTTL > 0 {
		queueConfig.TaskTTL = qc.TaskTTL
	}

	logger.WithFields(logrus.Fields{
		"redis_addr":  queueConfig.RedisAddr,
		"concurrency": queueConfig.Concurrency,
		"retry_limit": queueConfig.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewRedisQueue(queueConfig, taskqueue.WithLogger(logger))
}
