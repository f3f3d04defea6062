package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Reader        ReaderConfig        `mapstructure:"reader"`
	Converter     ConverterConfig     `mapstructure:"converter"`
	PythonService PythonServiceConfig `mapstructure:"python_service"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Queue         QueueConfig         `mapstructure:"queue"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host          string        `mapstructure:"host"`            // 服务器主机
	Port          int           `mapstructure:"port"`            // 服务器端口
	Mode          string        `mapstructure:"mode"`            // gin运行模式：debug/release/test
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`    // 读取超时
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`   // 写入超时，同步转换可能较慢
	EnableCORS    bool          `mapstructure:"enable_cors"`     // 是否允许跨域
	MaxUploadSize int64         `mapstructure:"max_upload_size"` // multipart内存上限（字节）
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug/info/warn/error
	File       string `mapstructure:"file"`        // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"` // 保留的旧文件数
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ReaderConfig 读取器默认配置
type ReaderConfig struct {
	ExportType  string `mapstructure:"export_type"`  // markdown 或 json
	ChunkDocs   bool   `mapstructure:"chunk_docs"`   // 是否输出节点
	IDGenerator string `mapstructure:"id_generator"` // doc_hash、uuid 或 none
}

// ConverterConfig 转换器配置
type ConverterConfig struct {
	Type    string        `mapstructure:"type"`     // local 或 service
	MaxSize int64         `mapstructure:"max_size"` // 源文件大小上限（字节），0表示不限制
	Timeout time.Duration `mapstructure:"timeout"`  // 下载URL的超时时间
}

// PythonServiceConfig 转换服务配置
type PythonServiceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`    // 服务基础URL
	APIKey     string        `mapstructure:"api_key"`     // 访问密钥，支持${VAR}
	Timeout    time.Duration `mapstructure:"timeout"`     // 请求超时时间
	MaxRetries int           `mapstructure:"max_retries"` // 最大重试次数
	RetryDelay time.Duration `mapstructure:"retry_delay"` // 重试间隔
}

// CacheConfig 转换结果缓存配置
type CacheConfig struct {
	Enable    bool          `mapstructure:"enable"`     // 是否启用缓存
	Type      string        `mapstructure:"type"`       // 缓存类型：memory 或 redis
	Address   string        `mapstructure:"address"`    // Redis地址
	Password  string        `mapstructure:"password"`   // Redis密码
	DB        int           `mapstructure:"db"`         // Redis数据库
	KeyPrefix string        `mapstructure:"key_prefix"` // 键前缀
	TTL       time.Duration `mapstructure:"ttl"`        // 缓存TTL
}

// StorageConfig 上传文件存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Prefix    string `mapstructure:"prefix"`   // MinIO对象前缀
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type         string        `mapstructure:"type"` // 数据库类型，目前只支持sqlite
	DSN          string        `mapstructure:"dsn"`  // 数据源名称
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool          `mapstructure:"enable"`         // 是否启用异步入库
	Type          string        `mapstructure:"type"`           // 队列类型，目前只有redis
	RedisAddr     string        `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string        `mapstructure:"redis_password"` // Redis密码
	RedisDB       int           `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int           `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int           `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    time.Duration `mapstructure:"retry_delay"`    // 重试延迟
	TaskTTL       time.Duration `mapstructure:"task_ttl"`       // 任务信息保留时间
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`   // 单个入库任务的超时时间
}

// Load 从文件和环境变量加载配置
// 文件不存在时使用默认值，环境变量如 SERVER_PORT 覆盖 server.port
func Load(configPath string) (*Config, error) {
	var config Config

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return nil, fmt.Errorf("failed to read config file: %w", err)
				}
			}
			logrus.Warnf("Config file not found at %s, using defaults", configPath)
		} else {
			logrus.Debugf("Using config file: %s", v.ConfigFileUsed())
		}
	}

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return processEnvironmentVariables(&config), nil
}

// processEnvironmentVariables 展开形如 ${VAR} 的密钥配置
func processEnvironmentVariables(cfg *Config) *Config {
	for _, field := range []*string{
		&cfg.PythonService.APIKey,
		&cfg.Cache.Password,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Queue.RedisPassword,
		&cfg.Database.DSN,
	} {
		*field = expandEnv(*field)
	}
	return cfg
}

// expandEnv 整个值为 ${VAR} 时替换为环境变量，变量为空时保留原值
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	if val := os.Getenv(s[2 : len(s)-1]); val != "" {
		return val
	}
	return s
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.max_upload_size", 32<<20)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)

	// 读取器默认配置
	v.SetDefault("reader.export_type", "markdown")
	v.SetDefault("reader.chunk_docs", true)
	v.SetDefault("reader.id_generator", "doc_hash")

	// 转换器默认配置
	v.SetDefault("converter.type", "local")
	v.SetDefault("converter.max_size", 100<<20)
	v.SetDefault("converter.timeout", "60s")

	// 转换服务默认配置
	v.SetDefault("python_service.base_url", "http://localhost:5001")
	v.SetDefault("python_service.api_key", "")
	v.SetDefault("python_service.timeout", "120s")
	v.SetDefault("python_service.max_retries", 3)
	v.SetDefault("python_service.retry_delay", "1s")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.key_prefix", "docling")
	v.SetDefault("cache.ttl", "24h")

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "data/uploads")
	v.SetDefault("storage.bucket", "docling")
	v.SetDefault("storage.prefix", "uploads/")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/docling.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "1h")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", "1m")
	v.SetDefault("queue.task_ttl", "168h")
	v.SetDefault("queue.task_timeout", "10m")
}
