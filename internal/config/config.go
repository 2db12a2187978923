package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ストレージの種類
const (
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageMemory   = "memory"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`
	Storage  string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	Server       ServerConfig
	Database     DatabaseConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Registration RegistrationConfig
	Worker       WorkerConfig
	Mail         MailConfig
	Tracing      TracingConfig
	Metrics      MetricsConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host           string `env:"DB_HOST" envDefault:"localhost"`
	Port           string `env:"DB_PORT" envDefault:"5432"`
	User           string `env:"DB_USER" envDefault:"postgres"`
	Password       string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName         string `env:"DB_NAME" envDefault:"event_registration"`
	SSLMode        string `env:"DB_SSLMODE" envDefault:"disable"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`
}

// MongoConfig は MongoDB 設定
type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" envDefault:"event_registration"`
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// AuthConfig は認証設定
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

// RegistrationConfig は参加登録処理の設定
type RegistrationConfig struct {
	MaxRetries     int           `env:"REGISTRATION_MAX_RETRIES" envDefault:"3"`
	LockTTL        time.Duration `env:"REGISTRATION_LOCK_TTL" envDefault:"10s"`
	LockRetries    int           `env:"REGISTRATION_LOCK_RETRIES" envDefault:"20"`
	LockRetryDelay time.Duration `env:"REGISTRATION_LOCK_RETRY_DELAY" envDefault:"50ms"`
	CacheTTL       time.Duration `env:"AVAILABILITY_CACHE_TTL" envDefault:"30s"`
}

// WorkerConfig はバックグラウンドワーカー設定
type WorkerConfig struct {
	CompletionEnabled  bool          `env:"EVENT_COMPLETION_ENABLED" envDefault:"true"`
	CompletionInterval time.Duration `env:"EVENT_COMPLETION_INTERVAL" envDefault:"1m"`
}

// MailConfig はメール送信設定
type MailConfig struct {
	Provider           string `env:"MAIL_PROVIDER" envDefault:"noop"`
	FromAddress        string `env:"MAIL_FROM_ADDRESS" envDefault:"no-reply@example.com"`
	FromName           string `env:"MAIL_FROM_NAME" envDefault:"Event Registration"`
	AWSRegion          string `env:"AWS_REGION" envDefault:"ap-northeast-1"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

// TracingConfig はトレーシング設定
type TracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"event-registration"`
}

// MetricsConfig は /metrics の Basic 認証設定
type MetricsConfig struct {
	User     string `env:"METRICS_USER"`
	Password string `env:"METRICS_PASSWORD"`
}

// Load は環境変数から設定を読み込む。本番以外では .env ファイルがあれば先に読み込む
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf(".env の読み込みに失敗: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の組み合わせを検証する
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("不正な STORAGE_DRIVER: %q", c.Storage)
	}
	if c.Env == "production" && c.Auth.JWTSecret == "" {
		return errors.New("本番環境では JWT_SECRET が必須です")
	}
	if c.Registration.MaxRetries < 1 {
		return fmt.Errorf("REGISTRATION_MAX_RETRIES は1以上である必要があります: %d", c.Registration.MaxRetries)
	}
	switch c.Mail.Provider {
	case "noop", "ses":
	default:
		return fmt.Errorf("不正な MAIL_PROVIDER: %q", c.Mail.Provider)
	}
	return nil
}

// IsProduction は本番環境かを返す
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
