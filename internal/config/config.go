package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Lock     LockConfig     `mapstructure:"lock"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	WorkerID int64  `mapstructure:"worker_id"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql | sqlite
	LogLevel string `mapstructure:"log_level"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type LockConfig struct {
	Driver        string        `mapstructure:"driver"` // redis | local
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	AdminLogin    string        `mapstructure:"admin_login"`
	AdminPassword string        `mapstructure:"admin_password"`
}

type BusinessConfig struct {
	MinDeposit           decimal.Decimal `mapstructure:"min_deposit"`
	MinWithdraw          decimal.Decimal `mapstructure:"min_withdraw"`
	DepositWalletAddress string          `mapstructure:"deposit_wallet_address"`
	OrderOfferTTL        time.Duration   `mapstructure:"order_offer_ttl"`
	OffersPerFetch       int             `mapstructure:"offers_per_fetch"`
	RejectCooldown       time.Duration   `mapstructure:"reject_cooldown"`
	CashbackVariation    decimal.Decimal `mapstructure:"cashback_variation"`
	Mining               MiningConfig    `mapstructure:"mining"`
	Spin                 SpinConfig      `mapstructure:"spin"`
}

type MiningConfig struct {
	TapReward decimal.Decimal `mapstructure:"tap_reward"`
	TapLimit  int             `mapstructure:"tap_limit"`
	Window    time.Duration   `mapstructure:"window"`
}

type SpinConfig struct {
	Prizes []PrizeConfig `mapstructure:"prizes"`
}

type PrizeConfig struct {
	Amount decimal.Decimal `mapstructure:"amount"`
	Weight int             `mapstructure:"weight"`
}

type JobsConfig struct {
	OutboxInterval    time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize   int           `mapstructure:"outbox_batch_size"`
	OutboxMaxRetry    int           `mapstructure:"outbox_max_retry"`
	OfferExpiryEvery  time.Duration `mapstructure:"offer_expiry_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReconcileLookback time.Duration `mapstructure:"reconcile_lookback"`
	BatchSize         int           `mapstructure:"batch_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cashmine")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.worker_id", 1)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "cashmine")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("sqlite.path", "cashmine.db")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.ledger_events", "cashmine.ledger.events")

	v.SetDefault("lock.driver", "redis")
	v.SetDefault("lock.ttl", "30s")
	v.SetDefault("lock.retry_interval", "50ms")
	v.SetDefault("lock.max_retries", 8)

	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.admin_login", "")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("business.min_deposit", "1000")
	v.SetDefault("business.min_withdraw", "250")
	v.SetDefault("business.deposit_wallet_address", "gLxo79237ALFOBQdmoq")
	v.SetDefault("business.order_offer_ttl", "30m")
	v.SetDefault("business.offers_per_fetch", 3)
	v.SetDefault("business.reject_cooldown", "60s")
	v.SetDefault("business.cashback_variation", "0")
	v.SetDefault("business.mining.tap_reward", "0.01")
	v.SetDefault("business.mining.tap_limit", 500)
	v.SetDefault("business.mining.window", "6h")
	v.SetDefault("business.spin.prizes", []map[string]interface{}{
		{"amount": "0.5", "weight": 30},
		{"amount": "1", "weight": 25},
		{"amount": "2", "weight": 20},
		{"amount": "5", "weight": 15},
		{"amount": "10", "weight": 7},
		{"amount": "20", "weight": 3},
	})

	v.SetDefault("jobs.outbox_interval", "200ms")
	v.SetDefault("jobs.outbox_batch_size", 100)
	v.SetDefault("jobs.outbox_max_retry", 5)
	v.SetDefault("jobs.offer_expiry_interval", "1m")
	v.SetDefault("jobs.reconcile_interval", "5m")
	v.SetDefault("jobs.reconcile_lookback", "10m")
	v.SetDefault("jobs.batch_size", 100)
}

// Load 加载配置：默认值 < 配置文件 < CASHMINE_* 环境变量。
// An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CASHMINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		decimalHook,
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot decode %T into decimal", data)
	}
}

func (c *Config) validate() error {
	if c.Business.Mining.TapLimit <= 0 {
		return fmt.Errorf("business.mining.tap_limit must be positive")
	}
	if c.Business.Mining.Window <= 0 {
		return fmt.Errorf("business.mining.window must be positive")
	}
	if len(c.Business.Spin.Prizes) == 0 {
		return fmt.Errorf("business.spin.prizes must not be empty")
	}
	for _, p := range c.Business.Spin.Prizes {
		if !p.Amount.IsPositive() || p.Weight <= 0 {
			return fmt.Errorf("business.spin.prizes: amount and weight must be positive")
		}
	}
	if c.Business.OffersPerFetch <= 0 {
		return fmt.Errorf("business.offers_per_fetch must be positive")
	}
	switch c.Lock.Driver {
	case "redis", "local":
	default:
		return fmt.Errorf("lock.driver must be redis or local, got %q", c.Lock.Driver)
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	return nil
}
