package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	CORSOrigins       string `mapstructure:"CORS_ORIGINS"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisAuthDB   int    `mapstructure:"REDIS_AUTH_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Store.
	StoreCountry         string `mapstructure:"STORE_COUNTRY"`
	StoreCurrency        string `mapstructure:"STORE_CURRENCY"`
	CurrencyPosition     string `mapstructure:"CURRENCY_POSITION"`
	ThousandSeparator    string `mapstructure:"CURRENCY_THOUSAND_SEPARATOR"`
	DecimalSeparator     string `mapstructure:"CURRENCY_DECIMAL_SEPARATOR"`
	CurrencyDecimals     int32  `mapstructure:"CURRENCY_DECIMALS"`
	StripeGatewayEnabled bool   `mapstructure:"STRIPE_GATEWAY_ENABLED"`
	CanadaEnabled        bool   `mapstructure:"CANADA_ENABLED"`

	// Stripe.
	StripeKey              string        `mapstructure:"STRIPE_SECRET_KEY"`
	StripeConnectedAccount string        `mapstructure:"STRIPE_CONNECTED_ACCOUNT"`
	StripeLocationID       string        `mapstructure:"STRIPE_TERMINAL_LOCATION"`
	ReaderPollInterval     time.Duration `mapstructure:"READER_POLL_INTERVAL"`

	// Commerce backend used for eligibility.
	CommerceAPIURL     string        `mapstructure:"COMMERCE_API_URL"`
	CommerceAPIToken   string        `mapstructure:"COMMERCE_API_TOKEN"`
	CommerceAPITimeout time.Duration `mapstructure:"COMMERCE_API_TIMEOUT"`

	// Session timeouts and retry.
	EligibilityTimeout   time.Duration `mapstructure:"ELIGIBILITY_TIMEOUT"`
	DiscoveryTimeout     time.Duration `mapstructure:"READER_DISCOVERY_TIMEOUT"`
	ConnectTimeout       time.Duration `mapstructure:"READER_CONNECT_TIMEOUT"`
	CollectTimeout       time.Duration `mapstructure:"COLLECT_TIMEOUT"`
	ProcessTimeout       time.Duration `mapstructure:"PROCESS_TIMEOUT"`
	CleanupTimeout       time.Duration `mapstructure:"CLEANUP_TIMEOUT"`
	ConnectMaxRetries    uint64        `mapstructure:"CONNECT_MAX_RETRIES"`
	ConnectRetryInterval time.Duration `mapstructure:"CONNECT_RETRY_INTERVAL"`
	ReaderLockTTL        time.Duration `mapstructure:"READER_LOCK_TTL"`

	// Kafka transition events; empty brokers disables publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_AUTH_DB", 1)
	v.SetDefault("REDIS_QUEUE_DB", 2)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "cardpresent")

	v.SetDefault("STORE_COUNTRY", "US")
	v.SetDefault("STORE_CURRENCY", "USD")
	v.SetDefault("CURRENCY_POSITION", "left")
	v.SetDefault("CURRENCY_THOUSAND_SEPARATOR", ",")
	v.SetDefault("CURRENCY_DECIMAL_SEPARATOR", ".")
	v.SetDefault("CURRENCY_DECIMALS", 2)
	v.SetDefault("STRIPE_GATEWAY_ENABLED", false)
	v.SetDefault("CANADA_ENABLED", false)

	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_CONNECTED_ACCOUNT", "")
	v.SetDefault("STRIPE_TERMINAL_LOCATION", "")
	v.SetDefault("READER_POLL_INTERVAL", "1s")

	v.SetDefault("COMMERCE_API_URL", "http://localhost:8081/api")
	v.SetDefault("COMMERCE_API_TOKEN", "")
	v.SetDefault("COMMERCE_API_TIMEOUT", "10s")

	v.SetDefault("ELIGIBILITY_TIMEOUT", "10s")
	v.SetDefault("READER_DISCOVERY_TIMEOUT", "15s")
	v.SetDefault("READER_CONNECT_TIMEOUT", "30s")
	v.SetDefault("COLLECT_TIMEOUT", "2m")
	v.SetDefault("PROCESS_TIMEOUT", "30s")
	v.SetDefault("CLEANUP_TIMEOUT", "10s")
	v.SetDefault("CONNECT_MAX_RETRIES", 3)
	v.SetDefault("CONNECT_RETRY_INTERVAL", "500ms")
	v.SetDefault("READER_LOCK_TTL", "5m")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "card-present-transitions")
}

// Load reads config.yaml (from . or ./config), a .env file and the environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreCountry = strings.ToUpper(strings.TrimSpace(cfg.StoreCountry))
	if cfg.ConnectTimeout <= 0 || cfg.CollectTimeout <= 0 || cfg.ProcessTimeout <= 0 {
		return Config{}, fmt.Errorf("session timeouts must be positive")
	}
	return cfg, nil
}

// LoadConfig fills AppConfig and exits on failure.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// Brokers splits KAFKA_BROKERS on commas.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
