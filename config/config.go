package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Payments PaymentsConfig
	MTNMoMo  MTNMoMoConfig
	Paystack PaystackConfig
	SMS      SMSConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level        string
	ActivityFile string
}

type PaymentsConfig struct {
	Currency        string
	CountryDialCode string
	PublicBaseURL   string

	PendingTimeout      time.Duration
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type MTNMoMoConfig struct {
	Enabled           bool
	BaseURL           string
	SubscriptionKey   string
	APIUser           string
	APIKey            string
	TargetEnvironment string
	HTTPTimeout       time.Duration
}

type PaystackConfig struct {
	Enabled     bool
	BaseURL     string
	SecretKey   string
	HTTPTimeout time.Duration
}

type SMSConfig struct {
	Enabled     bool
	GatewayURL  string
	APIKey      string
	SenderID    string
	HTTPTimeout time.Duration
}

type JobsConfig struct {
	ReconcileInterval     time.Duration
	ExpirePendingInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "revenue-payments"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			ActivityFile: getEnv("LOG_ACTIVITY_FILE", ""),
		},
		Payments: PaymentsConfig{
			Currency:            getEnv("PAYMENTS_CURRENCY", "GHS"),
			CountryDialCode:     getEnv("PAYMENTS_COUNTRY_DIAL_CODE", "233"),
			PublicBaseURL:       getEnv("PAYMENTS_PUBLIC_BASE_URL", ""),
			PendingTimeout:      getMinutesEnv("PAYMENTS_PENDING_TIMEOUT_MINUTES", 60*time.Minute),
			ReconcileStaleAfter: getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		MTNMoMo: MTNMoMoConfig{
			Enabled:           getBoolEnv("MTNMOMO_ENABLED", false),
			BaseURL:           getEnv("MTNMOMO_BASE_URL", "https://sandbox.momodeveloper.mtn.com"),
			SubscriptionKey:   getEnv("MTNMOMO_SUBSCRIPTION_KEY", ""),
			APIUser:           getEnv("MTNMOMO_API_USER", ""),
			APIKey:            getEnv("MTNMOMO_API_KEY", ""),
			TargetEnvironment: getEnv("MTNMOMO_TARGET_ENVIRONMENT", "sandbox"),
			HTTPTimeout:       getSecondsEnv("MTNMOMO_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Paystack: PaystackConfig{
			Enabled:     getBoolEnv("PAYSTACK_ENABLED", false),
			BaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
			HTTPTimeout: getSecondsEnv("PAYSTACK_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		SMS: SMSConfig{
			Enabled:     getBoolEnv("SMS_ENABLED", false),
			GatewayURL:  getEnv("SMS_GATEWAY_URL", ""),
			APIKey:      getEnv("SMS_API_KEY", ""),
			SenderID:    getEnv("SMS_SENDER_ID", "REVENUE"),
			HTTPTimeout: getSecondsEnv("SMS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Jobs: JobsConfig{
			ReconcileInterval:     getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			ExpirePendingInterval: getMinutesEnv("PAYMENTS_EXPIRE_PENDING_INTERVAL_MINUTES", 10*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
