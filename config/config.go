package config

import (
	"os"
	"strconv"
	"strings"

	"kiosk-service/pkg/database"

	"go.uber.org/zap"
)

type Config struct {
	Port      string
	DB        DB
	Redis     Redis
	Kafka     Kafka
	S3        S3
	Catalog   Catalog
	Snowflake Snowflake
}

type DB struct {
	database.Config
}

type Redis struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	TTLSeconds int
}

type Kafka struct {
	Enabled       bool
	Brokers       []string
	PaymentsTopic string
	AuditGroupID  string
}

type S3 struct {
	Enabled   bool
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type Catalog struct {
	CASAttempts int
}

type Snowflake struct {
	Node int64
}

// ListenAddr адрес для http.Server. APP_PORT задаётся номером порта, ":8080" тоже принимается.
func (c *Config) ListenAddr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func Load(log *zap.Logger) *Config {
	redisEnabled := getEnvDefault("REDIS_ENABLED", "false") == "true"
	kafkaEnabled := getEnvDefault("KAFKA_ENABLED", "false") == "true"
	s3Enabled := getEnvDefault("S3_ENABLED", "false") == "true"

	cfg := &Config{
		Port: getEnv("APP_PORT", log),
		DB: DB{
			Config: database.Config{
				Host:     getEnv("DB_HOST", log),
				Port:     getEnv("DB_PORT", log),
				User:     getEnv("DB_USER", log),
				Password: getEnv("DB_PASSWORD", log),
				Name:     getEnv("DB_NAME", log),
				SSLMode:  getEnvDefault("DB_SSLMODE", "disable"),
			},
		},
		Redis: Redis{
			Enabled:    redisEnabled,
			TTLSeconds: atoiDefault(getEnvDefault("CACHE_TTL_SECONDS", ""), 60),
		},
		Kafka: Kafka{
			Enabled:       kafkaEnabled,
			PaymentsTopic: getEnvDefault("KAFKA_PAYMENTS_TOPIC", "kiosk.payments"),
			AuditGroupID:  getEnvDefault("KAFKA_AUDIT_GROUP", "kiosk-audit"),
		},
		S3: S3{
			Enabled:  s3Enabled,
			Bucket:   getEnvDefault("S3_BUCKET", "almaeng2"),
			Region:   getEnvDefault("S3_REGION", "ap-northeast-2"),
			Endpoint: getEnvDefault("S3_ENDPOINT", ""),
		},
		Catalog: Catalog{
			CASAttempts: atoiDefault(getEnvDefault("KIOSK_CAS_ATTEMPTS", ""), 5),
		},
		Snowflake: Snowflake{
			Node: int64(atoiDefault(getEnvDefault("SNOWFLAKE_NODE", ""), 1)),
		},
	}

	// Зависимые переменные обязательны только при включённой интеграции
	if redisEnabled {
		cfg.Redis.Addr = getEnv("REDIS_ADDR", log)
		cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
		cfg.Redis.DB = atoiDefault(getEnvDefault("REDIS_DB", ""), 0)
	}
	if kafkaEnabled {
		cfg.Kafka.Brokers = splitList(getEnv("KAFKA_BROKERS", log))
	}
	if s3Enabled {
		cfg.S3.AccessKey = getEnvDefault("AWS_ACCESS_KEY_ID", "")
		cfg.S3.SecretKey = getEnvDefault("AWS_SECRET_ACCESS_KEY", "")
	}

	return cfg
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
