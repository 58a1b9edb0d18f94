package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"uxcellence/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

type Config struct {
	Port        string
	BindAddress string
	StoreDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	JWTSecret     string
	SessionTTL    time.Duration
	APIKey        string
	AdminName     string
	AdminPassword string

	CountdownSeconds     int
	AutoCountdown        bool
	EnforceRoundCapacity bool

	NATSURL           string
	NATSSubjectPrefix string
	PGNotifyChannel   string

	RoundsFile string
	Rounds     []models.Round

	LogLevel  string
	LogPretty bool
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", ""),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "uxcellence"),
		DBPassword: getEnv("DB_PASSWORD", "uxcellence"),
		DBName:     getEnv("DB_NAME", "uxcellence"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "./uxcellence.db"),

		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", ""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		SessionTTL:    time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 12)) * time.Hour,
		APIKey:        getEnv("API_KEY", ""),
		AdminName:     getEnv("ADMIN_NAME", "uxcellence"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		CountdownSeconds:     getEnvAsInt("COUNTDOWN_SECONDS", 3),
		AutoCountdown:        getEnvAsBool("AUTO_COUNTDOWN", false),
		EnforceRoundCapacity: getEnvAsBool("ENFORCE_ROUND_CAPACITY", false),

		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "uxcellence.events"),
		PGNotifyChannel:   getEnv("PG_NOTIFY_CHANNEL", ""),

		RoundsFile: getEnv("ROUNDS_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverSQLite, DriverRedis:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is required")
	}
	if cfg.CountdownSeconds <= 0 {
		return nil, fmt.Errorf("COUNTDOWN_SECONDS must be positive, got %d", cfg.CountdownSeconds)
	}

	rounds := DefaultRounds()
	if cfg.RoundsFile != "" {
		loaded, err := LoadRounds(cfg.RoundsFile)
		if err != nil {
			return nil, err
		}
		rounds = loaded
	}
	cfg.Rounds = rounds

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.BindAddress + ":" + c.Port
}

// PostgresURL is the connection URL used by golang-migrate and the LISTEN/NOTIFY listener.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	switch cfg.StoreDriver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("driver", cfg.StoreDriver).Msg("database connected")
	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
