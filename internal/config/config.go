package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int

	DBDriver         string
	DBDataSourceName string
	MigrationsDir    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockWaitTimeout  time.Duration
	LockLeaseTimeout time.Duration

	SchedulerInterval time.Duration
	BalanceCacheTTL   time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: could not load .env file")
	}

	config := &Config{}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.ServerPort = p
		}
	}
	if config.ServerPort == 0 {
		config.ServerPort = 8080
	}

	config.DBDriver = "postgres"

	dbHost := getEnvOrDefault("AUCTION_DB_HOST", "localhost")
	dbPort := getEnvOrDefault("AUCTION_DB_PORT", "5432")
	dbName := getEnvOrDefault("AUCTION_DB_DATABASE", "auctionDB")
	dbUser := getEnvOrDefault("AUCTION_DB_USERNAME", "root")
	dbPassword := getEnvOrDefault("AUCTION_DB_PASSWORD", "1234")

	config.DBDataSourceName = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName)
	config.MigrationsDir = getEnvOrDefault("MIGRATIONS_DIR", "migrations")

	redisHost := getEnvOrDefault("AUCTION_REDIS_HOST", "localhost")
	redisPort := getEnvOrDefault("AUCTION_REDIS_PORT", "6379")
	config.RedisAddr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	config.RedisPassword = os.Getenv("AUCTION_REDIS_PASSWORD")
	if db := os.Getenv("AUCTION_REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.RedisDB = d
		}
	}

	config.LockWaitTimeout = getDurationOrDefault("LOCK_WAIT_TIMEOUT", 3*time.Second)
	config.LockLeaseTimeout = getDurationOrDefault("LOCK_LEASE_TIMEOUT", 5*time.Second)
	config.SchedulerInterval = getDurationOrDefault("SCHEDULER_INTERVAL", 10*time.Second)
	config.BalanceCacheTTL = getDurationOrDefault("BALANCE_CACHE_TTL", time.Minute)

	if config.LockWaitTimeout <= 0 || config.LockLeaseTimeout <= 0 {
		return nil, fmt.Errorf("lock timeouts must be positive durations")
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
