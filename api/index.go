package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"tinedy-api/res/auth"
	"tinedy-api/res/events"
	"tinedy-api/res/events/rabbitmq"
	"tinedy-api/res/notification"
	"tinedy-api/res/notification/slack"
	"tinedy-api/res/ratelimit"
	"tinedy-api/res/store"
	"tinedy-api/res/store/memory"
	"tinedy-api/res/store/postgresql"
	"tinedy-api/sys/booking"
	"tinedy-api/sys/http/middleware"
	"tinedy-api/sys/rest"

	"github.com/redis/go-redis/v9"
)

var logger = log.New(os.Stdout, "", log.LstdFlags|log.LUTC|log.Llongfile)

// CONFIGURATION CONVENTION:
// All environment variable configuration is centralized in this file (api/index.go).
// This provides a single location to view all configuration requirements and ensures
// consistent handling of environment variables across the application.
//
// REQUIRED Environment Variables (minimum to run):
// - AUTH_JWT_SECRET: HS256 secret the identity provider signs session tokens with
// - DATABASE_POSTGRES_URL: PostgreSQL connection string (not needed with STORE_DRIVER=memory)
//
// OPTIONAL Environment Variables (with graceful degradation):
// - ENVIRONMENT: development|production (default: development)
// - FRONTEND_URL: admin frontend origin allowed by CORS in production
// - STORE_DRIVER: postgres|memory (default: postgres)
// - MIGRATIONS_PATH: migration source (default: file://migrations)
// - DATABASE_MAX_OPEN_CONNS, DATABASE_MAX_IDLE_CONNS: pool size (default: 10, 5)
// - DATABASE_CONN_MAX_LIFETIME_MINUTES: connection recycling (default: 30)
// - RATE_LIMIT_BACKEND: memory|redis (default: memory)
// - RATE_LIMIT_ADMIN: status changes per window for admins (default: 20)
// - RATE_LIMIT_OPERATOR: status changes per window for operators (default: 10)
// - RATE_LIMIT_WINDOW_SECONDS: rate limit window (default: 60)
// - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: shared rate limit backend
// - AMQP_URL: RabbitMQ URL for booking events (optional)
// - AMQP_EXCHANGE: topic exchange for booking events (default: tinedy.bookings)
// - SLACK_WEBHOOK_URL: Slack webhook URL for notifications (optional)
// - SLACK_TIMEOUT_SECONDS: Timeout for notification API requests in seconds (default: 5)

// Global service instances initialized once
var (
	storeInstance               store.Store
	authInstance                auth.Auth
	limiterInstance             ratelimit.Limiter
	eventsInstance              events.Publisher
	notificationServiceInstance notification.NotificationService
	handlerInstance             http.Handler
	initOnce                    sync.Once
	initError                   error
)

func Handler(w http.ResponseWriter, r *http.Request) {
	// Initialize services only once using sync.Once
	initOnce.Do(func() {
		storeInstance, initError = configStore()
		if initError != nil {
			return
		}

		authInstance = configAuth()
		limiterInstance = configRateLimiter()
		eventsInstance = configEvents()
		notificationServiceInstance = configNotification()

		bookingService := booking.New(&booking.Config{
			Logger:              logger,
			Store:               storeInstance,
			Events:              eventsInstance,
			NotificationService: notificationServiceInstance,
		})

		handlerInstance = rest.New(&rest.Config{
			Logger:   logger,
			Store:    storeInstance,
			Bookings: bookingService,
			Auth:     authInstance,
			Limiter:  limiterInstance,
			CORS: middleware.CORSOptions{
				Environment:   readOptionalEnvVar("ENVIRONMENT", "development"),
				AllowedOrigin: readOptionalEnvVar("FRONTEND_URL", "https://admin.tinedy.com"),
			},
		})
	})

	if initError != nil {
		logger.Fatalf("Failed to initialize services: %v", initError)
	}

	handlerInstance.ServeHTTP(w, r)
}

// Shutdown releases connections opened by Handler
func Shutdown() {
	if eventsInstance != nil {
		if err := eventsInstance.Close(); err != nil {
			logger.Printf("Warning: Failed to close event publisher: %v", err)
		}
	}
}

func readRequiredEnvVar(name string) string {
	val, ok := os.LookupEnv(name)
	if !ok {
		logger.Fatalf("Env variable not set: %s", name)
	}
	return val
}

func readOptionalEnvVar(name, defaultValue string) string {
	val, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	return val
}

func readOptionalIntEnvVar(name string, defaultValue int) int {
	raw := readOptionalEnvVar(name, "")
	if raw == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		logger.Printf("Warning: %s=%q is not a positive integer, using %d", name, raw, defaultValue)
		return defaultValue
	}
	return val
}

func configStore() (store.Store, error) {
	switch driver := readOptionalEnvVar("STORE_DRIVER", "postgres"); driver {
	case "memory":
		logger.Printf("STORE_DRIVER=memory, bookings are kept in process and lost on restart")
		return memory.New(), nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}

	connectionUrl := readRequiredEnvVar("DATABASE_POSTGRES_URL")
	if err := postgresql.Migrate(readOptionalEnvVar("MIGRATIONS_PATH", "file://migrations"), connectionUrl); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	rawStore, err := postgresql.Connect(connectionUrl, postgresql.PoolOptions{
		MaxOpenConns:    readOptionalIntEnvVar("DATABASE_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    readOptionalIntEnvVar("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(readOptionalIntEnvVar("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	return rawStore, nil
}

func configAuth() auth.Auth {
	return auth.New(readRequiredEnvVar("AUTH_JWT_SECRET"))
}

func configRateLimiter() ratelimit.Limiter {
	limits := ratelimit.Limits{
		Admin:    readOptionalIntEnvVar("RATE_LIMIT_ADMIN", ratelimit.DefaultLimits.Admin),
		Operator: readOptionalIntEnvVar("RATE_LIMIT_OPERATOR", ratelimit.DefaultLimits.Operator),
		Window:   time.Duration(readOptionalIntEnvVar("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}

	if readOptionalEnvVar("RATE_LIMIT_BACKEND", "memory") != "redis" {
		return ratelimit.NewMemoryLimiter(limits)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     readOptionalEnvVar("REDIS_ADDR", "localhost:6379"),
		Password: readOptionalEnvVar("REDIS_PASSWORD", ""),
		DB:       readOptionalIntEnvVar("REDIS_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Printf("Warning: Redis unavailable (%v), using in-process rate limiting", err)
		_ = client.Close()
		return ratelimit.NewMemoryLimiter(limits)
	}
	return ratelimit.NewRedisLimiter(client, limits, logger)
}

func configEvents() events.Publisher {
	url := readOptionalEnvVar("AMQP_URL", "")
	if url == "" {
		logger.Printf("AMQP_URL not set, booking events disabled")
		return nil
	}

	publisher, err := rabbitmq.New(url, readOptionalEnvVar("AMQP_EXCHANGE", "tinedy.bookings"), logger)
	if err != nil {
		logger.Printf("Warning: Failed to connect to RabbitMQ, booking events disabled: %v", err)
		return nil
	}
	return publisher
}

// notificationTimeout bounds each webhook call. Malformed values keep the default.
func notificationTimeout() time.Duration {
	return time.Duration(readOptionalIntEnvVar("SLACK_TIMEOUT_SECONDS", 5)) * time.Second
}

func configNotification() notification.NotificationService {
	webhookURL := readOptionalEnvVar("SLACK_WEBHOOK_URL", "")
	if webhookURL == "" {
		logger.Printf("SLACK_WEBHOOK_URL not set, notifications disabled")
		return nil
	}

	return slack.New(webhookURL, notificationTimeout(), logger)
}
