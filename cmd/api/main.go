package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agendou/api/internal/booking"
	"github.com/agendou/api/internal/consumer"
	"github.com/agendou/api/internal/handlers"
	"github.com/agendou/api/internal/inbox"
	"github.com/agendou/api/internal/outbox"
	"github.com/agendou/api/internal/payments"
	"github.com/agendou/api/internal/storage"
	"github.com/agendou/api/internal/whatsapp"
	"github.com/agendou/api/libs/config"
	"github.com/agendou/api/libs/db"
	"github.com/agendou/api/libs/httpx"
	"github.com/agendou/api/libs/kafkax"
	otelx "github.com/agendou/api/libs/otel"
	"github.com/agendou/api/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "agendou-api")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	users := storage.NewUserRepository(pool)
	services := storage.NewServiceRepository(pool)
	hours := storage.NewBusinessHourRepository(pool)
	appts := storage.NewAppointmentRepository(pool)
	notifications := storage.NewNotificationRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	sender := newSender(logger)

	pendingTTL, err := config.Duration("VERIFICATION_TTL", booking.DefaultPendingTTL)
	if err != nil {
		logger.Warn("invalid VERIFICATION_TTL; using default", "err", err)
		pendingTTL = booking.DefaultPendingTTL
	}
	bookingSvc := booking.NewService(appts, services, users, hours, outboxRepo, sender, logger, booking.Config{
		PendingTTL: pendingTTL,
	})

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	eventHandlers := consumer.NewHandlers(users, services, notifications, sender, logger)
	groupID := config.String("KAFKA_GROUP_ID", "agendou-api")
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(brokers) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer(outbox.TopicAppointmentConfirmed, eventHandlers.AppointmentConfirmed)
	startConsumer(outbox.TopicAppointmentCancelled, eventHandlers.AppointmentCancelled)
	startConsumer(outbox.TopicPaymentMarked, eventHandlers.PaymentMarked)

	sweeper := booking.NewSweeper(appts, outboxRepo, logger, booking.SweeperConfig{
		PendingTTL: pendingTTL,
	})
	go sweeper.Run(ctx)

	deposits := payments.NewProvider(
		config.String("STRIPE_SECRET_KEY", ""),
		config.String("STRIPE_CURRENCY", "brl"),
		logger,
	)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	tokenTTL, err := config.Duration("JWT_TTL", 24*time.Hour)
	if err != nil {
		logger.Warn("invalid JWT_TTL; using default", "err", err)
		tokenTTL = 24 * time.Hour
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if strings.TrimSpace(brokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	handlers.Routes{
		Auth:          handlers.NewAuthHandler(users, jwtSecret, tokenTTL, logger),
		Catalog:       handlers.NewCatalogHandler(services, hours, logger),
		Appointments:  handlers.NewAppointmentHandler(bookingSvc, logger),
		Payments:      handlers.NewPaymentHandler(bookingSvc, deposits, logger),
		Notifications: handlers.NewNotificationHandler(notifications, logger),
		JWTSecret:     jwtSecret,
	}.Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		rateLimitMiddleware(logger),
	)
	handler = otelhttp.NewHandler(handler, "api")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// newSender picks the WhatsApp transport. Without Z-API credentials the
// codes go to the log only, which keeps local flows usable.
func newSender(logger *slog.Logger) whatsapp.Sender {
	instanceID := config.String("ZAPI_INSTANCE_ID", "")
	if strings.TrimSpace(instanceID) == "" {
		logger.Warn("ZAPI_INSTANCE_ID not set; whatsapp sends are no-ops")
		return whatsapp.NewNoopSender()
	}
	return whatsapp.NewZAPISender(whatsapp.ZAPIConfig{
		BaseURL:     config.String("ZAPI_BASE_URL", ""),
		InstanceID:  instanceID,
		Token:       config.String("ZAPI_TOKEN", ""),
		ClientToken: config.String("ZAPI_CLIENT_TOKEN", ""),
	})
}

func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limitPerMinute := 60
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "60")); err == nil && v > 0 {
		limitPerMinute = v
	}

	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
		return rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
	}

	rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	return rl.Middleware()
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
