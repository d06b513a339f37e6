// Command stagecast starts the broadcast control service: the reducer-backed
// state store, the signal dispatch loop, and the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stagecast/internal/app"
	"stagecast/internal/journal"
	"stagecast/internal/media"
	"stagecast/internal/notify"
	"stagecast/internal/observability/logging"
	"stagecast/internal/observability/metrics"
	"stagecast/internal/server"
	sig "stagecast/internal/signal"
	"stagecast/internal/store"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "runtime mode (development or production)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	journalDriver := flag.String("journal-driver", "", "journal driver (memory or postgres)")
	journalTable := flag.String("journal-table", "", "Postgres table for the action journal")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string for the journal")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when opening a Postgres connection")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	queueDriver := flag.String("signal-queue-driver", "", "signal queue driver (memory or redis)")
	queueBuffer := flag.Int("signal-queue-buffer", 0, "buffer size for queued signals per subscriber")
	queueRedisAddr := flag.String("signal-queue-redis-addr", "", "Redis address for signal queue transport")
	queueRedisAddrs := flag.String("signal-queue-redis-addrs", "", "comma separated Redis addresses for signal queue transport")
	queueRedisUsername := flag.String("signal-queue-redis-username", "", "Redis username for signal queue")
	queueRedisPassword := flag.String("signal-queue-redis-password", "", "Redis password for signal queue")
	queueRedisStream := flag.String("signal-queue-redis-stream", "", "Redis stream key for signal events")
	queueRedisGroup := flag.String("signal-queue-redis-group", "", "Redis consumer group for signal events")
	queueRedisMasterName := flag.String("signal-queue-redis-sentinel-master", "", "Redis sentinel master name for signal queue")
	queueRedisPoolSize := flag.Int("signal-queue-redis-pool-size", 0, "maximum Redis connections for signal queue")
	queueRedisTLSCA := flag.String("signal-queue-redis-tls-ca", "", "path to Redis TLS CA certificate for signal queue")
	queueRedisTLSCert := flag.String("signal-queue-redis-tls-cert", "", "path to Redis TLS client certificate for signal queue")
	queueRedisTLSKey := flag.String("signal-queue-redis-tls-key", "", "path to Redis TLS client key for signal queue")
	queueRedisTLSServerName := flag.String("signal-queue-redis-tls-server-name", "", "override Redis TLS server name for signal queue")
	queueRedisTLSSkipVerify := flag.Bool("signal-queue-redis-tls-skip-verify", false, "skip Redis TLS verification for signal queue")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	dispatchLimit := flag.Int("rate-dispatch-limit", 0, "maximum action dispatches per window for a single IP")
	dispatchWindow := flag.Duration("rate-dispatch-window", 0, "window for counting action dispatches")
	rateRedisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed dispatch throttling")
	rateRedisPassword := flag.String("rate-redis-password", "", "Redis password for distributed dispatch throttling")
	rateRedisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis rate limit operations")
	consoleOrigins := flag.String("console-origins", "", "comma separated origins allowed for the producer console")
	viewerOrigins := flag.String("viewer-origins", "", "comma separated origins allowed for viewer surfaces")
	dispatchTokenHash := flag.String("dispatch-token-hash", "", "PBKDF2 hash guarding the dispatch and signal routes")
	clockInterval := flag.Duration("clock-interval", 0, "show clock refresh interval")
	shutdownTimeout := flag.Duration("shutdown-timeout", 0, "graceful shutdown timeout")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("STAGECAST_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("STAGECAST_LOG_FORMAT")),
	})
	recorder := metrics.Default()

	runMode := modeValue(*mode, os.Getenv("STAGECAST_MODE"))
	listenAddr := resolveListenAddr(*addr, runMode, os.Getenv("STAGECAST_ADDR"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journalDSN := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveJournalDriver(*journalDriver, os.Getenv("STAGECAST_JOURNAL_DRIVER"), journalDSN)
	if err != nil {
		logger.Error("failed to resolve journal driver", "error", err)
		os.Exit(1)
	}
	if runMode == "production" && driver != "postgres" {
		logger.Error("production mode requires the postgres journal driver", "driver", driver)
		os.Exit(1)
	}

	var actionJournal journal.Journal
	switch driver {
	case "memory":
		actionJournal = journal.NewMemoryJournal()
	case "postgres":
		if journalDSN == "" {
			logger.Error("postgres journal selected without DSN")
			os.Exit(1)
		}
		actionJournal, err = journal.NewPostgresJournal(ctx, journal.PostgresConfig{
			DSN:                 journalDSN,
			Table:               firstNonEmpty(*journalTable, os.Getenv("STAGECAST_JOURNAL_TABLE")),
			MaxConnections:      int32(resolveInt(*postgresMaxConns, "STAGECAST_POSTGRES_MAX_CONNS")),
			MinConnections:      int32(resolveInt(*postgresMinConns, "STAGECAST_POSTGRES_MIN_CONNS")),
			MaxConnLifetime:     resolveDuration(*postgresMaxConnLifetime, "STAGECAST_POSTGRES_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime:     resolveDuration(*postgresMaxConnIdle, "STAGECAST_POSTGRES_MAX_CONN_IDLE", 0),
			HealthCheckInterval: resolveDuration(*postgresHealthInterval, "STAGECAST_POSTGRES_HEALTH_INTERVAL", 0),
			ConnectTimeout:      resolveDuration(*postgresConnectTimeout, "STAGECAST_POSTGRES_CONNECT_TIMEOUT", 0),
			ApplicationName:     firstNonEmpty(*postgresAppName, os.Getenv("STAGECAST_POSTGRES_APP_NAME")),
		})
		if err != nil {
			logger.Error("failed to open journal", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unsupported journal driver", "driver", driver)
		os.Exit(1)
	}

	mediaController := media.LogController{Logger: logging.WithComponent(logger, "media")}
	st := store.New(store.Config{
		Journal: actionJournal,
		Media:   mediaController,
		Logger:  logging.WithComponent(logger, "store"),
	})

	queueCfg := sig.RedisQueueConfig{
		Addr:       firstNonEmpty(*queueRedisAddr, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_ADDR")),
		Addrs:      splitAndTrim(firstNonEmpty(*queueRedisAddrs, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_ADDRS"))),
		Username:   firstNonEmpty(*queueRedisUsername, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_USERNAME")),
		Password:   firstNonEmpty(*queueRedisPassword, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_PASSWORD")),
		Stream:     firstNonEmpty(*queueRedisStream, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_STREAM")),
		Group:      firstNonEmpty(*queueRedisGroup, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_GROUP")),
		MasterName: firstNonEmpty(*queueRedisMasterName, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_SENTINEL_MASTER")),
		PoolSize:   resolveInt(*queueRedisPoolSize, "STAGECAST_SIGNAL_QUEUE_REDIS_POOL_SIZE"),
		Buffer:     resolveInt(*queueBuffer, "STAGECAST_SIGNAL_QUEUE_BUFFER"),
		TLS: sig.RedisTLSConfig{
			CAFile:             firstNonEmpty(*queueRedisTLSCA, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_TLS_CA")),
			CertFile:           firstNonEmpty(*queueRedisTLSCert, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_TLS_CERT")),
			KeyFile:            firstNonEmpty(*queueRedisTLSKey, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_TLS_KEY")),
			ServerName:         firstNonEmpty(*queueRedisTLSServerName, os.Getenv("STAGECAST_SIGNAL_QUEUE_REDIS_TLS_SERVER_NAME")),
			InsecureSkipVerify: resolveBool(*queueRedisTLSSkipVerify, "STAGECAST_SIGNAL_QUEUE_REDIS_TLS_SKIP_VERIFY"),
		},
	}
	queue, err := configureSignalQueue(*queueDriver, queueCfg, logger)
	if err != nil {
		logger.Error("failed to configure signal queue", "error", err)
		os.Exit(1)
	}

	rateCfg := server.RateLimitConfig{
		GlobalRPS:      resolveFloat(*globalRPS, "STAGECAST_RATE_GLOBAL_RPS"),
		GlobalBurst:    resolveInt(*globalBurst, "STAGECAST_RATE_GLOBAL_BURST"),
		DispatchLimit:  resolveInt(*dispatchLimit, "STAGECAST_RATE_DISPATCH_LIMIT"),
		DispatchWindow: resolveDuration(*dispatchWindow, "STAGECAST_RATE_DISPATCH_WINDOW", time.Minute),
		RedisAddr:      firstNonEmpty(*rateRedisAddr, os.Getenv("STAGECAST_RATE_REDIS_ADDR")),
		RedisPassword:  firstNonEmpty(*rateRedisPassword, os.Getenv("STAGECAST_RATE_REDIS_PASSWORD")),
		RedisTimeout:   resolveDuration(*rateRedisTimeout, "STAGECAST_RATE_REDIS_TIMEOUT", 2*time.Second),
	}

	srv, err := server.New(st, queue, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("STAGECAST_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("STAGECAST_TLS_KEY")),
		},
		RateLimit: rateCfg,
		CORS: server.CORSConfig{
			ConsoleOrigins: splitAndTrim(firstNonEmpty(*consoleOrigins, os.Getenv("STAGECAST_CONSOLE_ORIGINS"))),
			ViewerOrigins:  splitAndTrim(firstNonEmpty(*viewerOrigins, os.Getenv("STAGECAST_VIEWER_ORIGINS"))),
		},
		Logger:    logger,
		Metrics:   recorder,
		TokenHash: firstNonEmpty(*dispatchTokenHash, os.Getenv("STAGECAST_DISPATCH_TOKEN_HASH")),
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	application, err := app.New(app.Config{
		Store:  st,
		Server: srv,
		Queue:  queue,
		Translator: sig.Translator{
			Media:    mediaController,
			Notifier: notify.LogNotifier{Logger: logging.WithComponent(logger, "notify")},
			Logger:   logging.WithComponent(logger, "signals"),
		},
		Logger:          logger,
		ClockInterval:   resolveDuration(*clockInterval, "STAGECAST_CLOCK_INTERVAL", 0),
		ShutdownTimeout: resolveDuration(*shutdownTimeout, "STAGECAST_SHUTDOWN_TIMEOUT", 0),
	})
	if err != nil {
		logger.Error("failed to assemble runtime", "error", err)
		os.Exit(1)
	}

	logger.Info("stagecast listening", "addr", listenAddr, "mode", runMode, "journal", driver)
	logger.Info("metrics endpoint available", "path", "/metrics")

	runErr := application.Run(ctx)
	stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := actionJournal.Close(closeCtx); err != nil {
		logger.Warn("failed to close journal", "error", err)
	}

	if runErr != nil {
		logger.Error("runtime error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func configureSignalQueue(driver string, cfg sig.RedisQueueConfig, logger *slog.Logger) (sig.Queue, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = strings.ToLower(strings.TrimSpace(os.Getenv("STAGECAST_SIGNAL_QUEUE_DRIVER")))
	}
	switch driver {
	case "redis":
		if len(cfg.Addrs) == 0 && strings.TrimSpace(cfg.Addr) == "" {
			return nil, fmt.Errorf("redis addr is required for signal queue")
		}
		cfg.Logger = logging.WithComponent(logger, "signal-queue")
		return sig.NewRedisQueue(cfg)
	case "", "memory":
		buffer := cfg.Buffer
		if buffer <= 0 {
			buffer = 128
		}
		return sig.NewMemoryQueue(buffer), nil
	default:
		return nil, fmt.Errorf("unsupported signal queue driver %q", driver)
	}
}

func resolveJournalDriver(flagValue, envValue, postgresDSN string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres", nil
	}
	return "memory", nil
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("STAGECAST_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
