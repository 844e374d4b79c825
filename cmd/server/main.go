// Command server starts the photo vault HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"photovault/internal/api"
	"photovault/internal/auth"
	"photovault/internal/observability/logging"
	"photovault/internal/observability/metrics"
	"photovault/internal/server"
	"photovault/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	storageDriver := flag.String("storage-driver", "", "datastore driver (memory or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when establishing a Postgres connection")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	sessionStoreDriver := flag.String("session-store", "", "session store driver (memory, postgres, or redis)")
	sessionPostgresDSN := flag.String("session-postgres-dsn", "", "Postgres DSN for the session store")
	sessionRedisAddr := flag.String("session-redis-addr", "", "Redis address for the session store")
	sessionRedisPassword := flag.String("session-redis-password", "", "Redis password for the session store")
	sessionRedisDB := flag.Int("session-redis-db", 0, "Redis logical database for the session store")
	sessionRedisTimeout := flag.Duration("session-redis-timeout", 0, "timeout for Redis session store operations")
	sessionTTL := flag.Duration("session-ttl", 0, "lifetime of issued session tokens")
	sessionPurgeInterval := flag.Duration("session-purge-interval", 0, "interval between expired session sweeps")
	maxUploadBytes := flag.Int64("max-upload-bytes", 0, "maximum size of a photo upload request body")
	uploadConcurrency := flag.Int64("upload-concurrency", 0, "maximum photo uploads held in memory at once")
	corsOrigins := flag.String("cors-allowed-origins", "", "comma separated browser origins allowed to call the API")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("PHOTOVAULT_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("PHOTOVAULT_LOG_FORMAT")),
	})
	recorder := metrics.Default()

	serverMode := modeValue(*mode, os.Getenv("PHOTOVAULT_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("PHOTOVAULT_ADDR"))

	postgresDefaultDSN := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveStorageDriver(*storageDriver, os.Getenv("PHOTOVAULT_STORAGE_DRIVER"), postgresDefaultDSN)
	if err != nil {
		logger.Error("failed to resolve storage driver", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" {
		if err := validateProductionDatastore(driver, postgresDefaultDSN); err != nil {
			logger.Error("production datastore validation failed", "error", err)
			os.Exit(1)
		}
	}

	var (
		store              storage.Repository
		storagePostgresDSN string
	)
	switch driver {
	case "memory":
		store = storage.NewMemory()
	case "postgres":
		storagePostgresDSN = postgresDefaultDSN
		if storagePostgresDSN == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		pgCfg := storage.PostgresConfig{
			DSN:                 storagePostgresDSN,
			MaxConnections:      int32(resolveInt(*postgresMaxConns, "PHOTOVAULT_POSTGRES_MAX_CONNS")),
			MinConnections:      int32(resolveInt(*postgresMinConns, "PHOTOVAULT_POSTGRES_MIN_CONNS")),
			MaxConnLifetime:     resolveDuration(*postgresMaxConnLifetime, "PHOTOVAULT_POSTGRES_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime:     resolveDuration(*postgresMaxConnIdle, "PHOTOVAULT_POSTGRES_MAX_CONN_IDLE", 0),
			HealthCheckInterval: resolveDuration(*postgresHealthInterval, "PHOTOVAULT_POSTGRES_HEALTH_INTERVAL", 0),
			ConnectTimeout:      resolveDuration(*postgresConnectTimeout, "PHOTOVAULT_POSTGRES_CONNECT_TIMEOUT", 0),
			ApplicationName:     firstNonEmpty(*postgresAppName, os.Getenv("PHOTOVAULT_POSTGRES_APP_NAME")),
		}
		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		store, err = storage.NewPostgres(connectCtx, pgCfg)
		cancel()
		if err != nil {
			logger.Error("failed to open datastore", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}

	sessionConfig, err := resolveSessionStoreConfig(sessionStoreInput{
		FlagDriver:    *sessionStoreDriver,
		EnvDriver:     os.Getenv("PHOTOVAULT_SESSION_STORE"),
		StorageDriver: driver,
		StorageDSN:    storagePostgresDSN,
		PostgresDSN:   firstNonEmpty(*sessionPostgresDSN, os.Getenv("PHOTOVAULT_SESSION_POSTGRES_DSN")),
		RedisAddr:     firstNonEmpty(*sessionRedisAddr, os.Getenv("PHOTOVAULT_SESSION_REDIS_ADDR")),
	})
	if err != nil {
		logger.Error("failed to resolve session store", "error", err)
		os.Exit(1)
	}

	var (
		sessionStore  auth.SessionStore
		sessionCloser func(context.Context) error
	)
	switch sessionConfig.Driver {
	case "memory":
		sessionStore = auth.NewMemorySessionStore()
	case "postgres":
		pgStore, err := auth.NewPostgresSessionStore(sessionConfig.DSN)
		if err != nil {
			logger.Error("failed to open session store", "error", err)
			os.Exit(1)
		}
		sessionStore = pgStore
		sessionCloser = func(ctx context.Context) error { return pgStore.Close(ctx) }
	case "redis":
		redisStore, err := auth.NewRedisSessionStore(
			sessionConfig.RedisAddr,
			firstNonEmpty(*sessionRedisPassword, os.Getenv("PHOTOVAULT_SESSION_REDIS_PASSWORD")),
			resolveInt(*sessionRedisDB, "PHOTOVAULT_SESSION_REDIS_DB"),
			resolveDuration(*sessionRedisTimeout, "PHOTOVAULT_SESSION_REDIS_TIMEOUT", 2*time.Second),
		)
		if err != nil {
			logger.Error("failed to open session store", "error", err)
			os.Exit(1)
		}
		sessionStore = redisStore
		sessionCloser = func(ctx context.Context) error { return redisStore.Close(ctx) }
	default:
		logger.Error("unsupported session store driver", "driver", sessionConfig.Driver)
		os.Exit(1)
	}

	ttl := resolveDuration(*sessionTTL, "PHOTOVAULT_SESSION_TTL", 24*time.Hour)
	sessions := auth.NewSessionManager(ttl, auth.WithStore(sessionStore))

	handler := api.NewHandler(store, sessions)
	handler.Metrics = recorder
	handler.MaxUploadBytes = resolveInt64(*maxUploadBytes, "PHOTOVAULT_MAX_UPLOAD_BYTES")
	handler.UploadConcurrency = resolveInt64(*uploadConcurrency, "PHOTOVAULT_UPLOAD_CONCURRENCY")
	handler.SessionCookiePolicy = api.DefaultSessionCookiePolicy()
	handler.SessionCookiePolicy.SecureMode = resolveSessionCookieSecureMode(serverMode)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	purgeInterval := resolveDuration(*sessionPurgeInterval, "PHOTOVAULT_SESSION_PURGE_INTERVAL", 15*time.Minute)
	sessionPurgeStop := startSessionPurgeWorker(workerCtx, logging.WithComponent(logger, "session-purger"), sessions, purgeInterval)
	defer sessionPurgeStop()

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("PHOTOVAULT_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("PHOTOVAULT_TLS_KEY")),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("PHOTOVAULT_CORS_ALLOWED_ORIGINS"))),
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	summary := newStartupSummary(startupSummaryInput{
		Mode:          serverMode,
		StorageDriver: driver,
		StorageDSN:    storagePostgresDSN,
		SessionConfig: sessionConfig,
		SessionTTL:    ttl,
	})
	logger.Info("photo vault API starting", summary.LogArgs()...)

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listenAddr, "mode", serverMode)
		logger.Info("metrics endpoint available", "path", "/metrics")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	workerCancel()
	sessionPurgeStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	if err := store.Close(ctx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}

	if sessionCloser != nil {
		if err := sessionCloser(ctx); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}

	logger.Info("server stopped")
}

type sessionStoreConfig struct {
	Driver    string
	DSN       string
	RedisAddr string
}

type sessionStoreInput struct {
	FlagDriver    string
	EnvDriver     string
	StorageDriver string
	StorageDSN    string
	PostgresDSN   string
	RedisAddr     string
}

func resolveSessionStoreConfig(in sessionStoreInput) (sessionStoreConfig, error) {
	driver := strings.ToLower(strings.TrimSpace(in.FlagDriver))
	if driver == "" {
		driver = strings.ToLower(strings.TrimSpace(in.EnvDriver))
	}

	sessionDSN := strings.TrimSpace(in.PostgresDSN)
	redisAddr := strings.TrimSpace(in.RedisAddr)
	if driver == "" {
		switch {
		case redisAddr != "":
			driver = "redis"
		case sessionDSN != "":
			driver = "postgres"
		case in.StorageDriver == "postgres":
			driver = "postgres"
		default:
			driver = "memory"
		}
	}

	switch driver {
	case "", "memory":
		return sessionStoreConfig{Driver: "memory"}, nil
	case "postgres":
		if sessionDSN == "" {
			sessionDSN = strings.TrimSpace(in.StorageDSN)
		}
		if sessionDSN == "" {
			return sessionStoreConfig{}, fmt.Errorf("postgres session store selected without DSN")
		}
		return sessionStoreConfig{Driver: "postgres", DSN: sessionDSN}, nil
	case "redis":
		if redisAddr == "" {
			return sessionStoreConfig{}, fmt.Errorf("redis session store selected without address")
		}
		return sessionStoreConfig{Driver: "redis", RedisAddr: redisAddr}, nil
	default:
		return sessionStoreConfig{}, fmt.Errorf("unsupported session store driver %q", driver)
	}
}

func resolveSessionCookieSecureMode(mode string) api.SessionCookieSecureMode {
	if strings.TrimSpace(mode) == "production" {
		return api.SessionCookieSecureAlways
	}
	return api.SessionCookieSecureAuto
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

func resolveStorageDriver(flagValue, envValue, postgresDSN string) (string, error) {
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

func validateProductionDatastore(driver, resolvedPostgresDSN string) error {
	if driver != "postgres" {
		return fmt.Errorf("production mode requires the postgres datastore driver, got %q", driver)
	}
	if strings.TrimSpace(resolvedPostgresDSN) == "" {
		return fmt.Errorf("postgres storage selected without DSN")
	}
	return nil
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("PHOTOVAULT_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
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

func resolveInt64(flagValue int64, envKey string) int64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64); err == nil {
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

type startupSummaryInput struct {
	Mode          string
	StorageDriver string
	StorageDSN    string
	SessionConfig sessionStoreConfig
	SessionTTL    time.Duration
}

type startupSummary struct {
	input startupSummaryInput
}

func newStartupSummary(input startupSummaryInput) startupSummary {
	return startupSummary{input: input}
}

// LogArgs renders the resolved configuration as slog key/value pairs with
// credentials redacted.
func (s startupSummary) LogArgs() []any {
	datastore := map[string]any{"driver": s.input.StorageDriver}
	if s.input.StorageDSN != "" {
		datastore["dsn"] = redactDSN(s.input.StorageDSN)
	}
	session := map[string]any{
		"driver": s.input.SessionConfig.Driver,
		"ttl":    s.input.SessionTTL.String(),
	}
	if s.input.SessionConfig.DSN != "" {
		session["dsn"] = redactDSN(s.input.SessionConfig.DSN)
	}
	if s.input.SessionConfig.RedisAddr != "" {
		session["addr"] = s.input.SessionConfig.RedisAddr
	}
	return []any{
		"mode", s.input.Mode,
		"datastore", datastore,
		"session_store", session,
	}
}

func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		return dsn
	}
	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), "*****")
	}
	return parsed.String()
}
