package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/itsmkit/glpi-dashboard/internal/api"
	"github.com/itsmkit/glpi-dashboard/internal/cache"
	"github.com/itsmkit/glpi-dashboard/internal/config"
	"github.com/itsmkit/glpi-dashboard/internal/configload"
	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/httpclient"
	"github.com/itsmkit/glpi-dashboard/internal/httpserver"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/names"
	"github.com/itsmkit/glpi-dashboard/internal/service"
	"github.com/itsmkit/glpi-dashboard/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(configload.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting maintenance dashboard backend",
		logger.String("name", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.String("glpi_url", cfg.GLPI.BaseURL),
	)

	metrics := telemetry.New(prometheus.DefaultRegisterer)
	store := createStore(cfg, log)
	svc := buildService(cfg, store, log, metrics)

	return runServer(cfg, svc, log)
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, err
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// createStore picks the cache backend: Redis when an address is configured
// so replicas share entries, otherwise in-process.
func createStore(cfg *config.Config, log logger.Logger) cache.Store {
	if cfg.Cache.RedisAddress == "" {
		log.Info("Using in-process cache")
		return cache.NewMemory()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, falling back to in-process cache",
			logger.String("address", cfg.Cache.RedisAddress), logger.Error(err))
		return cache.NewMemory()
	}

	log.Info("Using Redis cache", logger.String("address", cfg.Cache.RedisAddress))
	return cache.NewRedis(client, log)
}

// buildService wires the session manager, search client, name resolver and
// aggregation service.
func buildService(cfg *config.Config, store cache.Store, log logger.Logger, metrics *telemetry.Metrics) *service.Service {
	standard := httpclient.New(httpclient.Config{
		DialTimeout: cfg.GLPI.ConnectTimeout,
		Timeout:     cfg.GLPI.ReadTimeout,
	})
	ranking := httpclient.New(httpclient.Config{
		DialTimeout: cfg.GLPI.RankingConnectTimeout,
		Timeout:     cfg.GLPI.RankingReadTimeout,
	})

	session := glpi.NewSessionManager(glpi.SessionConfig{
		BaseURL:        cfg.GLPI.BaseURL,
		AppToken:       cfg.GLPI.AppToken,
		UserToken:      cfg.GLPI.UserToken,
		TTL:            cfg.GLPI.SessionTTL,
		EntityID:       cfg.GLPI.EntityID,
		SwitchToEntity: !cfg.GLPI.SkipEntitySwitch,
		OnReuse:        metrics.SessionReuse.Inc,
	}, standard, log)

	client := glpi.NewClient(cfg.GLPI.BaseURL, session, standard, ranking,
		cfg.GLPI.PageSize, log, metrics)

	resolver := names.NewResolver(client, store, cfg.GLPI.NameWorkers, log, metrics)

	return service.New(client, resolver, store, service.Config{
		ResponseTTL:        cfg.Cache.TTL,
		TechTopLimit:       cfg.GLPI.TechTopLimit,
		CountUnassignedNew: cfg.GLPI.CountUnassignedNew,
		StatusWorkers:      cfg.GLPI.StatusWorkers,
	}, log, metrics)
}

// runServer builds the HTTP server around the API handlers and runs it
// until a shutdown signal arrives.
func runServer(cfg *config.Config, svc *service.Service, log logger.Logger) int {
	handlers := api.NewHandlers(svc, log)

	server := httpserver.New(&httpserver.Config{
		Port:  cfg.Service.Port,
		Debug: cfg.Service.Debug,
		CORS: httpserver.CORSConfig{
			Enabled:          cfg.CORS.Enabled,
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
		},
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
	}, log, handlers.RegisterRoutes)

	if err := server.Run(context.Background()); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Maintenance dashboard backend exited cleanly")
	return 0
}
