package posserver

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"waiter-station/internal/cache"
	"waiter-station/internal/common/config"
	"waiter-station/internal/common/httpx"
	"waiter-station/internal/common/logger"
	"waiter-station/internal/connections/database"
	"waiter-station/internal/connections/rabbitmq"
	"waiter-station/internal/posserver/handlers"
	"waiter-station/internal/posserver/repository"
	"waiter-station/internal/posserver/service"
)

// Run wires the POS server: Postgres, RabbitMQ topology, the Redis-backed
// catalog cache and the gin endpoints, then serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("pos-server")

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	broker, err := rabbitmq.Dial(cfg.RabbitMQ, false)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer broker.Close()
	if err := broker.DeclareAll(); err != nil {
		return fmt.Errorf("declare broker topology: %w", err)
	}

	pg := repository.NewPG(pool)
	var catalog repository.Catalog = pg
	redisCache, err := cache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Port,
		time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	if err != nil {
		// The cache is an optimization; the server runs uncached without it.
		lg.Error("redis_unavailable", err, nil)
	} else {
		defer redisCache.Close()
		catalog = repository.NewCachedCatalog(pg, redisCache)
	}

	svc := service.New(catalog, pg, broker, cfg.Server.Debug)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	handlers.New(svc).Register(engine)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("service_started", map[string]any{"addr": addr})
	return httpx.New(addr, engine).Run(ctx)
}
