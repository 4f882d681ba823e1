package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/storefront/storefront-api/internal/api"
	"github.com/storefront/storefront-api/internal/api/handler"
	"github.com/storefront/storefront-api/internal/core/ports"
	"github.com/storefront/storefront-api/internal/core/service"
	"github.com/storefront/storefront-api/internal/infrastructure/db/mongo"
	redisstore "github.com/storefront/storefront-api/internal/infrastructure/db/redis"
	"github.com/storefront/storefront-api/internal/infrastructure/token"
	"github.com/storefront/storefront-api/internal/pkg/config"
	"github.com/storefront/storefront-api/pkg/logger"
	"github.com/storefront/storefront-api/pkg/shutdown"

	_ "github.com/storefront/storefront-api/docs"
)

// @title                       Storefront API
// @version                     1.0
// @description                 Storefront backend: catalog, accounts and a per-user shopping cart.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Service: "storefront-api",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
	})

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer dcancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	// --- Stores ---
	authRepo := mongo.NewAuthRepository(db)
	productRepo := mongo.NewProductRepository(db)
	cartRepo := mongo.NewCartRepository(db)
	if err := mongo.EnsureIndexes(ctx, authRepo, productRepo, cartRepo); err != nil {
		return err
	}

	catalog := redisstore.NewProductCache(productRepo, rdb, cfg.Redis.CatalogTTL, log)
	guard := redisstore.NewReplayGuard(rdb, cfg.Redis.IdempotencyTTL)
	codec := token.NewCodec(cfg.Token.Secret, cfg.Token.TTL)

	// --- Services ---
	authService := service.NewAuthService(authRepo, codec)
	if cfg.Admin.Email != "" {
		admin, err := authService.EnsureAdmin(ctx, ports.RegisterInput{
			Username: cfg.Admin.Username,
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
		})
		if err != nil {
			return err
		}
		log.Info().Str("user_id", admin.ID).Msg("admin account ready")
	}

	e := api.NewRouter(api.Deps{
		Logger:       log,
		Verifier:     codec,
		AuthService:  authService,
		Products:     service.NewProductService(productRepo, catalog, log),
		Cart:         service.NewCartService(cartRepo, catalog, guard, log),
		HealthChecks: []handler.DependencyCheck{handler.MongoCheck(db), handler.RedisCheck(rdb)},
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer scancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	log.Info().Msg("bye")
	return nil
}
