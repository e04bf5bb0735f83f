// Command proxyfox runs the payment-gated proxy.
//
// Configuration comes from the environment (see internal/config). At least
// CATALOG_PATH or DATABASE_URL must be set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginfw "github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
	"github.com/proxyfox/proxyfox/catalog"
	"github.com/proxyfox/proxyfox/extensions/replay"
	pfhttp "github.com/proxyfox/proxyfox/http"
	"github.com/proxyfox/proxyfox/http/gin"
	"github.com/proxyfox/proxyfox/internal/config"
	"github.com/proxyfox/proxyfox/mechanisms/evm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "proxyfox: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	client, ledger, err := evm.Dial(ctx, cfg.RPCURL, cfg.Network, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	verifier := proxyfox.NewVerifier(ledger,
		proxyfox.WithVerifierLogger(logger),
		proxyfox.WithOnVerifyFailureHook(func(fc proxyfox.VerifyFailureContext) error {
			logger.Debug("verification failed",
				zap.String("code", proxyfox.ErrorCode(fc.Error)),
				zap.Duration("took", fc.Duration))
			return nil
		}),
	)

	opts := []pfhttp.GatewayOption{
		pfhttp.WithGatewayLogger(logger),
		pfhttp.WithForwarder(pfhttp.NewForwarder(
			pfhttp.WithUpstreamTimeout(cfg.UpstreamTimeout),
			pfhttp.WithForwarderLogger(logger),
		)),
	}
	if cfg.RedisURL != "" {
		redisClient, err := replay.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		opts = append(opts, pfhttp.WithReplayGuard(replay.NewRedisStore(redisClient, cfg.ReplayTTL)))
		logger.Info("replay guard enabled", zap.Duration("ttl", cfg.ReplayTTL))
	}
	gateway := pfhttp.NewGateway(cat, verifier, opts...)

	if !cfg.Development() {
		ginfw.SetMode(ginfw.ReleaseMode)
	}
	r := ginfw.New()
	r.Use(ginfw.Recovery())
	r.GET("/health", func(c *ginfw.Context) {
		c.JSON(http.StatusOK, ginfw.H{
			"status":  "ok",
			"network": string(cfg.Network),
		})
	})
	r.GET("/metrics", ginfw.WrapH(promhttp.Handler()))
	gin.Register(r, gateway)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("proxyfox listening",
			zap.String("addr", server.Addr),
			zap.String("network", string(cfg.Network)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openCatalog prefers Postgres when DATABASE_URL is set. A file catalog is
// reloaded on SIGHUP. Every resource must be priced on cfg.Network, the only
// ledger the gateway reads.
func openCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (proxyfox.Catalog, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := catalog.OpenPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := catalog.NewPostgresCatalog(pool, logger)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		resources, err := pg.ListResources(ctx)
		if err == nil {
			err = catalog.CheckNetwork(resources, cfg.Network)
		}
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	}

	file, err := catalog.NewFileCatalog(cfg.CatalogPath,
		catalog.WithNetwork(cfg.Network),
		catalog.WithFileLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := file.Reload(ctx); err != nil {
					logger.Error("catalog reload failed", zap.Error(err))
				}
			}
		}
	}()
	return file, func() { signal.Stop(hup) }, nil
}
