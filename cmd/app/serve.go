package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wichananm65/storefront-checkout/internal/address"
	"github.com/wichananm65/storefront-checkout/internal/cart"
	"github.com/wichananm65/storefront-checkout/internal/checkout"
	"github.com/wichananm65/storefront-checkout/internal/config"
	"github.com/wichananm65/storefront-checkout/internal/database"
	"github.com/wichananm65/storefront-checkout/internal/logger"
	"github.com/wichananm65/storefront-checkout/internal/middleware"
	"github.com/wichananm65/storefront-checkout/internal/order"
	"github.com/wichananm65/storefront-checkout/internal/payment"
	"github.com/wichananm65/storefront-checkout/internal/product"
	"github.com/wichananm65/storefront-checkout/internal/server"
	"github.com/wichananm65/storefront-checkout/internal/toss"
)

const (
	shutdownTimeout  = 10 * time.Second
	limiterSweep     = time.Minute
	limiterIdleAfter = 10 * time.Minute
)

func serveCommand() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, migrateFirst bool) error {
	cfg := config.Load()
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if migrateFirst {
		applied, err := database.MigrateUp(cfg.Database.URL)
		if err != nil {
			return err
		}
		logger.Info("migrations checked", "applied", applied)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	tx := database.NewTransactor(db)
	products := product.NewPostgresRepository(db)
	addresses := address.NewPostgresRepository(db)
	carts := cart.NewPostgresRepository(db)

	orders := order.NewService(order.NewPostgresRepository(db), products, addresses, carts, tx)
	payments := payment.NewService(payment.NewPostgresRepository(db), orders, toss.NewClient(cfg.Toss), tx)
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)

	app := server.New(cfg, limiter, db.PingContext, server.Handlers{
		Products:  product.NewHandler(product.NewService(products)),
		Addresses: address.NewHandler(address.NewService(addresses)),
		Cart:      cart.NewHandler(cart.NewService(carts)),
		Orders:    order.NewHandler(orders),
		Payments:  payment.NewHandler(payments),
		Checkout:  checkout.NewHandler(checkout.NewOrchestrator(payments, cfg.Checkout.ConfirmDelay)),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		return app.Listen(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	g.Go(func() error {
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Cleanup(limiterIdleAfter)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
