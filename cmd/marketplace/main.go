// Package main запускает HTTP-сервер маркетплейса ресторана.
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/restaurant-marketplace/internal/bidding"
	"github.com/mmeshcher/restaurant-marketplace/internal/config"
	"github.com/mmeshcher/restaurant-marketplace/internal/handler"
	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/middleware"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
	"github.com/mmeshcher/restaurant-marketplace/internal/reputation"
	"github.com/mmeshcher/restaurant-marketplace/internal/service"
	"github.com/mmeshcher/restaurant-marketplace/internal/worker"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	svc := service.NewService(store, serviceOptions(cfg.Policy))
	defer svc.Close()

	if cfg.ManagerEmail != "" {
		if err := svc.EnsureManager(ctx, cfg.ManagerEmail, cfg.ManagerPassword); err != nil {
			sugar.Fatalw("bootstrap manager error", "error", err.Error())
		}
	}

	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is empty, tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.TokenTTL)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	sweeper := worker.NewSweeper(svc, logger.Named("sweeper"), cfg.SweepInterval)
	h := handler.NewHandler(svc, sweeper, logger, authMiddleware, limiter)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Периодический обход учётных записей
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	g.Go(func() error {
		sugar.Infow("starting marketplace server", "addr", cfg.RunAddress, "in_memory", cfg.DatabaseURI == "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// openStore открывает PostgreSQL или, если DSN не задан, хранилище в памяти.
func openStore(ctx context.Context, dsn string) (service.Store, error) {
	if dsn == "" {
		return repository.NewMemoryRepository(), nil
	}
	repo, err := repository.NewPostgresRepository(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func serviceOptions(p config.Policy) service.Options {
	return service.Options{
		Reputation: reputation.Policy{
			DemotionComplaints:  p.DemotionComplaints,
			DemotionRating:      p.DemotionRating,
			BonusCompliments:    p.BonusCompliments,
			BonusRating:         p.BonusRating,
			WageCut:             p.WageCut,
			BonusAmount:         p.BonusAmount,
			WarningRating:       p.WarningRating,
			BlacklistWarnings:   p.BlacklistWarnings,
			VIPDemotionWarnings: p.VIPDemotionWarnings,
			VIPSpendThreshold:   p.VIPSpendThreshold,
			VIPOrderThreshold:   p.VIPOrderThreshold,
		},
		Pricing: ledger.Pricing{
			DiscountPct:       p.VIPDiscountPct,
			DeliveryFee:       p.DeliveryFee,
			FreeDeliveryEvery: p.FreeDeliveryEvery,
		},
		Bidding: bidding.Policy{
			Window:   p.BidWindow,
			Throttle: p.BidThrottle,
		},
		StartingWage: p.StartingWage,
	}
}
