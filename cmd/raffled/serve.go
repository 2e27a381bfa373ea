package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"raffle/internal/api"
	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/internal/stats"
	"raffle/internal/sweeper"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}
}

func serve(opts *rootOptions) error {
	cfg := opts.cfg

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := opts.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	limiter := api.NewLimiterStore(cfg.RateRPS, cfg.RateBurst)
	limiter.StartJanitor(ctx)
	handlerOpts := []api.HandlerOption{api.WithLimiter(limiter)}

	var recorder stats.Store
	if cfg.StatsRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.StatsRedisAddr,
			Password: cfg.StatsRedisPassword,
			DB:       cfg.StatsRedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("stats redis unreachable, counters will be dropped", zap.String("addr", cfg.StatsRedisAddr), zap.Error(err))
		}
		recorder = stats.NewRedisStore(rdb, stats.WithPrefix(cfg.StatsPrefix))
	} else {
		memory := stats.NewMemoryStore()
		recorder = memory
		handlerOpts = append(handlerOpts, api.WithStatsReader(memory))
	}

	engine := raffle.New(store,
		raffle.WithStats(recorder),
		raffle.WithMaxReservationTTL(cfg.MaxReservationTTL),
		raffle.WithMaxNumbers(cfg.MaxNumbers),
	)

	if cfg.SweepEnabled {
		s := sweeper.NewSweeper(ctx, store)
		if err := s.Start(cfg.SweepSchedule); err != nil {
			return err
		}
		defer s.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(engine, cfg.ReservationTTL, handlerOpts...)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server stopped", zap.Error(err))
		return fmt.Errorf("serve: %w", err)
	case sig := <-waitForInterrupt():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return server.Shutdown(shutdownCtx)
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
