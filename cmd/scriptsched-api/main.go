// scriptsched-api — HTTP API для расписаний скриптов.
//
// Хранилище: PostgreSQL, если задан DB_URL, иначе память процесса.
// События об изменениях публикуются в RabbitMQ, если задан AMQP_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/scriptsched/internal/api"
	"github.com/shaiso/scriptsched/internal/config"
	"github.com/shaiso/scriptsched/internal/mq"
	"github.com/shaiso/scriptsched/internal/repo"
	"github.com/shaiso/scriptsched/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath, "config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadDefault(*configPath)
	if err != nil {
		return err
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format, nil)
	logger.Info("starting scriptsched-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	schedules, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	handlerCfg := api.Config{
		Repo:   schedules,
		Logger: logger,
	}

	if cfg.AMQP.URL != "" {
		conn, err := mq.NewConnection(cfg.AMQP.URL, logger, mq.WithConnectionName("scriptsched-api"))
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return fmt.Errorf("setup topology: %w", err)
		}
		logger.Debug("rabbitmq topology", "topology", mq.TopologyInfo())

		handlerCfg.Events = mq.NewPublisher(conn, logger)
	} else {
		logger.Info("AMQP_URL not set, schedule events disabled")
	}

	mux := http.NewServeMux()
	api.NewHandler(handlerCfg).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Graceful shutdown с таймаутом 10 секунд
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("stopped")
	return nil
}

// openRepository выбирает хранилище по конфигурации.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repo.ScheduleRepository, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("DB_URL not set, using in-memory storage")
		return repo.NewMemoryScheduleRepo(), func() {}, nil
	}

	pool, err := repo.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("connected to database")

	return repo.NewScheduleRepo(pool), pool.Close, nil
}
