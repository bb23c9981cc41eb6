package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TrinoEventPump/internal/api"
	"TrinoEventPump/internal/batch"
	"TrinoEventPump/internal/clickhouseclient"
	"TrinoEventPump/internal/config"
	"TrinoEventPump/internal/correlator"
	"TrinoEventPump/internal/logger"
	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/notify"
	"TrinoEventPump/internal/parser"
	"TrinoEventPump/internal/storage"
	"TrinoEventPump/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Follow event files and serve query views and catalogs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		if len(cfg.Events.Directories) == 0 {
			return errors.New("Events.Directories must not be empty for serve")
		}

		rootLogger, err := logger.InitZap(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Flush(rootLogger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, rootLogger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, rootLogger *zap.Logger) error {
	lg := rootLogger.Named("main")
	lg.Info("Сервис TrinoEventPump стартует…", zap.Strings("directories", cfg.Events.Directories))

	g, gctx := errgroup.WithContext(ctx)

	hub := notify.NewHub(rootLogger.Named("notify"))
	opts := []correlator.Option{correlator.WithPublisher(hub)}

	if cfg.ClickHouse.Enabled {
		chClient, err := clickhouseclient.New(cfg.ClickHouse, rootLogger.Named("clickhouse"))
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer chClient.Close()
		if err := chClient.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
		batcher := batch.NewBatcher(cfg.Batch.Size, cfg.Batch.IntervalDuration(), cfg.Batch.Size*4,
			rootLogger.Named("batcher"), chClient)
		opts = append(opts, correlator.WithArchiver(batcher))
		g.Go(func() error {
			batcher.Run(gctx)
			return nil
		})
		lg.Info("Архив ClickHouse включён", zap.String("address", cfg.ClickHouse.Address))
	}

	c := newCore(rootLogger, cfg.Catalog, opts...)

	store, err := storage.New(cfg)
	if err != nil {
		return fmt.Errorf("processed storage: %w", err)
	}

	events := make(chan models.Event, cfg.Events.QueueSize)
	w, err := watcher.New(watcher.Config{
		Events: cfg.Events,
		Logger: rootLogger.Named("watcher"),
		Store:  store,
		Parser: parser.NewParser(nil),
	}, events)
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}

	server := api.NewServer(cfg.API, c.correlator, c.directory, c.registry, hub, rootLogger.Named("api"))

	g.Go(func() error { return w.Start(gctx) })
	g.Go(func() error { return c.correlator.Consume(gctx, events, cfg.Events.Workers) })
	g.Go(func() error { return server.ListenAndServe(gctx) })

	err = g.Wait()
	lg.Info("Сервис завершил работу", zap.Int("queries", len(c.correlator.QueryIDs())), zap.Int("catalogs", c.registry.Len()))
	return err
}
