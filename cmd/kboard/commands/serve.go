package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/backend/docstore"
	"github.com/gmllt/kboard/internal/backend/redisstore"
	"github.com/gmllt/kboard/internal/config"
	"github.com/gmllt/kboard/internal/printer"
	"github.com/gmllt/kboard/internal/remote"
	"github.com/gmllt/kboard/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board REST API and static files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return printer.Error("Failed to load configuration", err.Error())
			}
			defer func() { _ = logger.Sync() }()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, closeBackend, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return printer.Error("Failed to initialize backend", err.Error())
			}
			defer closeBackend()

			srv := server.New(backend,
				server.WithLogger(logger),
				server.WithStaticDir(cfg.Server.StaticDir),
			)
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				return printer.Error("Server stopped", err.Error())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// openBackend builds the backend selected by cfg.Backend.Kind. The returned
// func releases its connections.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (remote.Backend, func(), error) {
	switch cfg.Backend.Kind {
	case config.BackendMemory:
		logger.Info("Using in-memory backend")
		return docstore.New(docstore.NewMemoryBlob(), logger), func() {}, nil

	case config.BackendS3:
		client, err := docstore.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		blob := docstore.NewS3Blob(client, cfg.S3.Bucket, cfg.S3.Key)
		if err := blob.EnsureBucketExists(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("Using S3 backend",
			zap.String("endpoint", cfg.S3.Endpoint),
			zap.String("bucket", cfg.S3.Bucket),
			zap.String("key", cfg.S3.Key))
		return docstore.New(blob, logger), func() {}, nil

	case config.BackendRedis:
		store, err := redisstore.New(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Namespace, redisstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis %s unreachable: %w", cfg.Redis.Addr, err)
		}
		logger.Info("Using Redis backend",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("namespace", cfg.Redis.Namespace))
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
}
