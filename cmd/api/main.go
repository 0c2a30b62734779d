package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/filestore/internal/auth"
	"github.com/abduss/filestore/internal/config"
	"github.com/abduss/filestore/internal/file"
	"github.com/abduss/filestore/internal/logger"
	"github.com/abduss/filestore/internal/metrics"
	"github.com/abduss/filestore/internal/progress"
	"github.com/abduss/filestore/internal/server"
	"github.com/abduss/filestore/internal/session"
	"github.com/abduss/filestore/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("filestore stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.OpenPostgres(ctx, cfg.Postgres, zl)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	objects, probe, err := openObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	sessions, closeSessions, err := openSessionStore(cfg, dbPool, zl)
	if err != nil {
		return err
	}
	defer closeSessions()

	authService := auth.NewService(
		auth.NewRepository(dbPool),
		sessions,
		auth.NewLogMailer(zl.Named("mailer")),
		cfg.Auth,
		cfg.Session.TTL,
		zl.Named("auth"),
	)

	registry := progress.NewRegistry(progress.Config{
		QueueSize:    cfg.Progress.QueueSize,
		ReplayBuffer: cfg.Progress.ReplayBuffer,
		ReplayTTL:    cfg.Progress.ReplayTTL,
		IdleTimeout:  cfg.Progress.PongWait,
	}, zl.Named("progress"))

	fileService := file.NewService(
		file.NewRepository(dbPool),
		objects,
		registry,
		file.Limits{MaxFileSize: cfg.Storage.MaxUploadSize, MaxCommentLen: cfg.Storage.MaxCommentLen},
		zl.Named("file"),
	)

	if sweeper, ok := sessions.(session.Sweeper); ok {
		go session.RunSweeper(ctx, sweeper, cfg.Session.SweepInterval, zl.Named("session"))
	}
	go session.RunSweeper(ctx, session.SweeperFunc(authService.SweepPending), cfg.Session.SweepInterval, zl.Named("pending"))
	go registry.Run(ctx, cfg.Progress.SweepInterval)

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		Logger:      zl,
		DB:          dbPool,
		ObjectStore: probe,
		AuthService: authService,
		FileService: fileService,
		Progress:    registry,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("filestore API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("storage_driver", cfg.Storage.Driver),
			zap.String("session_store", cfg.Session.Store),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("shutdown error", zap.Error(err))
	}
	return nil
}

func openObjectStore(ctx context.Context, cfg config.Config) (file.ObjectStore, server.Pinger, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverDisk:
		if err := storage.EnsureDiskRoot(cfg.Storage.DiskRoot); err != nil {
			return nil, nil, err
		}
		root := cfg.Storage.DiskRoot
		probe := server.PingFunc(func(context.Context) error {
			_, err := os.Stat(root)
			return err
		})
		return file.NewDiskStore(root), probe, nil

	default:
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("connect minio: %w", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg.MinIO); err != nil {
			return nil, nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return file.NewMinIOStore(client, cfg.MinIO.Bucket, cfg.Storage.MaxUploadSize), minioProbe(client, cfg.MinIO.Bucket), nil
	}
}

func minioProbe(client *minio.Client, bucket string) server.Pinger {
	return server.PingFunc(func(ctx context.Context) error {
		ok, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("bucket %q missing", bucket)
		}
		return nil
	})
}

func openSessionStore(cfg config.Config, pool *pgxpool.Pool, zl *zap.Logger) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.SessionStorePostgres:
		return session.NewPostgresStore(pool), func() {}, nil

	case config.SessionStoreBadger:
		store, err := session.OpenBadgerStore(cfg.Session.BadgerPath, zl.Named("badger"))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger session store: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				zl.Warn("close badger", zap.Error(err))
			}
		}, nil

	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}
