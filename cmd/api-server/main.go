// Package main API Server 入口
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/server"
	"library-admin/internal/config"
	"library-admin/internal/shared/cache"
	redisbl "library-admin/internal/shared/cache/redis"
	"library-admin/internal/shared/objstore"
	"library-admin/internal/shared/storage/dbutil"
	"library-admin/internal/shared/storage/factory"
	"library-admin/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    cfg.Log.Output,
		Component: "api-server",
	})
	logger.Info("Starting API Server", "env", cfg.Env, "config", cfg.String())

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("API Server exited")
		os.Exit(1)
	}
	fmt.Println("Server stopped")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	store, err := factory.NewPersistentStore(dbutil.DriverType(cfg.DatabaseDriver), cfg.DatabaseURL, cfg.DatabaseDBName)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DatabaseDriver, err)
	}
	defer store.Close()
	logger.Info("Connected to database", "driver", cfg.DatabaseDriver)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	admin, err := auth.EnsureAdminUser(ctx, store, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	cancel()
	if err != nil {
		return err
	}
	if admin == nil {
		logger.Warn("ADMIN_PASSWORD not set, skipping admin bootstrap")
	}

	var blacklist cache.TokenBlacklist
	if cfg.RedisURL != "" {
		rb, err := redisbl.Dial(context.Background(), cfg.RedisURL)
		if err != nil {
			return err
		}
		blacklist = rb
		logger.Info("Token blacklist backed by Redis", "addr", rb.Addr())
	} else {
		blacklist = cache.NewMemoryBlacklist()
	}
	defer blacklist.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := server.Deps{
		Store:     store,
		Config:    cfg,
		Blacklist: blacklist,
		Logger:    logger,
		Registry:  registry,
	}
	if cfg.MinIO.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		files, err := objstore.Open(ctx, cfg.MinIO)
		cancel()
		if err != nil {
			return err
		}
		deps.Files = files
		logger.Info("Report files stored in MinIO", "endpoint", cfg.MinIO.Endpoint, "bucket", files.Bucket())
	}

	h, err := server.NewHandler(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     newServerErrorLog(logger),
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	logger.Info("API Server listening", "port", cfg.APIPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
