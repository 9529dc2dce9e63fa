package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/directory/httpdir"
	"github.com/MrEthical07/goOverlay/directory/memdir"
	"github.com/MrEthical07/goOverlay/jwt"
	"github.com/MrEthical07/goOverlay/kv"
	"github.com/MrEthical07/goOverlay/password"
)

const sqliteFileName = "overlay.db"

func noopClose() error { return nil }

// openStore returns the backend named by cfg.Backend and the function that
// releases it.
func openStore(cfg cliConfig, logger *slog.Logger) (kv.Store, func() error, error) {
	switch cfg.Backend {
	case backendMemory:
		return kv.NewMemoryStore(), noopClose, nil

	case backendFile:
		store, err := kv.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, noopClose, nil

	case backendSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		store, err := kv.OpenSQLite(filepath.Join(cfg.DataDir, sqliteFileName))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case backendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return kv.NewRedisStore(client, ""), client.Close, nil

	case backendRedisEmbedded:
		srv, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		logger.Info("overlayctl: embedded redis started, state is discarded on exit", "addr", srv.Addr())
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		return kv.NewRedisStore(client, ""), func() error {
			err := client.Close()
			srv.Close()
			return err
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// openDirectory returns the remote directory, a seeded in-process one, or nil
// when neither is configured.
func openDirectory(cfg cliConfig, tokens *jwt.Manager, logger *slog.Logger) (goOverlay.Directory, error) {
	switch {
	case cfg.Directory.URL != "":
		opts := []httpdir.Option{httpdir.WithLogger(logger)}
		if cfg.Directory.Token != "" {
			opts = append(opts, httpdir.WithBearerToken(cfg.Directory.Token))
		}
		client, err := httpdir.New(cfg.Directory.URL, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil

	case cfg.Directory.Seed != "":
		hasher, err := password.NewHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
		dir, err := memdir.LoadFile(cfg.Directory.Seed, hasher, tokens, logger)
		if err != nil {
			return nil, err
		}
		return dir, nil
	}
	return nil, nil
}
