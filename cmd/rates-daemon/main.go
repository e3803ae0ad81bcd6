package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/leonardcser/imoney-mcp/internal/broker"
	"github.com/leonardcser/imoney-mcp/internal/config"
	"github.com/leonardcser/imoney-mcp/internal/ipc"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/rates"
	"github.com/leonardcser/imoney-mcp/internal/store"
)

// warmTimeout bounds the install/startup lookup so a dead provider never delays serving.
const warmTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Errorf("rates daemon: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Path, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Prefix: "rates"}); err != nil {
		return err
	}
	defer logger.Close()
	if err := cfg.CheckProvider(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closer, installed, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer closer.Close()
	logger.Infof("Opened %s store", cfg.Store.Backend)

	provider := rates.NewProvider(cfg.Provider.URL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	manager := rates.NewManager(kv, provider,
		rates.WithTTL(cfg.Cache.TTL),
		rates.WithCoalescing(cfg.Cache.Coalesce),
	)

	// Ensure socket dir exists and remove stale socket
	sock := cfg.Daemon.Socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.Remove(sock)
	l, err := net.Listen("unix", sock)
	if err != nil {
		return err
	}
	_ = os.Chmod(sock, 0o600)
	logger.Infof("Listening on %s", sock)

	reason := "startup"
	if installed {
		reason = "install"
	}
	go func() {
		wctx, cancel := context.WithTimeout(ctx, warmTimeout)
		defer cancel()
		_ = manager.Warm(wctx, reason)
	}()

	err = ipc.NewServer(kv, broker.New(manager)).Serve(ctx, l)
	_ = os.Remove(sock)
	logger.Infof("Rates daemon stopped")
	return err
}

// openStore returns the configured backend and whether this is its first use.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.KV, io.Closer, bool, error) {
	switch cfg.Backend {
	case "bolt":
		_ = os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
		db, err := store.OpenBolt(cfg.Path, store.BoltOptions{Bucket: cfg.Bucket})
		if err != nil {
			return nil, nil, false, err
		}
		return db, db, db.Created(), nil
	case "redis":
		r, err := store.OpenRedis(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, nil, false, err
		}
		_, err = r.Get(ctx, rates.CacheKey)
		return r, r, errors.Is(err, store.ErrNotFound), nil
	case "memory":
		mem := store.NewMemory()
		return mem, mem, true, nil
	default:
		return nil, nil, false, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
