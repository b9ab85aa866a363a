package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/asyncbroker/jobbroker/internal/broker/codec"
	"github.com/asyncbroker/jobbroker/internal/broker/server"
	"github.com/asyncbroker/jobbroker/internal/broker/store"
	"github.com/asyncbroker/jobbroker/internal/platform/envutil"
	"github.com/asyncbroker/jobbroker/internal/platform/logger"
)

// logDelegate is a placeholder server.Delegate: it logs and returns nil,
// standing in for whatever job handler a real deployment wires in. It
// exists so this binary demonstrates the wiring end to end.
type logDelegate struct {
	log *logger.Logger
}

func (d logDelegate) Call(_ context.Context, job any) error {
	d.log.Info("job delivered", "job", job)
	return nil
}

func main() {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     envutil.String("REDIS_ADDR", "localhost:6379", log),
		Password: envutil.String("REDIS_PASSWORD", "", log),
		DB:       envutil.Int("REDIS_DB", 0, log),
	})
	defer rdb.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	driver := store.NewClient(rdb, log)
	if err := driver.Ping(pingCtx); err != nil {
		log.Fatal("failed to connect to redis", "error", err)
	}

	cfg := server.LoadConfig(log)
	srv := server.New(logDelegate{log: log}, driver, codec.NewJSON(), log, cfg, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Start(ctx)
	log.Info("worker started", "worker_id", srv.WorkerID(), "prefix", cfg.Prefix)

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-statusTicker.C:
			log.Info("status", "summary", srv.StatusString(context.Background()))
		}
	}

	log.Info("shutting down")
	if err := srv.Stop(); err != nil {
		log.Warn("stop", "error", err)
	}
}
