package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rawsignal/RivianMate-sub001/internal/auth"
	"github.com/rawsignal/RivianMate-sub001/internal/config"
	"github.com/rawsignal/RivianMate-sub001/internal/health"
	"github.com/rawsignal/RivianMate-sub001/internal/pipeline"
	"github.com/rawsignal/RivianMate-sub001/internal/push"
	"github.com/rawsignal/RivianMate-sub001/internal/scheduler"
	"github.com/rawsignal/RivianMate-sub001/internal/statebuf"
	"github.com/rawsignal/RivianMate-sub001/internal/store"
	"github.com/rawsignal/RivianMate-sub001/internal/telemetry"
	transport "github.com/rawsignal/RivianMate-sub001/internal/transport/http"
)

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatalf("collector failed: %v", err)
	}
}

func run() error {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redis, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer redis.Close()

	buffer := statebuf.New(
		statebuf.WithHeartbeat(cfg.HeartbeatInterval),
		statebuf.WithBatteryDelta(cfg.BatteryDeltaPct),
		statebuf.WithMovementThreshold(cfg.MovementMeters),
	)
	dispatcher := pipeline.NewDispatcher(cfg.DBChannelSize, cfg.StateChannelSize, cfg.HealthChannelSize)
	recorder := health.NewRecorder(db, log)

	client := telemetry.NewHTTPClient(cfg.RemoteBaseURL, cfg.RemoteTimeout)
	sched := scheduler.New(client, db, buffer, dispatcher, scheduler.Options{
		AwakeInterval:  cfg.AwakeInterval,
		AsleepInterval: cfg.AsleepInterval,
		DefaultBackoff: cfg.DefaultBackoff,
	}, log)
	sched.Start(ctx)

	accounts, err := db.ListActiveAccounts(ctx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		sched.RegisterAccount(a.ID)
	}
	log.WithField("accounts", len(accounts)).Info("collector started")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pipeline.NewDBWriter(dispatcher.DBChan, db, log).Run(ctx)
		return nil
	})
	g.Go(func() error {
		pipeline.NewStateWriter(dispatcher.StateChan, redis, log).Run(ctx)
		return nil
	})
	g.Go(func() error {
		pipeline.NewHealthWorker(dispatcher.HealthChan, recorder, log).Run(ctx)
		return nil
	})

	if cfg.MQTTBrokerURL != "" {
		ingest := push.NewIngest(cfg.MQTTBrokerURL, cfg.MQTTClientID, buffer, dispatcher, db, log)
		g.Go(func() error {
			return ingest.Run(ctx)
		})
	}

	authenticator := auth.NewAuthenticator(cfg, redis)
	server := transport.NewServer(cfg, db, redis, sched, authenticator, log)
	g.Go(func() error {
		return server.Run(ctx)
	})

	return g.Wait()
}
