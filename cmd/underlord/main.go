package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"underlord/internal/config"
	"underlord/internal/defs"
	"underlord/internal/eventbus"
	"underlord/internal/notify"
	"underlord/internal/player"
	"underlord/internal/random"
	"underlord/internal/sched"
	"underlord/internal/storage"
	logx "underlord/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()

	catalog, err := defs.Load(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("svc", "storage")))
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if store != nil {
		defer store.Close()
	}

	fastTick, err := config.ParseDurationOrDefault("scheduler.fast_tick", cfg.Scheduler.FastTick, 30*time.Second)
	if err != nil {
		return err
	}
	spawnTick, err := config.ParseDurationOrDefault("scheduler.spawn_tick", cfg.Scheduler.SpawnTick, 10*time.Minute)
	if err != nil {
		return err
	}

	rng := random.New()
	if cfg.Scheduler.Seed != 0 {
		rng = random.NewSeeded(cfg.Scheduler.Seed)
	}

	bus := eventbus.New()
	wallet := player.NewMemory(player.State{})
	sink := notify.New(notify.Config{}, nil, log.With(logx.String("svc", "notify")))

	s, err := sched.New(sched.Options{
		Config: sched.Config{
			FastTick:   fastTick,
			SpawnTick:  spawnTick,
			AmbientCap: cfg.Scheduler.AmbientCap,
			SkipChance: cfg.Scheduler.SkipChanceOrDefault(),
		},
		Catalog: catalog,
		Store:   store,
		Wallet:  wallet,
		Sink:    sink,
		Bus:     bus,
		Rand:    rng,
		Log:     log.With(logx.String("svc", "sched")),
	})
	if err != nil {
		return err
	}

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify ready failed", logx.Err(err))
	}
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}()
	}
	log.Info("underlord running", logx.String("config", cfgPath))

	<-ctx.Done()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return s.Stop(stopCtx)
}
