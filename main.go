package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SimoneRocutto/role-based-joust/config"
	"github.com/SimoneRocutto/role-based-joust/game"
	"github.com/SimoneRocutto/role-based-joust/server"
)

func main() {
	configPath := flag.String("config", "joust.toml", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting joust server",
		zap.String("addr", cfg.Server.BindAddress),
		zap.Duration("tickRate", cfg.Game.TickRate.Duration))

	store := config.NewSettingsStore(cfg.Storage.SettingsPath, log)
	stored := store.Load()

	engine := game.NewEngine(game.EngineConfig{
		TickRate:         cfg.Game.TickRate.Duration,
		CountdownSeconds: cfg.Game.CountdownSeconds,
		GoDelay:          cfg.Game.GoDelay.Duration,
		ReadyDelay:       cfg.Game.ReadyDelay.Duration,
		DisconnectGrace:  cfg.Game.DisconnectGrace.Duration,
		MinPlayers:       cfg.Game.MinPlayers,
	}, log.Named("engine"))
	engine.ApplySettings(stored.EngineSettings())
	engine.SetMovement(stored.Movement)

	registry := server.NewConnectionRegistry(cfg.Game.DisconnectGrace.Duration, log.Named("sessions"))
	gameServer := server.NewServer(engine, registry, store, log.Named("server"))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gameServer.HandleWebSocket)
	gameServer.AdminRoutes(mux)

	srv := &http.Server{
		Addr:         cfg.Server.BindAddress,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		gameServer.Run()
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		gameServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
