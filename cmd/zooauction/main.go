package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jensholdgaard/zoo-auction/internal/bot"
	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/config"
	"github.com/jensholdgaard/zoo-auction/internal/game"
	"github.com/jensholdgaard/zoo-auction/internal/health"
	"github.com/jensholdgaard/zoo-auction/internal/httpapi"
	"github.com/jensholdgaard/zoo-auction/internal/roster"
	"github.com/jensholdgaard/zoo-auction/internal/store"
	"github.com/jensholdgaard/zoo-auction/internal/telemetry"

	// Register journal drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/zoo-auction/internal/store/memstore"
	_ "github.com/jensholdgaard/zoo-auction/internal/store/postgres"
	_ "github.com/jensholdgaard/zoo-auction/internal/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	cat, err := loadCatalog(cfg.Game.NamesFile)
	if err != nil {
		return err
	}

	repos, err := store.Open(ctx, cfg.Journal, clk)
	if err != nil {
		return fmt.Errorf("opening journal (driver=%s): %w", cfg.Journal.Driver, err)
	}
	defer repos.Close()

	logger.InfoContext(ctx, "journal opened", slog.String("driver", cfg.Journal.Driver))

	rules, err := cfg.AuctionRules()
	if err != nil {
		return err
	}
	scoringRules, err := cfg.ScoringRules()
	if err != nil {
		return err
	}

	ctrl, err := game.NewController(repos, game.NewHub(), game.Options{
		Rules:       rules,
		Scoring:     scoringRules,
		AutoAdvance: cfg.Game.AutoAdvance,
		TierPause:   cfg.Game.TierPause,
	}, logger, tp.TracerProvider, tp.MeterProvider, clk)
	if err != nil {
		return fmt.Errorf("creating game controller: %w", err)
	}

	params := game.InitParams{Catalog: cat, Stake: cfg.Game.Stake}
	if cfg.Game.AutoInitialize {
		if err := ctrl.Initialize(ctx, params); err != nil {
			return fmt.Errorf("initializing game: %w", err)
		}
	}

	healthHandler := health.NewHandler(clk,
		health.JournalChecker(repos.Ping),
		health.GameChecker(func() bool { return ctrl.GameID() != "" }),
	)

	api := httpapi.NewServer(ctrl, httpapi.Options{
		AdminToken:       cfg.Server.AdminToken,
		SubscriberBuffer: cfg.Server.SubscriberBuffer,
		Game:             params,
	}, healthHandler, logger, tp.TracerProvider)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
			cancel()
		}
	}()

	var discordBot *bot.Bot
	if cfg.Discord.Token != "" {
		r := roster.NewManager(ctrl, logger, tp.TracerProvider)
		discordBot, err = bot.New(cfg.Discord, ctrl, r, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		if err := discordBot.Start(ctx); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}
	} else {
		logger.InfoContext(ctx, "discord token not set, bot disabled")
	}

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "zoo-auction is running", slog.String("version", version))

	<-ctx.Done()
	logger.Info("shutting down...")

	healthHandler.SetReady(false)

	if discordBot != nil {
		if stopErr := discordBot.Stop(); stopErr != nil {
			logger.Error("bot shutdown error", slog.Any("error", stopErr))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// loadCatalog builds the standard catalog, with display names from path when
// set.
func loadCatalog(path string) (*catalog.Catalog, error) {
	var names map[string]string
	if path != "" {
		var err error
		if names, err = catalog.LoadNamesFile(path); err != nil {
			return nil, fmt.Errorf("loading item names: %w", err)
		}
	}
	cat, err := catalog.Default(names)
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}
	return cat, nil
}
