package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/config"
	"socialhub/aggregator/internal/database"
	"socialhub/aggregator/internal/feed"
	"socialhub/aggregator/internal/interactions"
	"socialhub/aggregator/internal/models"
	"socialhub/aggregator/internal/platform"
	"socialhub/aggregator/internal/publish"
	"socialhub/aggregator/internal/seed"
	"socialhub/aggregator/internal/server"
	"socialhub/aggregator/internal/server/api"
	"socialhub/aggregator/internal/store"
	"socialhub/aggregator/internal/syncer"
	"socialhub/aggregator/internal/tokens"
)

func init() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	cfg := config.FromEnv()

	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	seedCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: SOCIALHUB_DB_PATH)")
	var seedPosts int
	seedCmd.IntVar(&seedPosts, "posts", 100,
		"Number of generated posts to preload into the cache")
	var seedLogLevelStr string
	seedCmd.StringVar(&seedLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: SOCIALHUB_LOG_LEVEL)")

	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	syncCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: SOCIALHUB_DB_PATH)")
	var oneShot bool
	syncCmd.BoolVar(&oneShot, "once", false,
		"Run a single sync cycle and exit")
	syncCmd.DurationVar(&cfg.SyncInterval, "interval", cfg.SyncInterval,
		"Time between sync cycles (env: SOCIALHUB_SYNC_INTERVAL)")
	syncCmd.IntVar(&cfg.RetentionDays, "retention", cfg.RetentionDays,
		"Number of days to retain unbookmarked posts (env: SOCIALHUB_RETENTION_DAYS)")
	var syncLogLevelStr string
	syncCmd.StringVar(&syncLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: SOCIALHUB_LOG_LEVEL)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: SOCIALHUB_DB_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", cfg.ServerHost,
		"Host to bind the server to (env: SOCIALHUB_SERVER_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", cfg.ServerPort,
		"Port to listen on (env: SOCIALHUB_SERVER_PORT)")
	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: SOCIALHUB_LOG_LEVEL)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		seedCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, seedLogLevelStr)

		if err := runSeed(cfg, seedPosts); err != nil {
			log.Error().Err(err).Msg("Seed failed")
			os.Exit(1)
		}

	case "sync":
		syncCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, syncLogLevelStr)

		if err := runSync(cfg, oneShot); err != nil {
			log.Error().Err(err).Msg("Sync failed")
			os.Exit(1)
		}

	case "server":
		serverCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, serverLogLevelStr)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		printUsage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: socialhub [command] [options]")
	fmt.Println("Commands: seed, sync, server")
	fmt.Println("\nFor command-specific options, use: socialhub [command] -h")
}

func applyLogLevel(cfg *config.Config, levelStr string) {
	if level, err := zerolog.ParseLevel(levelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
}

// buildRegistry assembles the adapter set from configuration. REST adapters
// are registered only when a token is present; the demo adapter is always
// available.
func buildRegistry(cfg *config.Config) *platform.Registry {
	registry := platform.NewRegistry(
		platform.NewDemoAdapter(cfg.DemoSeed, cfg.PageSize, nil),
	)

	type restPlatform struct {
		name  models.Platform
		build func(platform.RESTConfig) platform.Adapter
	}
	for _, rp := range []restPlatform{
		{models.PlatformInstagram, func(rc platform.RESTConfig) platform.Adapter {
			return platform.NewInstagramAdapter(rc, nil)
		}},
		{models.PlatformTikTok, func(rc platform.RESTConfig) platform.Adapter {
			return platform.NewTikTokAdapter(rc, nil)
		}},
		{models.PlatformYouTube, func(rc platform.RESTConfig) platform.Adapter {
			return platform.NewYouTubeAdapter(rc, nil)
		}},
		{models.PlatformMastodon, func(rc platform.RESTConfig) platform.Adapter {
			return platform.NewMastodonAdapter(rc, nil)
		}},
	} {
		envPrefix := "SOCIALHUB_" + strings.ToUpper(string(rp.name))
		token := config.GetEnvString(envPrefix+"_TOKEN", "")
		if token == "" {
			continue
		}
		registry.Register(rp.build(platform.RESTConfig{
			BaseURL: config.GetEnvString(envPrefix+"_BASE_URL", ""),
			Token:   token,
			Timeout: cfg.FetchTimeout,
		}))
	}

	if token := config.GetEnvString("SOCIALHUB_BLUESKY_TOKEN", ""); token != "" {
		registry.Register(platform.NewBlueskyAdapter(platform.RESTConfig{
			BaseURL: config.GetEnvString("SOCIALHUB_BLUESKY_BASE_URL", ""),
			Token:   token,
			Timeout: cfg.FetchTimeout,
		}, config.GetEnvString("SOCIALHUB_BLUESKY_DID", ""), nil))
	}

	if len(cfg.RSSFeedURLs) > 0 {
		registry.Register(platform.NewRSSAdapter(cfg.RSSFeedURLs))
	}

	log.Info().
		Int("adapters", len(registry.Platforms())).
		Msg("Platform registry assembled")
	return registry
}

type services struct {
	db        *database.DB
	store     *store.Store
	registry  *platform.Registry
	engine    *feed.Engine
	ledger    *tokens.Ledger
	queue     *interactions.Queue
	publisher *publish.Publisher
}

func buildServices(cfg *config.Config) (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	st := store.New(db)
	registry := buildRegistry(cfg)
	ledger := tokens.New(db, nil)
	engine := feed.NewEngine(st, registry, feed.Config{FetchTimeout: cfg.FetchTimeout})
	queue := interactions.NewQueue(st, registry, ledger, interactions.Config{
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: cfg.BaseBackoff,
		MaxBackoff:  cfg.MaxBackoff,
	})
	publisher := publish.New(st, registry, ledger)

	return &services{
		db:        db,
		store:     st,
		registry:  registry,
		engine:    engine,
		ledger:    ledger,
		queue:     queue,
		publisher: publisher,
	}, nil
}

// runSeed creates a fresh database with a demo account and generated posts.
func runSeed(cfg *config.Config, postCount int) error {
	if _, err := os.Stat(cfg.DBPath); err == nil {
		fmt.Printf("Database %s already exists. All data will be lost.\n", cfg.DBPath)
		fmt.Print("Delete and recreate? (y/N): ")

		var answer string
		fmt.Scanln(&answer)

		if strings.ToLower(answer) != "y" {
			log.Info().Msg("Operation canceled by user")
			return fmt.Errorf("operation canceled by user")
		}

		if err := database.DeleteDB(cfg.DBPath); err != nil {
			return fmt.Errorf("failed to delete existing database: %w", err)
		}
		log.Info().Str("path", cfg.DBPath).Msg("Deleted existing database")
	}

	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	seeder := seed.New(svc.store, svc.engine, cfg.DemoSeed)
	return seeder.Run(context.Background(), postCount, cfg.PageSize)
}

// runSync executes the background cycle once or periodically.
func runSync(cfg *config.Config, oneShot bool) error {
	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	sync := syncer.New(svc.store, svc.engine, svc.queue, svc.publisher, syncer.Config{
		Interval:      cfg.SyncInterval,
		PageSize:      cfg.PageSize,
		MaxPages:      cfg.MaxSyncPages,
		RetentionDays: cfg.RetentionDays,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	if oneShot {
		log.Info().Msg("Running in one-shot mode")
		if err := sync.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		svc.queue.Wait()
		return nil
	}

	if err := sync.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	svc.queue.Wait()
	return nil
}

// runServer starts the HTTP API server with the provided configuration.
func runServer(cfg *config.Config) error {
	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	// Replay anything left pending from a previous run before serving.
	startupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := svc.queue.ReconcileAll(startupCtx); err != nil {
		log.Warn().Err(err).Msg("Startup reconcile failed")
	}
	cancel()

	handler := api.NewHandler(svc.engine, svc.queue, svc.publisher, svc.store, svc.ledger)
	return server.RunServer(handler, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}
