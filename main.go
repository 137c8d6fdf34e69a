package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"odinbook/auth"
	"odinbook/cache"
	"odinbook/crud"
	"odinbook/database"
	"odinbook/domain"
	"odinbook/http"
	"odinbook/notify"
)

var (
	// prod makes a config file mandatory and switches to json logs.
	prod bool

	rootCmd = &cobra.Command{
		Use:           "odinbook",
		Short:         "The odinbook social network backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the http api",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE:  runMigrate,
	}
	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "DANGER: drop every table and create them again",
		RunE:  runReset,
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo accounts, friendships and posts",
		RunE:  runSeed,
	}
	seedUsers int
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&prod, "prod", false, "Provide this flag in production to ensure that a config file is provided before the application starts.")
	seedCmd.Flags().IntVar(&seedUsers, "users", 20, "Number of demo accounts to create")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(seedCmd)
}

// main is the app's entry point.
func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("odinbook failed", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration, installs the logger and opens the database.
func setup() (Config, *database.DB, error) {
	config, err := LoadConfig(prod)
	if err != nil {
		return config, nil, err
	}
	initLogger(config.IsProd())

	db, err := database.Open(config.Database, config.IsProd())
	if err != nil {
		return config, nil, err
	}
	return config, db, nil
}

// initLogger logs text locally and json in production.
func initLogger(isProd bool) {
	var handler slog.Handler
	if isProd {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.AutoMigrate(); err != nil {
		return err
	}
	slog.Info("database migrated")
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	config, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	if config.IsProd() {
		return fmt.Errorf("refusing to reset a production database")
	}
	if err := db.DestructiveReset(); err != nil {
		return err
	}
	slog.Info("database reset")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	config, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.AutoMigrate(); err != nil {
		return err
	}

	// Seeding produces no notifications; the events are dropped on purpose.
	services, err := crud.NewServices(db.Gorm,
		crud.WithNotification(),
		crud.WithUser(config.Pepper),
		crud.WithFriend(),
		crud.WithPost(),
		crud.WithComment(),
	)
	if err != nil {
		return err
	}
	return Seed(cmd.Context(), services, seedUsers)
}

func runServe(cmd *cobra.Command, args []string) error {
	config, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.AutoMigrate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the crud services. The notification fan-out runs either on NATS or
	// on an in-process dispatcher.
	cfgs := []crud.ServicesConfig{crud.WithNotification()}
	var nc *nats.Conn
	if config.NATS.URL != "" {
		nc, err = nats.Connect(config.NATS.URL, nats.Name("odinbook"))
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer nc.Drain()
		cfgs = append(cfgs, crud.WithEvents(func(h domain.EventHandler) (domain.EventPublisher, error) {
			if _, err := notify.Subscribe(nc, h, config.NotifyTimeout()); err != nil {
				return nil, err
			}
			return notify.NewNatsPublisher(nc), nil
		}))
		slog.Info("notification fan-out on nats", "url", config.NATS.URL, "subject", notify.Subject)
	} else {
		var dispatcher *notify.Dispatcher
		cfgs = append(cfgs, crud.WithEvents(func(h domain.EventHandler) (domain.EventPublisher, error) {
			dispatcher = notify.NewDispatcher(h,
				notify.WithWorkers(config.Notify.Workers),
				notify.WithBuffer(config.Notify.Buffer),
				notify.WithTimeout(config.NotifyTimeout()))
			return dispatcher, nil
		}))
		defer func() {
			if dispatcher != nil {
				dispatcher.Close()
			}
		}()
	}

	if config.Redis.URL != "" {
		client, err := cache.Connect(ctx, config.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		cfgs = append(cfgs, crud.WithRankingCache(cache.NewRedisRanking(client, config.RankingTTL())))
		slog.Info("recommendation snapshots in redis")
	}

	cfgs = append(cfgs,
		crud.WithUser(config.Pepper),
		crud.WithOAuth(),
		crud.WithFriend(),
		crud.WithRecommendation(),
		crud.WithPost(),
		crud.WithComment(),
		crud.WithCascade(),
	)
	services, err := crud.NewServices(db.Gorm, cfgs...)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(config.JWTKey, config.TokenExpiry())
	if err != nil {
		return err
	}
	var facebook *auth.Facebook
	if config.Facebook.ID != "" {
		facebook = auth.NewFacebook(config.Facebook.ID, config.Facebook.Secret, config.Facebook.RedirectURL, config.Facebook.GraphURL)
	}

	// Set up a webserver and serve the app until we get a signal.
	server := http.NewServer(services, tokens, facebook, config.AdminPassword)
	return server.Run(ctx, ":"+strconv.Itoa(config.Port))
}
