package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/badoux/checkmail"
	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mailprobe/config"
	"mailprobe/middleware"
	"mailprobe/routes"
	"mailprobe/verifier"
	"mailprobe/worker"
)

var flagPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the validation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagPort, "port", "", "HTTP port (overrides SERVER_PORT)")
}

func runServer() error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flagPort != "" {
		config.AppConfig.ServerPort = flagPort
	}

	// The configured MAIL FROM is sent to every probed server; reject
	// obviously broken values before the first probe goes out.
	if err := checkmail.ValidateFormat(config.AppConfig.Verifier.FromAddress); err != nil {
		return fmt.Errorf("invalid VERIFY_FROM address %q: %w", config.AppConfig.Verifier.FromAddress, err)
	}

	if err := config.InitSentry(); err != nil {
		return fmt.Errorf("failed to init sentry: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	if err := config.ConnectDB(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := config.ConnectRedis(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	engine, err := buildEngine()
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "mailprobe",
		DisableStartupMessage: true,
	})
	app.Use(middleware.CORS())
	routes.SetupRoutes(app, config.DB, engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifyWorker := worker.NewVerifyWorker(config.DB, engine, logrus.WithField("component", "worker"))
	verifyWorker.RequeueStale()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		verifyWorker.Start(ctx)
		return nil
	})
	g.Go(func() error {
		logrus.WithField("port", config.AppConfig.ServerPort).Info("server starting")
		return app.Listen(":" + config.AppConfig.ServerPort)
	})
	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// buildEngine assembles the shared verifier from the configured defaults
// and the optional extra disposable-domain file.
func buildEngine() (*verifier.Verifier, error) {
	engine, err := verifier.New(config.AppConfig.VerifierOptions(), logrus.WithField("component", "verifier"))
	if err != nil {
		return nil, err
	}
	if path := config.AppConfig.Verifier.DisposableFile; path != "" {
		set, err := verifier.NewDisposableSetFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load disposable domains: %w", err)
		}
		engine.WithDisposable(set)
		logrus.WithField("domains", set.Len()).Info("loaded disposable domain set")
	}
	return engine, nil
}
