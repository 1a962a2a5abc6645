package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/config"
	"audio-embed-service/internal/repository"
	"audio-embed-service/internal/server"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:           "api",
		Short:         "Audio embed billing and entitlement service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and sync worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := client.InitDatabase(&cfg.Database)
			if err != nil {
				return err
			}
			if err := client.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "reconcile <customer_id>",
		Short: "Sync one Stripe customer's subscription into the billing record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}

			customer, err := app.customerRepo.FindByCustomerID(ctx, args[0])
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("customer %s is not linked to any account", args[0])
				}
				return fmt.Errorf("find customer: %w", err)
			}

			if err := app.billingService.Reconcile(ctx, customer.CustomerID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled %s (account %s)\n", customer.CustomerID, customer.AccountID)
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Run every due sync job once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			ran, err := app.pool.RunDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ran %d sync jobs\n", ran)
			return nil
		},
	})

	return rootCmd
}

func loadConfig(cfg *config.Config) error {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found (ok in prod)")
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setupLogger(&cfg.Log)
	return nil
}

func setupLogger(logCfg *config.Log) {
	level, err := zerolog.ParseLevel(strings.ToLower(logCfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if logCfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(app.services, app.accountRepo, server.Options{
		JWTSecret:  cfg.Auth.JWTSecret,
		PricingURL: cfg.PricingURL,
	})
	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.pool.Run(gctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", serverAddr).Str("environment", cfg.Environment.Name).Msg("starting HTTP server")
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
