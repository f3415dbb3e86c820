// Command notify is the SkyVibes operations CLI.
//
// Usage:
//
//	skyvibes-notify run
//	skyvibes-notify run --isolate --concurrency 8
//	skyvibes-notify schedule --cron "0 8,18 * * *"
//	skyvibes-notify devices list
//	skyvibes-notify devices register --token ExponentPushToken[xyz] --lat 28.61 --lon 77.20
//	skyvibes-notify migrate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/skyvibes/internal/app"
	"github.com/albapepper/skyvibes/internal/config"
	"github.com/albapepper/skyvibes/internal/db"
	"github.com/albapepper/skyvibes/internal/devices"
	"github.com/albapepper/skyvibes/internal/notifications"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "skyvibes-notify",
		Short:        "SkyVibes weather notification CLI",
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(devicesCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var (
		isolate     bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send one round of weather notifications to every device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				start := time.Now()
				result, err := a.Pipeline.Run(ctx)
				if err != nil {
					return err
				}
				logger.Info("Run finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				return nil
			}, func(cfg *config.Config, cmd *cobra.Command) {
				if cmd.Flags().Changed("isolate") {
					cfg.IsolateFailures = isolate
				}
				if cmd.Flags().Changed("concurrency") {
					cfg.Concurrency = concurrency
				}
			}, cmd)
		},
	}
	cmd.Flags().BoolVar(&isolate, "isolate", false, "Skip devices whose weather lookup fails instead of aborting")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Max devices processed at once (0 = unlimited)")
	return cmd
}

// --------------------------------------------------------------------------
// schedule command
// --------------------------------------------------------------------------

func scheduleCmd() *cobra.Command {
	var (
		expr       string
		runAtStart bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run notifications on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				if cfg.Schedule == "" {
					return fmt.Errorf("a cron expression is required (--cron or NOTIFY_SCHEDULE)")
				}
				sched := notifications.NewScheduler(cfg.Schedule, cfg.Timezone, a.Pipeline, logger)
				if err := sched.Start(ctx); err != nil {
					return err
				}
				if runAtStart {
					sched.RunNow()
				}
				logger.Info("Waiting for schedule", "next", sched.NextRun())
				<-ctx.Done()
				return nil
			}, func(cfg *config.Config, cmd *cobra.Command) {
				if expr != "" {
					cfg.Schedule = expr
				}
			}, cmd)
		},
	}
	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression (overrides NOTIFY_SCHEDULE)")
	cmd.Flags().BoolVar(&runAtStart, "now", false, "Also run once immediately")
	return cmd
}

// --------------------------------------------------------------------------
// devices command
// --------------------------------------------------------------------------

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect and register device tokens",
	}
	cmd.AddCommand(devicesListCmd())
	cmd.AddCommand(devicesRegisterCmd())
	return cmd
}

func devicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				records, err := a.Store.FetchAll(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range records {
					if r.HasCoordinates() {
						fmt.Fprintf(out, "%s\t%.4f\t%.4f\n", r.Token, *r.Latitude, *r.Longitude)
					} else {
						fmt.Fprintf(out, "%s\t-\t-\n", r.Token)
					}
				}
				logger.Info("Devices listed", "count", len(records))
				return nil
			}, nil, cmd)
		},
	}
}

func devicesRegisterCmd() *cobra.Command {
	var (
		token    string
		lat, lon float64
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register or update a device token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				rec := devices.Record{Token: token}
				if cmd.Flags().Changed("lat") {
					rec.Latitude = devices.Float(lat)
				}
				if cmd.Flags().Changed("lon") {
					rec.Longitude = devices.Float(lon)
				}
				if err := a.Store.Upsert(ctx, rec); err != nil {
					return err
				}
				logger.Info("Device registered", "has_coordinates", rec.HasCoordinates())
				return nil
			}, nil, cmd)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Push token")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the device_tokens table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if cfg.DeviceStore == config.StoreSQLite {
				st, err := devices.OpenSQLite(cfg.SQLitePath)
				if err != nil {
					return err
				}
				logger.Info("SQLite schema ready", "path", cfg.SQLitePath)
				return st.Close()
			}

			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("Postgres schema ready")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// helpers
// --------------------------------------------------------------------------

// withApp loads config, applies flag overrides, builds the app and runs fn
// with a signal-aware context.
func withApp(
	fn func(ctx context.Context, cfg *config.Config, a *app.App) error,
	override func(cfg *config.Config, cmd *cobra.Command),
	cmd *cobra.Command,
) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if override != nil {
		override(cfg, cmd)
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, cfg, a)
}
