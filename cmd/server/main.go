/*
main.go - Application entry point

PURPOSE:
  Runs the program tracker: the HTTP API (serve) or a one-shot schedule
  regeneration against the database (regenerate).

COMMANDS:
  tracker serve                          Start the HTTP server
  tracker regenerate --program ID        Regenerate one program's schedule
                     [--mode full|recent]

FLAGS (all commands):
  --config   YAML config file (optional)
  --db       SQLite database path, ":memory:" for in-memory
  --log-level

ENVIRONMENT:
  TRACKER_PORT, TRACKER_DB, TRACKER_LOG_LEVEL, TRACKER_LOG_FORMAT,
  TRACKER_TIMEZONE, TRACKER_RECENT_WINDOW. Flags win over the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration fields and defaults
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/myowjaYOY/program-tracker-sub004/api"
	"github.com/myowjaYOY/program-tracker-sub004/config"
	"github.com/myowjaYOY/program-tracker-sub004/logging"
	"github.com/myowjaYOY/program-tracker-sub004/schedule"
	"github.com/myowjaYOY/program-tracker-sub004/store/sqlite"
)

type rootOptions struct {
	configPath string
	dbPath     string
	port       int
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "tracker",
		Short:        "Recurring program schedule tracker.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")

	addServe(cmd, opts)
	addRegenerate(cmd, opts)
	return cmd
}

// load resolves the configuration and opens everything a command needs.
func (o *rootOptions) load() (config.Config, zerolog.Logger, *sqlite.Store, *schedule.Service, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, zerolog.Nop(), nil, nil, err
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, zerolog.Nop(), nil, nil, err
	}

	log := logging.New(cfg.Logging, os.Stderr)

	loc, err := cfg.Location()
	if err != nil {
		return cfg, log, nil, nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return cfg, log, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	svc := schedule.NewService(store)
	svc.Location = loc
	svc.RecentWindow = cfg.Schedule.RecentWindow.Std()
	svc.Log = log.With().Str("component", "schedule").Logger()
	return cfg, log, store, svc, nil
}

func addServe(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server.",
		Example: `
tracker serve --db ./data/tracker.db
tracker serve --config tracker.yaml --port 3000
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, store, svc, err := opts.load()
			if err != nil {
				return err
			}
			defer store.Close()

			handler := api.NewHandler(store, svc, log.With().Str("component", "api").Logger())
			router := api.NewRouter(handler, api.RouterOptions{
				MutationsPerSecond: cfg.Server.MutationsPerSecond,
				MutationBurst:      cfg.Server.MutationBurst,
			})

			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout.Std(),
				WriteTimeout: cfg.Server.WriteTimeout.Std(),
				IdleTimeout:  60 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info().Int("port", cfg.Server.Port).Str("db", cfg.Database.Path).Msg("server starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.port, "port", 0, "HTTP server port (overrides config)")
	topLevel.AddCommand(cmd)
}

func addRegenerate(topLevel *cobra.Command, opts *rootOptions) {
	var (
		programID string
		mode      string
	)

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate one program's schedule and print the result.",
		Example: `
tracker regenerate --program rehab-knee
tracker regenerate --program rehab-knee --mode recent
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := schedule.ParseMode(mode)
			if err != nil {
				return err
			}

			_, _, store, svc, err := opts.load()
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := svc.Regenerate(cmd.Context(), schedule.ProgramID(programID), m)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "program %s (%s): %d item(s), %d created, %d updated, %d removed\n",
				res.ProgramID, res.Mode, res.ItemsProcessed, res.InstancesCreated, res.InstancesUpdated, res.InstancesRemoved)
			for _, f := range res.Failures {
				fmt.Fprintf(out, "  failed %s (%s): %v\n", f.ItemID, f.Name, f.Err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&programID, "program", "", "program ID")
	cmd.Flags().StringVar(&mode, "mode", string(schedule.ModeFull), "full or recent")
	_ = cmd.MarkFlagRequired("program")
	topLevel.AddCommand(cmd)
}
