package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"exocompare/adapters/rng"
	"exocompare/adapters/tap"
	"exocompare/adapters/warehouse"
	"exocompare/app"
	"exocompare/domain/compare"
	"exocompare/domain/core"
	"exocompare/internal"
	"exocompare/internal/api"
	"exocompare/internal/config"
	apperrors "exocompare/internal/errors"
	"exocompare/internal/telemetry"
	"exocompare/ports"
)

var logger = internal.DefaultLogger.WithComponent("cli")

type globalFlags struct {
	root        string
	configPath  string
	noWarehouse bool
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env: %v", err)
	}

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "exocompare",
		Short:         "Compare planet properties across exoplanet discovery methods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.root, "root", ".", "Project root that output paths are resolved against")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "TOML or YAML file overriding the built-in configuration")
	rootCmd.PersistentFlags().BoolVar(&flags.noWarehouse, "no-warehouse", false, "Skip loading the clean table and results into the warehouse")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newOfflineCmd(flags),
		newAnalyzeCmd(flags),
		newServeCmd(flags),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for configuration problems and 1 for everything else.
func exitCode(err error) int {
	if apperrors.GetCode(err) == apperrors.CodeConfigInvalid || core.IsConfigurationError(err) {
		return 2
	}
	return 1
}

// environment is everything a command needs, opened once per invocation.
type environment struct {
	cfg     *config.Config
	paths   config.Paths
	db      *sqlx.DB
	metrics *telemetry.Metrics
}

func (e *environment) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

func (e *environment) warehouse() ports.WarehouseRepository {
	if e.db == nil {
		return nil
	}
	return warehouse.NewWarehouseRepository(e.db)
}

func (e *environment) pipeline(events ports.EventBroadcaster) *app.PipelineService {
	return app.NewPipelineService(e.cfg, e.paths, app.PipelineDeps{
		Fetcher:   tap.NewClient(e.cfg.Tap.Timeout()),
		Warehouse: e.warehouse(),
		RNG:       rng.NewStreamAdapter(),
		Metrics:   e.metrics,
		Events:    events,
	})
}

func openEnvironment(ctx context.Context, flags *globalFlags, withWarehouse bool) (*environment, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	paths, err := config.ResolvePaths(flags.root, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	env := &environment{cfg: cfg, paths: paths, metrics: telemetry.New()}
	if withWarehouse && !flags.noWarehouse {
		db, err := warehouse.Open(ctx, cfg.Warehouse.URL, paths.Warehouse)
		if err != nil {
			return nil, err
		}
		env.db = db
	}
	return env, nil
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch a fresh catalog snapshot and produce every artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer env.Close()

			runLog, err := env.pipeline(nil).Run(cmd.Context())
			if runLog != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s\n", runLog.RunID, runLog.Status)
			}
			return err
		},
	}
}

func newOfflineCmd(flags *globalFlags) *cobra.Command {
	var cleanPath string

	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Re-run the analysis from an existing clean snapshot",
		Long: `Re-run the analysis and rebuild every artifact from a clean snapshot
without contacting the archive.

Example: exocompare offline --clean data/clean/pscomppars_clean_20250301T080000Z.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer env.Close()

			runLog, err := env.pipeline(nil).RunOffline(cmd.Context(), cleanPath)
			if runLog != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s\n", runLog.RunID, runLog.Status)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cleanPath, "clean", "", "Clean snapshot CSV to analyze")
	_ = cmd.MarkFlagRequired("clean")
	return cmd
}

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	var input, out string
	var fromWarehouse bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute the comparison result for a CSV/XLSX file or the warehouse table",
		Long: `Compute the comparison result and print it as JSON. No snapshots, figures
or reports are written.

Example: exocompare analyze --input planets.xlsx --out result.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (input == "") == !fromWarehouse {
				return fmt.Errorf("exactly one of --input or --from-warehouse is required")
			}
			env, err := openEnvironment(cmd.Context(), flags, fromWarehouse)
			if err != nil {
				return err
			}
			defer env.Close()

			svc := env.pipeline(nil)
			var res *compare.Result
			if fromWarehouse {
				res, err = svc.AnalyzeWarehouse(cmd.Context())
			} else {
				res, err = svc.AnalyzeFile(cmd.Context(), input)
			}
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			logger.Info("wrote %s", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CSV or XLSX file with the raw catalog columns")
	cmd.Flags().StringVar(&out, "out", "", "Write the result to this file instead of stdout")
	cmd.Flags().BoolVar(&fromWarehouse, "from-warehouse", false, "Analyze the clean table stored by the last run")
	return cmd
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest artifacts, stored runs and live run progress over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer env.Close()
			if port == "" {
				port = env.cfg.Server.Port
			}

			hub := api.NewSSEHub()
			server := api.NewServer(env.paths, api.Options{
				Warehouse: env.warehouse(),
				Runner:    env.pipeline(hub),
				Metrics:   env.metrics,
				Hub:       hub,
				GinMode:   env.cfg.Server.GinMode,
			})
			return server.Start(cmd.Context(), ":"+port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (defaults to server.port or PORT)")
	return cmd
}
