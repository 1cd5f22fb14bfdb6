package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gotriangle/adapters/excel"
	"gotriangle/adapters/postgres"
	"gotriangle/app"
	"gotriangle/internal"
	"gotriangle/internal/analysis/triangle"
	"gotriangle/internal/api"
	"gotriangle/internal/config"
	"gotriangle/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cliState is filled by the root command before any subcommand runs
type cliState struct {
	cfg    *config.Config
	logger *internal.Logger
}

// analysisFlags are shared by every command that runs an analysis
type analysisFlags struct {
	metric    string
	threshold float64
	workers   int
	envelope  bool
	pretty    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:           "triangle",
		Short:         "Development factor and outlier analysis for claims triangles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			state.cfg = cfg
			state.logger = internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.logger != nil {
				_ = state.logger.Sync()
			}
		},
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(state),
		newAnalyzeSQLCmd(state),
		newServeCmd(state),
	)
	return rootCmd
}

func addAnalysisFlags(cmd *cobra.Command, f *analysisFlags) {
	cmd.Flags().StringVarP(&f.metric, "metric", "m", "", "Metric column to analyze (default from TRIANGLE_METRIC, else paid)")
	cmd.Flags().Float64VarP(&f.threshold, "outlier-z", "z", 2.5, "Outlier |z| threshold (default from TRIANGLE_OUTLIER_Z)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel dev_month groups (default from TRIANGLE_WORKERS)")
	cmd.Flags().BoolVar(&f.envelope, "envelope", false, "Wrap the result with run id, source and runtime")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "Indent JSON output")
}

func newAnalyzeCmd(state *cliState) *cobra.Command {
	var flags analysisFlags
	var sheet string

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a long-format triangle from a CSV or XLSX file",
		Long: `Compute volume-weighted link ratios per development month and flag outlying
link ratios by z-score.

The file needs accident_period, dev_month and the metric column.

Example: triangle analyze claims.csv --metric paid -z 2.5 --pretty`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sheet == "" {
				sheet = state.cfg.Analysis.Sheet
			}
			reader := excel.NewDataReader(args[0], excel.ReaderConfig{Sheet: sheet}, state.logger)
			return runAnalysis(cmd, state, reader, flags)
		},
	}

	addAnalysisFlags(cmd, &flags)
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet to read from XLSX files (default first sheet)")
	return cmd
}

func newAnalyzeSQLCmd(state *cliState) *cobra.Command {
	var flags analysisFlags
	var query, table, databaseURL string

	cmd := &cobra.Command{
		Use:   "analyze-sql",
		Short: "Analyze a long-format triangle read from PostgreSQL",
		Long: `Run a query (or read a whole table) and analyze the result set.

Example: triangle analyze-sql --table reserving.paid_triangle --metric paid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				databaseURL = state.cfg.Database.URL
			}
			if databaseURL == "" {
				return fail(cmd, flags, fmt.Errorf("--database-url or DATABASE_URL is required"))
			}
			if query == "" {
				q, err := postgres.SelectAllQuery(table)
				if err != nil {
					return fail(cmd, flags, fmt.Errorf("--query or --table is required: %w", err))
				}
				query = q
			}

			db, err := postgres.Connect(cmd.Context(), databaseURL)
			if err != nil {
				return fail(cmd, flags, err)
			}
			defer db.Close()

			return runAnalysis(cmd, state, postgres.NewTableSource(db, query), flags)
		},
	}

	addAnalysisFlags(cmd, &flags)
	cmd.Flags().StringVar(&query, "query", "", "SQL returning accident_period, dev_month and the metric")
	cmd.Flags().StringVar(&table, "table", "", "Table to read in full when --query is not given")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default DATABASE_URL)")
	return cmd
}

func newServeCmd(state *cliState) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				state.cfg.Server.Port = port
			}
			if err := config.Validate(state.cfg); err != nil {
				return err
			}
			return api.NewServer(state.cfg, state.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default PORT, else 8080)")
	return cmd
}

func runAnalysis(cmd *cobra.Command, state *cliState, source ports.TableSource, flags analysisFlags) error {
	defaults := state.cfg.Analysis
	if flags.workers > 0 {
		defaults.Workers = flags.workers
	}

	req := app.AnalysisRequest{Source: source, Metric: flags.metric}
	if cmd.Flags().Changed("outlier-z") {
		z := flags.threshold
		req.OutlierZThreshold = &z
	}

	run, err := app.NewAnalysisService(defaults, state.logger).Run(cmd.Context(), req)
	if err != nil {
		return fail(cmd, flags, err)
	}

	if flags.envelope {
		return writeJSON(cmd.OutOrStdout(), run, flags.pretty)
	}
	return writeJSON(cmd.OutOrStdout(), run.Result, flags.pretty)
}

// fail prints the structured error report and returns err so the process exits non-zero
func fail(cmd *cobra.Command, flags analysisFlags, err error) error {
	if writeErr := writeJSON(cmd.OutOrStdout(), triangle.NewErrorReport(err), flags.pretty); writeErr != nil {
		return writeErr
	}
	return err
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
