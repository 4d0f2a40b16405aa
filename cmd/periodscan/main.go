package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"periodscan/adapters/excel"
	"periodscan/adapters/localfs"
	"periodscan/adapters/postgres"
	"periodscan/adapters/textfile"
	"periodscan/app"
	"periodscan/domain/core"
	"periodscan/domain/spectrum"
	"periodscan/internal"
	"periodscan/internal/config"
	"periodscan/internal/gate"
	"periodscan/internal/grid"
	"periodscan/internal/nullmodel"
	"periodscan/internal/prereg"
	"periodscan/internal/residual"
	"periodscan/internal/rng"
	"periodscan/internal/significance"
	"periodscan/internal/units"
	"periodscan/ports"
)

func main() {
	// Optional .env for local development; a missing file is not an error.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "periodscan",
		Short:         "Residual periodicity scanner for angular power spectra",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newControlsCmd(),
		newShowCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		obsColumn    string
		modelColumn  string
		ledgerDir    string
		skipControls bool
	)

	cmd := &cobra.Command{
		Use:   "run [grid-config] [observation] [model]",
		Short: "Execute a parameter-grid scan of one observation/model pair",
		Long: `Execute the full parameter grid defined by the JSON config against one
observation spectrum and one model spectrum, persisting one record per cell
plus an FDR-corrected summary.

Example: periodscan run grid.json planck_tt.txt lcdm_tt.txt --obs-column TT`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			runner, thresholds, err := buildRunner(args[0], ledgerDir)
			if err != nil {
				return err
			}

			obs, err := readSpectrum(ctx, args[1], spectrum.RoleObservation, obsColumn)
			if err != nil {
				return err
			}
			model, err := readSpectrum(ctx, args[2], spectrum.RoleModel, modelColumn)
			if err != nil {
				return err
			}

			if !skipControls {
				if err := runner.RunControls(ctx, thresholds.Alpha); err != nil {
					return fmt.Errorf("self-test controls failed, refusing to scan real data: %w", err)
				}
			}

			summary, err := runner.Run(ctx, obs, model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s complete: %d cells, %d invalid, %d positive, %d survive FDR at q=%g\n",
				summary.RunID, summary.TotalCells, summary.InvalidCells,
				summary.Positives, summary.FDRPositives, summary.FDRLevel)
			if os.Getenv("DATABASE_URL") == "" {
				fmt.Fprintf(out, "records: %s\n", filepath.Join(ledgerDir, summary.RunID.String()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&obsColumn, "obs-column", "", "Column to select from a multi-column observation file (TT, TE, EE, BB, PP)")
	cmd.Flags().StringVar(&modelColumn, "model-column", "", "Column to select from a multi-column model file (TT, TE, EE, BB, PP)")
	cmd.Flags().StringVar(&ledgerDir, "ledger", "./runs", "Directory for the file-backed ledger (ignored when DATABASE_URL is set)")
	cmd.Flags().BoolVar(&skipControls, "skip-controls", false, "Skip the negative/positive control battery (debugging only)")

	return cmd
}

func newControlsCmd() *cobra.Command {
	var ledgerDir string

	cmd := &cobra.Command{
		Use:   "controls [grid-config]",
		Short: "Run only the negative/positive control battery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, thresholds, err := buildRunner(args[0], ledgerDir)
			if err != nil {
				return err
			}
			if err := runner.RunControls(cmd.Context(), thresholds.Alpha); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "controls passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&ledgerDir, "ledger", "./runs", "Directory for the file-backed ledger (ignored when DATABASE_URL is set)")

	return cmd
}

func newShowCmd() *cobra.Command {
	var ledgerDir string

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print the persisted records of a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			ledger, err := openLedger(ledgerDir)
			if err != nil {
				return err
			}
			records, err := ledger.List(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no records for run %s", runID)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}

	cmd.Flags().StringVar(&ledgerDir, "ledger", "./runs", "Directory for the file-backed ledger (ignored when DATABASE_URL is set)")

	return cmd
}

// buildRunner wires the full pipeline from a grid config file.
func buildRunner(configPath, ledgerDir string) (*grid.Runner, prereg.Thresholds, error) {
	logger := internal.DefaultLogger

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, prereg.Thresholds{}, err
	}

	var thresholds prereg.Thresholds
	if cfg.PreregistrationPath != "" {
		thresholds, err = prereg.Load(cfg.PreregistrationPath)
	} else {
		thresholds, err = prereg.Default()
	}
	if err != nil {
		return nil, prereg.Thresholds{}, err
	}
	logger.Info("pre-registered thresholds: alpha=%g strong_max_p=%g strong_min_z=%g",
		thresholds.Alpha, thresholds.StrongMaxP, thresholds.StrongMinZ)

	ledger, err := openLedger(ledgerDir)
	if err != nil {
		return nil, prereg.Thresholds{}, err
	}

	g := gate.New(gate.Thresholds{
		CatastrophicChi2:   cfg.CatastrophicChi2Threshold,
		CatastrophicMedian: cfg.CatastrophicMedianThreshold,
	}, cfg.Strict(), logger)

	engine := nullmodel.NewEngine(rng.New(), cfg.Workers)
	evaluator := significance.NewEvaluator(thresholds)
	pipeline := app.NewCellPipeline(g, engine, evaluator, units.DefaultHeuristic(),
		residual.Options{Interpolate: cfg.Interpolate}, logger)

	return grid.NewRunner(cfg, pipeline, ledger, logger), thresholds, nil
}

// openLedger selects the backend: DATABASE_URL means PostgreSQL, otherwise the
// file-backed ledger under ledgerDir.
func openLedger(ledgerDir string) (ports.RunLedger, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return postgres.NewLedger(url)
	}
	return localfs.NewLedger(ledgerDir)
}

// readSpectrum picks a reader by file extension. A column selection is only
// meaningful for text files.
func readSpectrum(ctx context.Context, path string, role spectrum.Role, column string) (spectrum.Spectrum, error) {
	var reader ports.SpectrumReader
	switch {
	case strings.EqualFold(filepath.Ext(path), ".xlsx"):
		if column != "" {
			return spectrum.Spectrum{}, fmt.Errorf("column selection is not supported for workbooks (%s)", path)
		}
		reader = excel.NewReader()
	case column != "":
		r, err := textfile.NewColumnReader(column)
		if err != nil {
			return spectrum.Spectrum{}, err
		}
		reader = r
	default:
		reader = textfile.NewReader()
	}
	return reader.Read(ctx, path, role)
}
