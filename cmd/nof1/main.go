package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"nof1sim/adapters/api"
	"nof1sim/adapters/dagitty"
	"nof1sim/adapters/excel"
	"nof1sim/adapters/postgres"
	"nof1sim/domain/record"
	"nof1sim/domain/run"
	"nof1sim/domain/study"
	"nof1sim/internal"
	"nof1sim/internal/cohort"
	"nof1sim/internal/config"
	"nof1sim/internal/sim"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nof1",
		Short: "N-of-1 study data simulator",
	}

	rootCmd.AddCommand(
		newConvertCmd(),
		newSimulateCmd(),
		newCohortCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert [dagitty-file] [params-file]",
		Short: "Convert a dagitty graph description into a study parameter document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			params, err := dagitty.Convert(in)
			if err != nil {
				return err
			}

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()

			enc := json.NewEncoder(out)
			enc.SetIndent("", "    ")
			return enc.Encode(params)
		},
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		seed       uint64
		patientID  int
		days       int
		treatments string
		start      string
		xlsxOut    string
		withDrop   bool
	)

	cmd := &cobra.Command{
		Use:   "simulate [params-file]",
		Short: "Simulate one patient across a sequence of treatment blocks",
		Long: `Simulate one patient, one block per treatment label.

Example: nof1 simulate params.json --treatments Treatment_1,Treatment_2,Treatment_1 --days 14 --seed 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.DefaultLogger

			params, err := loadParams(args[0])
			if err != nil {
				return err
			}

			firstDay, err := time.Parse("2006-01-02", start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}

			manifest, err := run.NewManifest(params, seed)
			if err != nil {
				return err
			}
			logger.Info("run %s: seed=%d params=%s", manifest.RunID, seed, manifest.ParamsFingerprint)

			simulation, err := sim.New(params, sim.NewStream(seed))
			if err != nil {
				return err
			}

			var table, observed *record.Table
			for i, treatment := range splitTreatments(treatments) {
				req := sim.StepRequest{
					Treatment:     treatment,
					DaysPerPeriod: days,
					PatientID:     patientID,
					Record:        table,
				}
				if i == 0 {
					req.FirstDay = firstDay
				}
				if !withDrop {
					// An empty spec disables the configured dropout.
					req.DropOut = &study.DropOutSpec{}
				}
				table, observed, err = simulation.StepPatient(req)
				if err != nil {
					return err
				}
			}
			logger.Info("simulated %d rows for patient %d", table.Len(), patientID)

			if xlsxOut != "" {
				if err := excel.NewWriter().Write(table, xlsxOut); err != nil {
					return err
				}
				logger.Info("wrote %s", xlsxOut)
			}

			target := table
			if withDrop && observed != nil {
				target = observed
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(target)
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 42, "random stream seed")
	cmd.Flags().IntVar(&patientID, "patient", 0, "patient identifier")
	cmd.Flags().IntVar(&days, "days", 14, "days per period")
	cmd.Flags().StringVar(&treatments, "treatments", "", "comma-separated block treatment labels (required)")
	cmd.Flags().StringVar(&start, "start", "2024-01-01", "first study day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also export the record to this .xlsx path")
	cmd.Flags().BoolVar(&withDrop, "dropout", false, "emit the dropout-filtered view instead of the canonical record")
	_ = cmd.MarkFlagRequired("treatments")

	return cmd
}

func newCohortCmd() *cobra.Command {
	var (
		seed        uint64
		patients    int
		days        int
		treatments  string
		start       string
		parallelism int64
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "cohort [params-file]",
		Short: "Simulate many patients in parallel with per-patient derived seeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.DefaultLogger
			ctx := cmd.Context()

			params, err := loadParams(args[0])
			if err != nil {
				return err
			}
			firstDay, err := time.Parse("2006-01-02", start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}

			manifest, err := run.NewManifest(params, seed)
			if err != nil {
				return err
			}
			logger.Info("run %s: %d patients, seed=%d", manifest.RunID, patients, seed)

			runner := cohort.NewRunner(params, logger)
			results, err := runner.Run(ctx, cohort.Config{
				Patients:      patients,
				Treatments:    splitTreatments(treatments),
				DaysPerPeriod: days,
				FirstDay:      firstDay,
				Seed:          seed,
				Parallelism:   parallelism,
			})
			if err != nil {
				return err
			}

			var repo *postgres.RecordRepository
			if save {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if cfg.DatabaseURL == "" {
					return fmt.Errorf("--save requires NOF1_DATABASE_URL")
				}
				db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				repo = postgres.NewRecordRepository(db)
				if err := repo.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					continue
				}
				if repo != nil {
					if err := repo.Save(ctx, manifest.RunID, res.PatientID, res.Record); err != nil {
						return err
					}
				}
			}
			logger.Info("cohort finished: %d ok, %d failed", len(results)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d patients failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 42, "base seed; patient streams derive from it")
	cmd.Flags().IntVar(&patients, "patients", 10, "number of patients")
	cmd.Flags().IntVar(&days, "days", 14, "days per period")
	cmd.Flags().StringVar(&treatments, "treatments", "", "comma-separated block treatment labels (required)")
	cmd.Flags().StringVar(&start, "start", "2024-01-01", "first study day (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&parallelism, "parallelism", 0, "max concurrent patients (0 = all)")
	cmd.Flags().BoolVar(&save, "save", false, "persist records to postgres (NOF1_DATABASE_URL)")
	_ = cmd.MarkFlagRequired("treatments")

	return cmd
}

func newServeCmd() *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "serve [params-file]",
		Short: "Serve the simulation entry points over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.DefaultLogger

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = cfg.Seed
			}

			params, err := loadParams(args[0])
			if err != nil {
				return err
			}
			simulation, err := sim.New(params, sim.NewStream(seed))
			if err != nil {
				return err
			}

			server := api.NewServer(simulation, logger)
			addr := ":" + cfg.ServerPort
			logger.Info("listening on %s (seed=%d)", addr, seed)
			return http.ListenAndServe(addr, server.Routes())
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 42, "random stream seed (overrides NOF1_SEED)")
	return cmd
}

func loadParams(path string) (study.Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return study.Parameters{}, err
	}
	defer f.Close()
	return study.Load(f)
}

func splitTreatments(raw string) []string {
	var out []string
	for _, label := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
