package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bondfuzz/adapters/corpus"
	"bondfuzz/adapters/db/postgres/migrations"
	"bondfuzz/adapters/httpeval"
	"bondfuzz/adapters/report"
	"bondfuzz/app"
	"bondfuzz/domain/core"
	"bondfuzz/internal/calibration"
	"bondfuzz/internal/config"
	"bondfuzz/internal/container"
	"bondfuzz/internal/generator"
	"bondfuzz/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// setup loads configuration and wires the container. With store false nothing is persisted
// and no database is opened.
func setup(ctx context.Context, store bool) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c, err := container.New(cfg, nil)
	if err != nil {
		return nil, err
	}
	if store {
		if err := c.InitWithDatabase(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newGenerateCmd() *cobra.Command {
	var n int
	var seed int64
	var name string
	var out string
	var noStore bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a deterministic scenario corpus",
		Long: `Generate a corpus of decision scenarios. The same size and seed always produce the
same corpus. The corpus is stored in the database unless --no-store is given, and
written to --out as JSON or YAML (by extension) when set.

Example: bondfuzz generate --n 100 --seed 42 --out corpus.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), !noStore)
			if err != nil {
				return err
			}
			defer e.Shutdown(context.Background())

			cfg := generator.Config{N: e.Config.Generator.N, Seed: e.Config.Generator.Seed}
			if cmd.Flags().Changed("n") {
				cfg.N = n
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			c, err := e.Campaigns.GenerateCorpus(cmd.Context(), name, cfg)
			if err != nil {
				return err
			}
			if out != "" {
				if err := corpus.WriteFile(out, c); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "corpus %s: %d scenarios (seed %d)\n", c.ID, len(c.Scenarios), c.Seed)
			return nil
		},
	}

	cmd.Flags().IntVar(&n, "n", 100, "Number of scenarios")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Generator seed")
	cmd.Flags().StringVar(&name, "name", "corpus", "Corpus name")
	cmd.Flags().StringVar(&out, "out", "", "Write the corpus to this .json or .yaml file")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not store the corpus in the database")
	return cmd
}

// corpusFlags selects the corpus a campaign runs on: a stored corpus, a corpus file, or a
// freshly generated one
type corpusFlags struct {
	id   string
	file string
	n    int
	seed int64
}

func (f *corpusFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "corpus-id", "", "Use a stored corpus")
	cmd.Flags().StringVar(&f.file, "corpus-file", "", "Use a .json or .yaml corpus file")
	cmd.Flags().IntVar(&f.n, "n", 100, "Generate this many scenarios when no corpus is given")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Generator seed when no corpus is given")
}

func (f *corpusFlags) resolve(cmd *cobra.Command, e *container.Container) (*ports.Corpus, error) {
	switch {
	case f.id != "":
		id, err := core.ParseCorpusID(f.id)
		if err != nil {
			return nil, err
		}
		return e.Campaigns.LoadCorpus(cmd.Context(), id)
	case f.file != "":
		return corpus.ReadFile(f.file)
	}
	cfg := generator.Config{N: e.Config.Generator.N, Seed: e.Config.Generator.Seed}
	if cmd.Flags().Changed("n") {
		cfg.N = f.n
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = f.seed
	}
	return e.Campaigns.GenerateCorpus(cmd.Context(), "adhoc", cfg)
}

func newMeasureCmd() *cobra.Command {
	var cf corpusFlags
	var references []string
	var url string
	var name string
	var noStore bool
	var verify bool

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Measure the Bond Index of one or more evaluators",
		Long: `Run a full fuzzing campaign against each evaluator and write reports.

Evaluators are reference strategies (--reference ideal,order_sensitive,...) and/or a remote
service speaking the evaluator protocol (--url or EVALUATOR_URL).

Example: bondfuzz measure --url http://localhost:8080 --name my-model --n 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			e, err := setup(ctx, !noStore)
			if err != nil {
				return err
			}
			defer e.Shutdown(context.Background())

			evaluators, err := e.Evaluators(references, url, name)
			if err != nil {
				return err
			}
			c, err := cf.resolve(cmd, e)
			if err != nil {
				return err
			}
			campaign, err := e.Campaigns.Measure(ctx, c, evaluators...)
			if err != nil {
				return err
			}
			if err := writeCampaign(cmd, e, campaign, "Bond Index report"); err != nil {
				return err
			}
			if err := campaign.Err(); err != nil {
				return err
			}
			if verify {
				if err := e.Campaigns.Reproduce(ctx, c, campaign, evaluators...); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "reproduced: every result is identical on a second run")
			}
			return nil
		},
	}

	cf.register(cmd)
	cmd.Flags().StringSliceVar(&references, "reference", nil, "Reference evaluators to measure")
	cmd.Flags().StringVar(&url, "url", "", "Base URL of a remote evaluator")
	cmd.Flags().StringVar(&name, "name", "remote", "Name reported for the remote evaluator")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not store corpus or runs in the database")
	cmd.Flags().BoolVar(&verify, "verify", false, "Measure again and fail unless every result is identical")
	return cmd
}

func newCalibrateCmd() *cobra.Command {
	var cf corpusFlags
	var noStore bool

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Verify the metric against the five reference evaluators",
		Long: `Measure the reference evaluators and check that each Bond Index lands in its expected
range and that the indices are ordered from most to least consistent. Exits non-zero
when any check fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), !noStore)
			if err != nil {
				return err
			}
			defer e.Shutdown(context.Background())

			c, err := cf.resolve(cmd, e)
			if err != nil {
				return err
			}
			campaign, rep, err := e.Campaigns.Calibrate(cmd.Context(), c)
			if err != nil {
				return err
			}
			if err := writeCampaign(cmd, e, campaign, "Calibration report"); err != nil {
				return err
			}
			for _, check := range rep.Checks {
				mark := "PASS"
				if !check.Passed {
					mark = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-24s %s\n", mark, check.Name, check.Detail)
			}
			if err := campaign.Err(); err != nil {
				return err
			}
			return rep.Err()
		},
	}

	cf.register(cmd)
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not store corpus or runs in the database")
	return cmd
}

func newServeEvaluatorCmd() *cobra.Command {
	var references []string
	var port string

	cmd := &cobra.Command{
		Use:   "serve-evaluator",
		Short: "Expose reference evaluators over the evaluator protocol",
		Long: `Serve reference evaluators over HTTP. The first one answers POST /evaluate; each is
also reachable at POST /evaluators/{name}/evaluate. GET /metrics exposes Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer e.Shutdown(context.Background())

			var evaluators []ports.Evaluator
			if len(references) == 0 {
				for _, ref := range calibration.References() {
					evaluators = append(evaluators, ref.Evaluator)
				}
			}
			for _, name := range references {
				ref, ok := calibration.Lookup(name)
				if !ok {
					return fmt.Errorf("unknown reference evaluator %q", name)
				}
				evaluators = append(evaluators, ref.Evaluator)
			}
			if port == "" {
				port = e.Config.Server.Port
			}

			gin.SetMode(e.Config.Server.GinMode)
			e.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			server := httpeval.NewServer(e.Logger, e.Registry, evaluators...)
			return server.ListenAndServe(ctx, ":"+port)
		},
	}

	cmd.Flags().StringSliceVar(&references, "reference", nil, "Reference evaluators to serve (default all)")
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default PORT)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var formats []string
	var dir string

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Render a stored run as JSON, Markdown, HTML or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Shutdown(context.Background())

			id, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			doc, err := e.Campaigns.RunDocument(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(formats) == 0 {
				formats = e.Config.Output.Formats
			}
			if dir == "" {
				dir = e.Config.Output.Dir
			}
			written, err := app.WriteReports(dir, id.String(), formats, doc)
			if err != nil {
				return err
			}
			printWritten(cmd, written)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&formats, "format", nil, "Output formats: json, md, html, xlsx (default OUTPUT_FORMATS)")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default OUTPUT_DIR)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withMigrator := func(run func(ctx context.Context, m *migrations.Migrator, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Shutdown(context.Background())

			db, err := e.OpenDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return run(cmd.Context(), migrations.NewMigrator(db, e.Logger), cmd)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: withMigrator(func(ctx context.Context, m *migrations.Migrator, cmd *cobra.Command) error {
				return m.Up(ctx)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Remove the record of the last applied migration",
			RunE: withMigrator(func(ctx context.Context, m *migrations.Migrator, cmd *cobra.Command) error {
				return m.Down(ctx)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: withMigrator(func(ctx context.Context, m *migrations.Migrator, cmd *cobra.Command) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s\n", s.Version, state, s.Name)
				}
				return nil
			}),
		},
	)
	return cmd
}

func writeCampaign(cmd *cobra.Command, e *container.Container, campaign *app.CampaignRun, title string) error {
	for _, res := range campaign.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s bd=%s tier=%s failures=%d errors=%d\n",
			res.Evaluator, report.FormatIndex(res), res.Tier, res.Failures, res.EvaluatorErrors)
	}
	written, err := app.WriteReports(e.Config.Output.Dir, campaign.ID.String(), e.Config.Output.Formats, campaign.Document(title))
	if err != nil {
		return err
	}
	printWritten(cmd, written)
	return nil
}

func printWritten(cmd *cobra.Command, paths []string) {
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
	}
}
