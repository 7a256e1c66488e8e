package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/YuminosukeSato/casebook/casestudy"
	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/internal/config"
	"github.com/YuminosukeSato/casebook/internal/runner"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "casebook",
		Short:         "Educational machine learning case studies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file with CASEBOOK_* settings")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newListCmd(),
		newRunCmd(opts),
		newDescribeCmd(opts),
	)
	return rootCmd
}

// loadConfig resolves defaults, the env file and the environment, then applies the
// persistent flags and installs the logger.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetupLogger(cmd.ErrOrStderr(), level, cfg.LogFormat == "console")
	return cfg, nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available case studies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, cs := range casestudy.All() {
				fmt.Fprintf(w, "%s\t%s\n", cs.Name, cs.Title)
			}
			return w.Flush()
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		all        bool
		seed       uint64
		outDir     string
		jobs       int
		noPlots    bool
		exportData bool
	)

	cmd := &cobra.Command{
		Use:   "run [names...]",
		Short: "Run case studies and write their reports",
		Long: `Run one or more case studies. Artifacts go to <out>/<run-id>/<case>/.

Example: casebook run salary exam-pass --seed 7 --out results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("name at least one case study or pass --all")
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("out") {
				cfg.OutDir = outDir
			}
			if flags.Changed("jobs") {
				cfg.Jobs = jobs
			}
			if noPlots {
				cfg.Plots = false
			}
			if exportData {
				cfg.ExportData = true
			}

			studies := casestudy.All()
			if !all {
				studies = studies[:0]
				for _, name := range args {
					cs, err := casestudy.Lookup(name)
					if err != nil {
						return err
					}
					studies = append(studies, cs)
				}
			}

			summary, err := runner.New(cfg, log.GetLogger()).Run(cmd.Context(), studies)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			if failed := summary.Failed(); len(failed) > 0 {
				return errors.Newf("%d of %d case studies failed", len(failed), len(summary.Outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Run every case study")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed for data generation and models")
	cmd.Flags().StringVar(&outDir, "out", "casebook-out", "Output directory")
	cmd.Flags().IntVar(&jobs, "jobs", 1, "Case studies to run concurrently")
	cmd.Flags().BoolVar(&noPlots, "no-plots", false, "Skip plot rendering")
	cmd.Flags().BoolVar(&exportData, "export-data", false, "Write data.csv and data.xlsx per case study")

	return cmd
}

func printSummary(w io.Writer, s *runner.Summary) {
	fmt.Fprintf(w, "run %s -> %s\n", s.RunID, s.Dir)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, o := range s.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(tw, "FAIL\t%s\t%v\n", o.Name, o.Err)
			continue
		}
		headline := ""
		if len(o.Result.Metrics) > 0 {
			m := o.Result.Metrics[0]
			headline = fmt.Sprintf("%s=%.4f", m.Name, m.Value)
		}
		fmt.Fprintf(tw, "ok\t%s\t%s\t%.2fs\n", o.Name, headline, o.Duration.Seconds())
	}
	tw.Flush()
}

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "describe <name>",
		Short: "Print a summary of the dataset a case study generates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			cs, err := casestudy.Lookup(args[0])
			if err != nil {
				return err
			}
			df, err := cs.Data(datasets.NewRand(cfg.Seed))
			if err != nil {
				return errors.Wrapf(err, "generate %s", cs.Name)
			}
			summary, err := df.Describe()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%d rows x %d columns\n\n%s", cs.Title, df.NRows(), df.NCols(), summary.String())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed for data generation")
	return cmd
}
