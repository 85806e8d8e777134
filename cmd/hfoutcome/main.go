// Command hfoutcome trains and evaluates boosted-tree outcome models for
// heart-failure patient subgroups from a YAML configuration and per-subgroup
// CSV splits.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hfoutcome/config"
	"hfoutcome/dataset"
	"hfoutcome/engine/gbdt"
	"hfoutcome/pipeline"
	pkglog "hfoutcome/pkg/log"
)

var (
	configPath string
	logLevel   string
	console    bool
	dataDir    string
	modelDir   string
	subgroup   string

	rootCmd = &cobra.Command{
		Use:          "hfoutcome",
		Short:        "Boosted-tree outcome modeling for heart-failure subgroups",
		SilenceUsage: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: search, bootstrap evaluation and importance per subgroup and outcome",
		RunE:  runPipeline,
	}
	selectCmd = &cobra.Command{
		Use:   "select",
		Short: "Run forward domain selection for the configured outcomes on one subgroup",
		RunE:  runSelection,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "pipeline configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&console, "console", false, "human-readable log output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".", "directory holding <subgroup>_train.csv and <subgroup>_test.csv files")

	runCmd.Flags().StringVar(&modelDir, "models", "", "directory to persist the winning model per unit (empty: don't persist)")
	selectCmd.Flags().StringVar(&subgroup, "subgroup", "", "subgroup to select on (default: first configured)")

	rootCmd.AddCommand(runCmd, selectCmd)
}

func setup() (*config.Config, *pipeline.Pipeline, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := pkglog.Setup(level, console)

	p, err := pipeline.New(cfg, gbdt.New(), logger)
	if err != nil {
		return nil, nil, logger, err
	}
	return cfg, p, logger, nil
}

// loadSplit reads one subgroup's train and test CSV files from the data dir.
func loadSplit(name string) (dataset.Split, error) {
	train, err := dataset.LoadCSV(filepath.Join(dataDir, name+"_train.csv"))
	if err != nil {
		return dataset.Split{}, err
	}
	test, err := dataset.LoadCSV(filepath.Join(dataDir, name+"_test.csv"))
	if err != nil {
		return dataset.Split{}, err
	}
	return dataset.Split{Name: name, Train: train, Test: test}, nil
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, p, logger, err := setup()
	if err != nil {
		return err
	}
	p.ModelDir = modelDir
	if modelDir != "" {
		if err := os.MkdirAll(modelDir, 0o750); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	splits := make([]dataset.Split, 0, len(cfg.Subgroups))
	for _, name := range cfg.Subgroups {
		split, err := loadSplit(name)
		if err != nil {
			return err
		}
		splits = append(splits, split)
	}

	result, err := p.Run(ctx, splits)
	if err != nil {
		return err
	}

	for _, report := range result.Reports {
		fmt.Printf("## %s\n%s\n", report.Subgroup, report.Render())
	}
	for _, res := range result.Results {
		fmt.Printf("## %s / %s\n%s\n", res.Unit.Subgroup, res.Unit.Outcome, pipeline.RenderImportance(res.Importance))
	}
	for _, f := range result.Failures {
		logger.Error().Err(f.Err).
			Str("subgroup", f.Unit.Subgroup).
			Str("outcome", f.Unit.Outcome).
			Msg("unit did not complete")
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d of %d units failed", len(result.Failures), len(result.Failures)+len(result.Results))
	}
	return nil
}

func runSelection(cmd *cobra.Command, _ []string) error {
	cfg, p, logger, err := setup()
	if err != nil {
		return err
	}

	name := subgroup
	if name == "" {
		name = cfg.Subgroups[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	split, err := loadSplit(name)
	if err != nil {
		return err
	}

	states, failures := p.RunSelection(ctx, split, cfg.ForwardOutcomes)
	for _, outcome := range cfg.ForwardOutcomes {
		state, ok := states[outcome]
		if !ok {
			continue
		}
		fmt.Printf("## %s / %s\n%s\n", name, outcome, pipeline.RenderSelection(state))
	}
	for _, f := range failures {
		logger.Error().Err(f.Err).Str("outcome", f.Unit.Outcome).Msg("selection did not complete")
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d outcome(s) failed selection", len(failures))
	}
	return nil
}
