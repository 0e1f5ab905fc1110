package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotanneal/app"
	"github.com/kilianp07/slotanneal/infra/logger"
	"github.com/kilianp07/slotanneal/internal/tune"
)

var tuneFlags struct {
	grid    string
	workers int
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Compare parameter sets over several seeds",
	RunE:  runTune,
}

func init() {
	f := tuneCmd.Flags()
	f.StringVarP(&tuneFlags.grid, "grid", "g", "grid.yaml", "yaml file listing seeds and parameter sets")
	f.IntVarP(&tuneFlags.workers, "workers", "w", runtime.NumCPU(), "parallel runs")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	grid, err := tune.LoadGrid(tuneFlags.grid, cfg.Solver)
	if err != nil {
		return err
	}
	inst, source, err := app.LoadInstance(cfg.Input)
	if err != nil {
		return err
	}

	log := logger.New("tune")
	log.Infof("tuning %d sets x %d seeds on %s", len(grid.Sets), len(grid.Seeds), source)
	summaries, err := tune.Run(ctx, inst, grid, tuneFlags.workers)
	if err != nil {
		return fmt.Errorf("tune: %w", err)
	}
	return tune.WriteTable(cmd.OutOrStdout(), summaries)
}
