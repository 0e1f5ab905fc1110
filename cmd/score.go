package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotanneal/internal/score"
	"github.com/kilianp07/slotanneal/pkg/dataset"
	"github.com/kilianp07/slotanneal/pkg/export"
)

var scoreInput string

var scoreCmd = &cobra.Command{
	Use:   "score <submission.csv>",
	Short: "Evaluate a submission against family data",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreInput, "input", "i", "", "family data csv (overrides input.path)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Input.Path
	if scoreInput != "" {
		path = scoreInput
	}
	if path == "" {
		return fmt.Errorf("score needs family data: set --input or input.path")
	}
	inst, err := dataset.Load(path)
	if err != nil {
		return err
	}
	assignment, err := export.LoadSubmission(args[0], inst)
	if err != nil {
		return err
	}
	s, err := score.Evaluate(inst, assignment)
	if err != nil {
		return err
	}
	if err := s.Write(cmd.OutOrStdout()); err != nil {
		return err
	}
	if !s.Feasible {
		return fmt.Errorf("submission violates occupancy bounds on %d slots", len(s.Violations))
	}
	return nil
}
