package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotanneal/core/generator"
	"github.com/kilianp07/slotanneal/pkg/dataset"
)

var (
	genCfg generator.Config
	genOut string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic family data csv",
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.IntVar(&genCfg.Groups, "groups", 5000, "number of families")
	f.IntVar(&genCfg.MinSize, "min-size", 2, "smallest family")
	f.IntVar(&genCfg.MaxSize, "max-size", 8, "largest family")
	f.Float64Var(&genCfg.Skew, "skew", 1, "demand skew towards popular days")
	f.Int64Var(&genCfg.Seed, "seed", 1, "random seed")
	f.StringVarP(&genOut, "out", "o", "family_data.csv", "output file")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	inst, err := generator.Generate(genCfg)
	if err != nil {
		return err
	}
	if err := dataset.Save(genOut, inst); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d families (%d people) to %s\n", inst.Len(), inst.TotalSize(), genOut)
	return nil
}
