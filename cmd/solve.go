package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotanneal/app"
	"github.com/kilianp07/slotanneal/infra/logger"
	"github.com/kilianp07/slotanneal/infra/metrics"
)

var solveFlags struct {
	input      string
	output     string
	result     string
	iterations int
	report     int
	seed       int64
	quiet      bool
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run one annealing search and write the submission",
	RunE:  runSolve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVarP(&solveFlags.input, "input", "i", "", "family data csv (overrides input.path)")
	f.StringVarP(&solveFlags.output, "output", "o", "", "submission csv (overrides output.submission)")
	f.StringVar(&solveFlags.result, "result", "", "json result document (overrides output.result)")
	f.IntVar(&solveFlags.iterations, "iterations", 0, "iteration budget (overrides solver.max_iterations)")
	f.IntVar(&solveFlags.report, "report-every", 0, "progress interval (overrides solver.report_every)")
	f.Int64Var(&solveFlags.seed, "seed", 0, "random seed (overrides solver.seed)")
	f.BoolVarP(&solveFlags.quiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input.Path = solveFlags.input
	}
	if flags.Changed("output") {
		cfg.Output.Submission = solveFlags.output
	}
	if flags.Changed("result") {
		cfg.Output.Result = solveFlags.result
	}
	if flags.Changed("iterations") {
		cfg.Solver.MaxIterations = solveFlags.iterations
	}
	if flags.Changed("report-every") {
		cfg.Solver.ReportEvery = solveFlags.report
	}
	if flags.Changed("seed") {
		cfg.Solver.Seed = solveFlags.seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New("solve")
	var opts []app.Option
	if !solveFlags.quiet {
		out := cmd.ErrOrStderr()
		opts = append(opts, app.WithListener(func(ev app.Event) { printEvent(out, ev) }))
	}
	runner, err := app.NewRunner(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Errorf("runner close: %v", err)
		}
	}()

	if cfg.Metrics.PrometheusAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, cfg.Metrics.PrometheusAddr); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}

	rep, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	res := rep.Result
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s %s after %d iterations in %s\n", rep.RunID, res.State, res.Iterations, res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "best cost %.2f (preference %.0f, accounting %.2f)\n", res.BestCost, rep.Cost.Preference, rep.Cost.Accounting)
	fmt.Fprintf(w, "initial cost %.2f, feasible start %t, fingerprint %s\n", res.Stats.InitialCost, res.Stats.InitialFeasible, rep.Fingerprint)
	for _, path := range rep.Written {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}

func printEvent(w io.Writer, ev app.Event) {
	switch ev.Kind {
	case app.EventProgress:
		p := ev.Progress
		fmt.Fprintf(w, "iter %9d  T %10.3f  current %12.2f  best %12.2f  acc %d rej %d\n",
			p.Iteration, p.Temperature, p.CurrentCost, p.BestCost, p.Accepted, p.Rejected)
	case app.EventLog:
		fmt.Fprintf(w, "[%s] %s\n", ev.Level, ev.Message)
	}
}
