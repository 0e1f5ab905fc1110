package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotanneal/core/anneal"
	"github.com/kilianp07/slotanneal/core/runlog"
)

var runsFlags struct {
	limit int
	since time.Duration
	state string
	id    string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List previous runs from the run log",
	RunE:  runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.IntVarP(&runsFlags.limit, "limit", "n", 20, "most recent runs to show, 0 for all")
	f.DurationVar(&runsFlags.since, "since", 0, "only runs younger than this")
	f.StringVar(&runsFlags.state, "state", "", "done or cancelled")
	f.StringVar(&runsFlags.id, "id", "", "a single run id")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	q := runlog.Query{Limit: runsFlags.limit, RunID: runsFlags.id}
	if runsFlags.since > 0 {
		q.Start = time.Now().Add(-runsFlags.since)
	}
	switch runsFlags.state {
	case "":
	case "done":
		q.States = []anneal.State{anneal.StateDone}
	case "cancelled":
		q.States = []anneal.State{anneal.StateCancelled}
	default:
		return fmt.Errorf("unknown state %q", runsFlags.state)
	}

	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "time\trun\tstate\tbest\titerations\tseed\telapsed\tfingerprint")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%d\t%s\t%s\n",
			r.Timestamp.Local().Format(time.DateTime), r.RunID, r.State, r.BestCost,
			r.Iterations, r.Params.Seed, r.Elapsed.Round(time.Millisecond), r.Fingerprint)
	}
	return tw.Flush()
}
