package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/statusroll/internal/engine"
	"github.com/hazz-dev/statusroll/internal/history"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check every probe once and record the results",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng, cleanup, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return executeRun(ctx, cmd.OutOrStdout(), eng)
}

type runner interface {
	Run(ctx context.Context) (engine.Report, error)
}

// executeRun prints the report even when recording failed, then returns the error.
func executeRun(ctx context.Context, out io.Writer, eng runner) error {
	rep, err := eng.Run(ctx)
	if rep.RunID != "" {
		fmt.Fprintf(out, "run %s  date %s  took %s\n", rep.RunID, rep.Date, rep.Duration.Round(time.Millisecond))
		printResults(out, rep)
		printRetention(out, rep.Retention)
	}
	return err
}

func printResults(out io.Writer, rep engine.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tGROUP\tSTATUS\tCODE\tRESPONSE\tERROR")
	for _, r := range rep.Results {
		group := r.Group
		if group == "" {
			group = string(r.Kind)
		}
		code := "-"
		if r.StatusCode > 0 {
			code = fmt.Sprint(r.StatusCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%s\n",
			r.ID,
			group,
			r.Status,
			code,
			r.ResponseTimeMs,
			r.Error,
		)
	}
	w.Flush()
	fmt.Fprintf(out, "%d up, %d degraded, %d down\n", rep.Up, rep.Degraded, rep.Down)
}

func printRetention(out io.Writer, res history.RetentionResult) {
	if len(res.Deleted) > 0 {
		fmt.Fprintf(out, "deleted: %s\n", strings.Join(res.Deleted, ", "))
	}
	if res.Compacted != "" {
		fmt.Fprintf(out, "compacted: %s\n", res.Compacted)
	}
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention policy without running checks",
		Args:  cobra.NoArgs,
		RunE:  runPrune,
	}
}

func runPrune(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	eng, cleanup, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return executePrune(ctx, cmd.OutOrStdout(), eng)
}

type pruner interface {
	Prune(ctx context.Context) (history.RetentionResult, error)
}

func executePrune(ctx context.Context, out io.Writer, eng pruner) error {
	res, err := eng.Prune(ctx)
	printRetention(out, res)
	if err != nil {
		return fmt.Errorf("enforcing retention: %w", err)
	}
	if len(res.Deleted) == 0 && res.Compacted == "" {
		fmt.Fprintln(out, "Nothing to prune.")
	}
	return nil
}
