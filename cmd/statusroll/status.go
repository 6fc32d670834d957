package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/statusroll/internal/history"
)

func statusCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a day's per-probe summary from storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.openStore(context.Background())
			if err != nil {
				return err
			}
			defer store.Close()

			return executeStatus(cmd.OutOrStdout(), store, date, time.Now())
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "UTC date to show (YYYY-MM-DD, default today)")
	return cmd
}

type statusStore interface {
	Load(ctx context.Context, date string) (*history.DailyRecord, error)
}

func executeStatus(out io.Writer, store statusStore, date string, now time.Time) error {
	if date == "" {
		date = history.DateKey(now)
	}
	if _, err := time.Parse(history.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
	}

	rec, err := store.Load(context.Background(), date)
	if errors.Is(err, history.ErrNotFound) {
		fmt.Fprintf(out, "No record for %s. Run 'statusroll run' first.\n", date)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", date, err)
	}

	ids := make([]string, 0, len(rec.Summary))
	for id := range rec.Summary {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	last := lastChecks(rec)

	fmt.Fprintf(out, "%s  %s runs recorded\n", date, humanize.Comma(int64(len(rec.Entries))))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tUPTIME\tCHECKS\tUP\tDEGRADED\tDOWN\tAVG\tP95\tLAST CHECK")
	for _, id := range ids {
		s := rec.Summary[id]
		lastCheck := "compacted"
		if ts, ok := last[id]; ok {
			lastCheck = humanize.RelTime(ts, now, "ago", "from now")
		}
		fmt.Fprintf(w, "%s\t%.2f%%\t%s\t%d\t%d\t%d\t%dms\t%dms\t%s\n",
			id,
			s.UptimePercent,
			humanize.Comma(int64(s.TotalChecks)),
			s.UpChecks,
			s.DegradedChecks,
			s.DownChecks,
			s.AvgResponseTimeMs,
			s.P95ResponseTimeMs,
			lastCheck,
		)
	}
	w.Flush()
	return nil
}

// lastChecks maps each probe to the timestamp of its most recent entry.
func lastChecks(rec *history.DailyRecord) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, e := range rec.Entries {
		for id := range e.Results {
			if e.Timestamp.After(out[id]) {
				out[id] = e.Timestamp
			}
		}
	}
	return out
}
