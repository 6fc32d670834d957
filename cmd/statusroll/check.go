package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/statusroll/internal/config"
	"github.com/hazz-dev/statusroll/internal/engine"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a one-off check of all configured probes without recording it",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()
	return runChecks(cmd.OutOrStdout(), a.cfg)
}

func runChecks(out io.Writer, cfg *config.Config) error {
	// Check never touches the store.
	eng := engine.New(cfg, nil, engine.Options{})
	rep, err := eng.Check(context.Background())
	if err != nil {
		return err
	}

	printResults(out, rep)
	if !rep.Healthy() {
		return fmt.Errorf("%d of %d probes are down", rep.Down, rep.Total)
	}
	return nil
}
