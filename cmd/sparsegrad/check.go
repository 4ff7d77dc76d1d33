package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/sparsegrad/internal/gradcheck"
	"github.com/born-ml/sparsegrad/internal/parallel"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare engine gradients of the example loss with finite differences",
		Args:  cobra.NoArgs,
		RunE:  CheckHandler,
	}
	cmd.Flags().Float64("step", 1e-5, "Finite-difference step")
	cmd.Flags().Float64("atol", 1e-4, "Absolute tolerance")
	cmd.Flags().Float64("rtol", 1e-4, "Relative tolerance")
	cmd.Flags().Int("workers", parallel.DefaultConfig().NumWorkers, "Inputs checked concurrently")
	return cmd
}

// CheckHandler runs the finite-difference check on the demo loss.
func CheckHandler(cmd *cobra.Command, _ []string) error {
	step, err := cmd.Flags().GetFloat64("step")
	if err != nil {
		return err
	}
	atol, err := cmd.Flags().GetFloat64("atol")
	if err != nil {
		return err
	}
	rtol, err := cmd.Flags().GetFloat64("rtol")
	if err != nil {
		return err
	}

	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}

	inputs, err := demoInputs()
	if err != nil {
		return err
	}

	results, err := gradcheck.Check(demoLoss, inputs,
		gradcheck.WithStep(step),
		gradcheck.WithTolerance(atol, rtol),
		gradcheck.WithLogger(slog.Default()),
		gradcheck.WithParallel(parallel.Config{Enabled: workers > 1, NumWorkers: workers}),
	)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"INPUT", "ELEMENTS", "MAX |DIFF|", "STATUS"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	failed := 0
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "MISMATCH"
			failed++
		}
		table.Append([]string{
			demoNames[r.Input],
			strconv.Itoa(len(r.Analytic)),
			fmt.Sprintf("%.3g", r.MaxAbsDiff),
			status,
		})
	}
	table.Render()

	if failed > 0 {
		return errors.Errorf("%d of %d inputs failed the gradient check", failed, len(results))
	}
	return nil
}
