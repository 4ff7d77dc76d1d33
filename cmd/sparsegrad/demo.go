package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/sparsegrad/internal/autodiff"
	"github.com/born-ml/sparsegrad/internal/envconfig"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Differentiate the example loss with respect to its inputs",
		Args:  cobra.NoArgs,
		RunE:  DemoHandler,
	}
	cmd.Flags().Bool("squeeze", envconfig.Squeeze(), "Strip unit-length axes from gradients")
	cmd.Flags().Bool("stats", false, "Print graph and sparsity statistics")
	return cmd
}

// DemoHandler builds the example loss, backpropagates it to every input and
// prints the gradients.
func DemoHandler(cmd *cobra.Command, _ []string) error {
	squeeze, err := cmd.Flags().GetBool("squeeze")
	if err != nil {
		return err
	}
	stats, err := cmd.Flags().GetBool("stats")
	if err != nil {
		return err
	}

	inputs, err := demoInputs()
	if err != nil {
		return err
	}

	start := time.Now()

	g := autodiff.NewGraph[float64](autodiff.WithLogger(slog.Default()))
	leaves := make([]autodiff.Tensor[float64], len(inputs))
	for i, in := range inputs {
		leaves[i] = g.Leaf(in)
	}

	loss := demoLoss(g, leaves)
	if err := loss.Backprop(squeeze, leaves...); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Done in %s\n", time.Since(start).Round(time.Microsecond))
	fmt.Fprintf(w, "loss: %s\n", tensor.FormatValue(loss.Value().Data()[0]))
	fmt.Fprintln(w, "Derivative of loss wrt.:")
	for i, leaf := range leaves {
		fmt.Fprintf(w, "%s:\n", demoNames[i])
		printGrad(w, leaf.Grad())
	}

	if stats {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"INPUT", "SHAPE", "GRAD SHAPE", "NON-ZERO"})
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		for i, leaf := range leaves {
			grad := leaf.Grad()
			table.Append([]string{
				demoNames[i],
				leaf.Shape().String(),
				grad.Shape().String(),
				strconv.Itoa(grad.NumNonZero()),
			})
		}
		table.Render()
		fmt.Fprintf(w, "live nodes: %d\n", g.Len())
	}
	return nil
}

// printGrad renders matrices as a table and anything else in bracket form.
func printGrad[T tensor.Numeric](w io.Writer, d *tensor.Dense[T]) {
	if d.Dim() != 2 {
		fmt.Fprintln(w, tensor.Format(d))
		return
	}

	rows, cols := d.Shape()[0], d.Shape()[1]
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetHeaderLine(false)
	for i := 0; i < rows; i++ {
		row := make([]string, cols)
		for j := range row {
			row[j] = tensor.FormatValue(d.At(i, j))
		}
		table.Append(row)
	}
	table.Render()
}
