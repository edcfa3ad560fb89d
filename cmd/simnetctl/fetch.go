package main

import (
	"github.com/spf13/cobra"

	"github.com/simlab/simnet/internal/codec"
	"github.com/simlab/simnet/internal/model"
)

// newFetchCmd fetches a dataset from a wrapper and prints a summary of it.
func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <wrapper-id> <dataset-name>",
		Short: "Fetch a dataset from a wrapper",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ctlContext()
			defer cancel()

			blob, err := newCtlClient().Dataset(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			ds, err := codec.DecodeDataset(blob)
			if err != nil {
				return err
			}
			return printJSON(summarize(ds))
		},
	}
}

// summarize reduces a dataset to a printable description instead of dumping
// raw arrays.
func summarize(ds model.Dataset) map[string]any {
	out := map[string]any{
		"name": ds.DatasetName(),
		"kind": ds.Kind(),
	}
	switch d := ds.(type) {
	case *model.Lattice:
		out["spacing"] = d.Spacing
		out["size"] = d.Size
		out["fields"] = fieldSummaries(d.Node)
	case *model.Mesh:
		out["points"] = arraySummary(d.Points)
		out["cells"] = arraySummary(d.Cells)
		out["fields"] = fieldSummaries(d.PointData)
	case *model.Particles:
		out["positions"] = arraySummary(d.Positions)
		out["velocities"] = arraySummary(d.Velocities)
		out["fields"] = fieldSummaries(d.Data)
	}
	return out
}

func fieldSummaries(fields map[string]*model.NDArray) map[string]any {
	out := make(map[string]any, len(fields))
	for name, arr := range fields {
		out[name] = arraySummary(arr)
	}
	return out
}

func arraySummary(arr *model.NDArray) map[string]any {
	if arr == nil {
		return nil
	}
	summary := map[string]any{
		"dtype": arr.DType,
		"shape": arr.Shape,
	}
	if arr.DType == model.DTypeFloat64 && arr.Len() > 0 {
		min, max, sum := arr.F64[0], arr.F64[0], 0.0
		for _, v := range arr.F64 {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		summary["min"] = min
		summary["max"] = max
		summary["mean"] = sum / float64(len(arr.F64))
	}
	return summary
}
