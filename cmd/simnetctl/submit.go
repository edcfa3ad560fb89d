package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/simlab/simnet/internal/engine"
	"github.com/simlab/simnet/internal/model"
	"github.com/simlab/simnet/internal/proxy"
)

// newSubmitCmd builds a demo diffusion bundle and submits it. With --wait it
// behaves like a local engine run: block until the remote run settles.
func newSubmitCmd() *cobra.Command {
	var (
		engineType string
		side       int
		steps      int
		alpha      float64
		wait       bool
		poll       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a demo lattice bundle and start a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if side < 2 {
				return fmt.Errorf("lattice side must be at least 2, got %d", side)
			}

			p := proxy.New(newCtlClient(), engineType, proxy.WithPollInterval(poll))
			if err := p.SetCM(model.ParamMap{"steps": steps}); err != nil {
				return err
			}
			if err := p.SetSP(model.ParamMap{"alpha": alpha}); err != nil {
				return err
			}
			if err := p.AddDataset(demoLattice(side)); err != nil {
				return err
			}

			ctx := cmd.Context()
			if !wait {
				if err := p.Submit(ctx); err != nil {
					return err
				}
				fmt.Printf("%s %s\n", p.ID(), p.LastState())
				return nil
			}

			if err := p.Run(ctx); err != nil {
				if p.ID() != "" {
					fmt.Printf("%s %s\n", p.ID(), p.LastState())
				}
				return err
			}
			fmt.Printf("%s %s\n", p.ID(), p.LastState())
			return nil
		},
	}

	cmd.Flags().StringVar(&engineType, "engine", engine.TypeDiffusion, "engine type to run")
	cmd.Flags().IntVar(&side, "side", 8, "side length of the demo cubic lattice")
	cmd.Flags().IntVar(&steps, "steps", 10, "number of relaxation sweeps")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.25, "relaxation factor in (0, 1]")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the run reaches a terminal state")
	cmd.Flags().DurationVar(&poll, "poll", proxy.DefaultPollInterval, "state poll interval while waiting")

	return cmd
}

// demoLattice builds a cubic lattice with a random density field, enough to
// give a relaxation engine something to smooth.
func demoLattice(side int) *model.Lattice {
	lat := model.NewCubicLattice("demo", 1.0, [3]int{side, side, side})

	n := side * side * side
	values := make([]float64, n)
	for i := range values {
		values[i] = rand.Float64()
	}
	field, err := model.NewFloat64s([]int{side, side, side}, values)
	if err != nil {
		// Shapes are derived from side; this cannot fail.
		panic(err)
	}
	lat.Node["density"] = field
	return lat
}
