package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fizyk20/atm-raytracer/internal/propagate"
)

// rayPathsCmd outputs simulated ray trajectories for a range of elevation
// angles, one column per ray.
var rayPathsCmd = &cobra.Command{
	Use:   "ray-paths",
	Short: "Print simulated light ray paths",
	Long: `Print a table of ray altitudes against distance for a range of starting
elevation angles, using the configured Earth shape and atmosphere. Useful
for studying refraction effects such as looming and towering.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		t, err := openTerrain(cfg)
		if err != nil {
			return err
		}
		params, err := cfg.Resolve(t)
		if err != nil {
			return err
		}

		height, _ := cmd.Flags().GetFloat64("height")
		minAng, _ := cmd.Flags().GetFloat64("min-ang")
		maxAng, _ := cmd.Flags().GetFloat64("max-ang")
		angStep, _ := cmd.Flags().GetFloat64("angle-step")
		rayStep, _ := cmd.Flags().GetFloat64("ray-step")
		cutoff, _ := cmd.Flags().GetFloat64("cutoff-dist")
		outStep, _ := cmd.Flags().GetFloat64("output-step")
		if angStep <= 0 || rayStep <= 0 || outStep <= 0 {
			return fmt.Errorf("angle-step, ray-step and output-step must be positive")
		}

		env := propagate.NewEnv(params.Shape, params.Atmosphere, params.StraightRays)

		var xs []float64
		var rays [][]float64
		for ang := minAng; ang <= maxAng+1e-9; ang += angStep {
			first := len(rays) == 0
			ray := []float64{height}
			if first {
				xs = append(xs, 0)
			}
			env.Trace(propagate.InitialState(height, ang*math.Pi/180), rayStep, cutoff,
				propagate.VisitorFunc(func(seg propagate.Segment) propagate.Decision {
					mid := seg.To.S
					if math.Floor((mid-rayStep/2)/outStep) != math.Floor((mid+rayStep/2)/outStep) {
						ray = append(ray, seg.To.H)
						if first {
							xs = append(xs, mid)
						}
					}
					return propagate.Continue
				}))
			rays = append(rays, ray)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
		for i, x := range xs {
			fmt.Fprintf(w, "%.1f", x)
			for _, ray := range rays {
				if i < len(ray) {
					fmt.Fprintf(w, "\t%.3f", ray[i])
				} else {
					fmt.Fprint(w, "\t")
				}
			}
			fmt.Fprintln(w)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rayPathsCmd)
	rayPathsCmd.Flags().StringP("config", "c", "", "Path to a config file")
	rayPathsCmd.Flags().Float64("height", 2, "Observer height in meters")
	rayPathsCmd.Flags().Float64P("min-ang", "a", -1, "Lowest elevation angle, degrees")
	rayPathsCmd.Flags().Float64P("max-ang", "b", 1, "Highest elevation angle, degrees")
	rayPathsCmd.Flags().Float64P("angle-step", "s", 0.1, "Angle difference between rays, degrees")
	rayPathsCmd.Flags().Float64P("ray-step", "r", 50, "Propagation step along each ray, meters")
	rayPathsCmd.Flags().Float64("cutoff-dist", 10000, "Simulated ray length, meters")
	rayPathsCmd.Flags().Float64P("output-step", "o", 50, "Distance between output rows, meters")
}
