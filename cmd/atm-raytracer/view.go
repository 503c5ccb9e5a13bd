package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fizyk20/atm-raytracer/internal/metadata"
)

// viewCmd inspects the metadata stream written next to a render.
var viewCmd = &cobra.Command{
	Use:   "view <metadata-file>",
	Short: "Inspect per-pixel render metadata",
	Long: `Inspect the metadata file written by gen --output-meta.

Without --x/--y the header and hit statistics are printed; with both, the
record of a single pixel.

Examples:
  atm-raytracer view output.meta
  atm-raytracer view output.meta --x 320 --y 240`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := metadata.ReadFile(args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
			x, _ := cmd.Flags().GetInt("x")
			y, _ := cmd.Flags().GetInt("y")
			if x < 0 || x >= int(file.Width) || y < 0 || y >= int(file.Height) {
				return fmt.Errorf("pixel (%d, %d) outside %dx%d image", x, y, file.Width, file.Height)
			}
			r := file.At(x, y)
			if r.IsMiss() {
				fmt.Printf("pixel (%d, %d): no hit (sky)\n", x, y)
				return nil
			}
			fmt.Printf("pixel (%d, %d):\n", x, y)
			fmt.Printf("  position:    %.6f, %.6f\n", r.Lat, r.Lon)
			fmt.Printf("  elevation:   %.2f m\n", r.Elevation)
			fmt.Printf("  distance:    %.1f m\n", r.Distance)
			fmt.Printf("  path length: %.1f m\n", r.PathLength)
			return nil
		}

		hits := 0
		for _, r := range file.Records {
			if !r.IsMiss() {
				hits++
			}
		}
		fmt.Printf("metadata v%d, %dx%d pixels, %d hits, %d sky\n",
			metadata.Version, file.Width, file.Height, hits, len(file.Records)-hits)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().Int("x", 0, "Pixel column to inspect")
	viewCmd.Flags().Int("y", 0, "Pixel row to inspect")
}
