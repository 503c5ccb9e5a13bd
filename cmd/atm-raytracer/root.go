package main

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/fizyk20/atm-raytracer/internal/atmo"
	"github.com/fizyk20/atm-raytracer/internal/config"
	"github.com/fizyk20/atm-raytracer/internal/render"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "atm-raytracer",
	Short: "Render photorealistic panoramas from digital elevation models",
	Long: `atm-raytracer renders panoramas from digital elevation models, taking
into account the curvature of the Earth and the refraction of light in the
atmosphere.

Commands:
- gen: render a panorama from a config file and/or command-line flags
- view: inspect the per-pixel metadata written next to a render
- atm-data: print the temperature/pressure/refraction profile
- ray-paths: print simulated light ray paths`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits with 0 on success, 1 on invalid
// configuration, 2 on I/O errors and 3 on an aborted render.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, render.ErrCancelled):
		return 3
	case config.IsError(err) || atmo.IsProfileError(err):
		return 1
	default:
		return 2
	}
}
