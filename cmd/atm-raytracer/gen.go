package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fizyk20/atm-raytracer/internal/config"
	"github.com/fizyk20/atm-raytracer/internal/render"
	"github.com/fizyk20/atm-raytracer/internal/terrain"
	"github.com/fizyk20/atm-raytracer/internal/terrain/dted"
)

// genCmd renders a panorama.
var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Render a panorama",
	Long: `Render a panorama from a YAML config file and/or command-line flags.
Flags override config fields.

Examples:
  atm-raytracer gen --config alps.yaml
  atm-raytracer gen -t ./terrain -l 49.979 -g 21.622 -a 443 -d 231 -f 8 --output view.png
  atm-raytracer gen --flat --straight --maxdist 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyGenFlags(cmd, cfg)

		t, err := openTerrain(cfg)
		if err != nil {
			return err
		}

		params, err := cfg.Resolve(t)
		if err != nil {
			return err
		}
		log.Printf("observer at (%.6f, %.6f), %.1f m ASL, %s",
			params.Observer.Lat, params.Observer.Lon, params.Observer.Elev, params.Shape)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		frame, err := render.New(params, t).Render(ctx)
		if err != nil {
			return err
		}
		log.Printf("writing image to %s", params.OutputFile)
		return render.Output(params, frame)
	},
}

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().StringP("config", "c", "", "Path to a config file with alternative defaults")
	genCmd.Flags().StringP("terrain", "t", "", "Path to the folder with terrain files (./terrain assumed if none)")
	genCmd.Flags().Float64P("lat", "l", 0, "Viewpoint latitude in degrees")
	genCmd.Flags().Float64P("lon", "g", 0, "Viewpoint longitude in degrees")
	genCmd.Flags().Float64P("alt", "a", 0, "Viewpoint altitude in meters ASL")
	genCmd.Flags().Float64P("elev", "e", 0, "Viewpoint elevation in meters above the terrain")
	genCmd.MarkFlagsMutuallyExclusive("alt", "elev")
	genCmd.Flags().Float64P("dir", "d", 0, "Viewing azimuth in degrees (0 = north, 90 = east)")
	genCmd.Flags().Float64P("fov", "f", 0, "Horizontal field of view in degrees (default: 30)")
	genCmd.Flags().Float64P("tilt", "i", 0, "Observer tilt relative to the horizon in degrees")
	genCmd.Flags().Float64P("maxdist", "m", 0, "Cutoff distance in km (default: 150)")
	genCmd.Flags().Float64("step", 0, "Light ray propagation step in meters (default: 50)")
	genCmd.Flags().Float64P("radius", "R", 0, "Earth radius in km (default: 6371)")
	genCmd.Flags().Bool("flat", false, "Simulate a flat Earth (the flat_distorted model)")
	genCmd.MarkFlagsMutuallyExclusive("flat", "radius")
	genCmd.Flags().Bool("straight", false, "Ignore refraction (straight-line light rays)")
	genCmd.Flags().String("output", "", "File name for the output image (default: output.png)")
	genCmd.Flags().String("output-meta", "", "File name for the output metadata")
	genCmd.Flags().IntP("width", "w", 0, "Output image width in pixels (default: 640)")
	genCmd.Flags().Int("height", 0, "Output image height in pixels (default: 480)")
	genCmd.Flags().String("generator", "", "Frame generator: fast, rectilinear or interpolating_rectilinear")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyGenFlags merges explicitly set flags over the config, the way the
// original front-end resolves its options.
func applyGenFlags(cmd *cobra.Command, cfg *config.Config) {
	flagString(cmd, "terrain", &cfg.Scene.TerrainFolder)
	flagString(cmd, "output", &cfg.Output.File)
	flagString(cmd, "output-meta", &cfg.Output.FileMetadata)
	flagString(cmd, "generator", &cfg.Output.Generator)
	flagInt(cmd, "width", &cfg.Output.Width)
	flagInt(cmd, "height", &cfg.Output.Height)
	flagFloat(cmd, "lat", &cfg.View.Position.Latitude)
	flagFloat(cmd, "lon", &cfg.View.Position.Longitude)
	flagFloat(cmd, "dir", &cfg.View.Frame.Direction)
	flagFloat(cmd, "tilt", &cfg.View.Frame.Tilt)
	flagFloat(cmd, "step", &cfg.SimulationStep)

	if cmd.Flags().Changed("alt") {
		v, _ := cmd.Flags().GetFloat64("alt")
		cfg.View.Position.Altitude = config.Altitude{Absolute: &v}
	} else if cmd.Flags().Changed("elev") {
		v, _ := cmd.Flags().GetFloat64("elev")
		cfg.View.Position.Altitude = config.Altitude{Relative: &v}
	}
	if cmd.Flags().Changed("fov") {
		v, _ := cmd.Flags().GetFloat64("fov")
		cfg.View.Frame.Fov = &v
	}
	if cmd.Flags().Changed("maxdist") {
		v, _ := cmd.Flags().GetFloat64("maxdist")
		v *= 1e3
		cfg.View.Frame.MaxDistance = &v
	}
	if cmd.Flags().Changed("radius") {
		v, _ := cmd.Flags().GetFloat64("radius")
		v *= 1e3
		cfg.EarthShape = config.EarthShapeDef{Shape: "spherical", Radius: &v}
	}
	if flat, _ := cmd.Flags().GetBool("flat"); flat {
		cfg.EarthShape = config.EarthShapeDef{Shape: "flat_distorted"}
	}
	if straight, _ := cmd.Flags().GetBool("straight"); straight {
		cfg.StraightRays = true
	}
}

func flagString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func flagInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func flagFloat(cmd *cobra.Command, name string, dst *float64) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetFloat64(name)
	}
}

// openTerrain indexes the DTED folder; a missing folder renders as open
// sea.
func openTerrain(cfg *config.Config) (*terrain.Terrain, error) {
	folder, err := dted.OpenFolder(cfg.Scene.TerrainFolder)
	if err != nil {
		log.Printf("terrain folder %s not usable (%v); rendering sea level", cfg.Scene.TerrainFolder, err)
		return terrain.New(terrain.LoaderFunc(func(lat, lon int) (*terrain.Tile, error) {
			return nil, nil
		}), cfg.Scene.CacheTiles), nil
	}
	log.Printf("detected %d terrain files in %s", folder.Count(), cfg.Scene.TerrainFolder)
	return terrain.New(folder, cfg.Scene.CacheTiles), nil
}
