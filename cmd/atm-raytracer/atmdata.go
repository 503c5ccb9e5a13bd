package main

import (
	"os"

	"github.com/spf13/cobra"
)

// atmDataCmd prints the resolved atmosphere as a table.
var atmDataCmd = &cobra.Command{
	Use:   "atm-data",
	Short: "Print the atmosphere profile",
	Long: `Print a tab-separated table of temperature, pressure and refractive
index against altitude for the configured atmosphere (or the US Standard
1976 default).`,
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

		minAlt, _ := cmd.Flags().GetFloat64("min-alt")
		maxAlt, _ := cmd.Flags().GetFloat64("max-alt")
		step, _ := cmd.Flags().GetFloat64("alt-step")
		return params.Atmosphere.Dump(os.Stdout, minAlt, maxAlt, step)
	},
}

func init() {
	rootCmd.AddCommand(atmDataCmd)
	atmDataCmd.Flags().StringP("config", "c", "", "Path to a config file")
	atmDataCmd.Flags().Float64("min-alt", 0, "Lowest altitude to print, meters")
	atmDataCmd.Flags().Float64("max-alt", 11000, "Highest altitude to print, meters")
	atmDataCmd.Flags().Float64("alt-step", 100, "Altitude step, meters")
}
