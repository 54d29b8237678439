/*
Copyright © 2021 the BioMosaic authors.
This file is part of BioMosaic.

BioMosaic is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

BioMosaic is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with BioMosaic.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package biomosaicutil holds the command-line interface of BioMosaic.
package biomosaicutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/biomosaic"
	"github.com/spatialmodel/biomosaic/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	Cfg = viper.New()
	Cfg.SetEnvPrefix("BIOMOSAIC")
	Cfg.AutomaticEnv()

	p := biomosaic.DefaultParams()
	outputSets := []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags(), voidfillCmd.Flags(), carbonCmd.Flags()}
	exportSets := []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags()}

	// Options are the configuration options available to BioMosaic.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile specifies the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the logfile
              will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to write: one of
              debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "TempDir",
			usage: `
              TempDir is the directory where files are staged when they are
              downloaded from or uploaded to blob storage. If it is blank,
              the system temporary directory is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "CacheSize",
			usage: `
              CacheSize is the number of loaded input files to keep in memory.`,
			defaultVal: store.DefaultCacheSize,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the output NetCDF file should be
              written. It can include environment variables and can be a
              blob storage URL such as gs://bucket/mosaic.nc.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   outputSets,
		},
		{
			name: "Carbon",
			usage: `
              Carbon specifies whether to create a biomass carbon mosaic. The
              woody inputs are converted to carbon before they are moved to
              the output grid, and the grass, crop and tundra inputs must
              already be carbon densities. Requires the koppen input.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Inputs",
			usage: `
              Inputs gives the locations of the input files as a map of input
              names to file paths or blob URLs. Valid names are
              primary_woody, regional_woody, grass, crop, tundra, tree_cover,
              woody_allocation, tundra_allocation, land_cover, koppen, boreal,
              and tundra_extent. Boreal and tundra_extent can be shapefiles.
              If specified on the command line it should be in JSON format.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), carbonCmd.Flags()},
		},
		{
			name: "Input",
			usage: `
              Input is the path or blob URL of the layer to process.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags(), voidfillCmd.Flags(), carbonCmd.Flags()},
		},
		{
			name: "Bands",
			usage: `
              Bands is a list of the bands of Input to process. If it is
              empty, all bands are processed.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{aggregateCmd.Flags(), voidfillCmd.Flags()},
		},
		{
			name: "ParamsFile",
			usage: `
              ParamsFile is the path to a TOML file holding the mosaic
              parameters. If it is specified, the Params options are ignored
              and parameters missing from the file take their default values.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags(), voidfillCmd.Flags()},
		},
		{
			name: "Params.Digits",
			usage: `
              Params.Digits is the number of decimal places kept when input
              layers are stabilized.`,
			defaultVal: p.Digits,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.TreeCoverThreshold",
			usage: `
              Params.TreeCoverThreshold is the percent tree cover above which
              tundra and boreal pixels can take woody biomass.`,
			defaultVal: p.TreeCoverThreshold,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.TreeCoverSaturation",
			usage: `
              Params.TreeCoverSaturation is the percent tree cover at which the
              tree cover product saturates.`,
			defaultVal: p.TreeCoverSaturation,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.BorealDivide",
			usage: `
              Params.BorealDivide is the latitude in degrees separating the
              northern and southern boreal forest.`,
			defaultVal: p.BorealDivide,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.BlendHalfWidth",
			usage: `
              Params.BlendHalfWidth is the half-width in degrees of the band
              around Params.BorealDivide where the boreal layers are blended.`,
			defaultVal: p.BlendHalfWidth,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.FillDistance",
			usage: `
              Params.FillDistance is the maximum distance in meters over which
              gaps in the input layers are filled. Zero disables gap filling
              in the run command.`,
			defaultVal: p.FillDistance,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), voidfillCmd.Flags()},
		},
		{
			name: "Params.Interpolation",
			usage: `
              Params.Interpolation is the method used when an input layer is
              coarser than the output grid: nearest or bilinear. It must be
              set if any input is coarser than the output grid.`,
			defaultVal: p.Interpolation,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags()},
		},
		{
			name: "Export.Scale",
			usage: `
              Export.Scale is the nominal size in meters at the equator of the
              pixels of the output grid.`,
			defaultVal: store.DefaultScale,
			flagsets:   exportSets,
		},
		{
			name: "Export.West",
			usage: `
              Export.West is the western edge of the output grid in degrees.`,
			defaultVal: store.West,
			flagsets:   exportSets,
		},
		{
			name: "Export.East",
			usage: `
              Export.East is the eastern edge of the output grid in degrees.`,
			defaultVal: store.East,
			flagsets:   exportSets,
		},
		{
			name: "Export.South",
			usage: `
              Export.South is the southern edge of the output grid in degrees.`,
			defaultVal: store.South,
			flagsets:   exportSets,
		},
		{
			name: "Export.North",
			usage: `
              Export.North is the northern edge of the output grid in degrees.`,
			defaultVal: store.North,
			flagsets:   exportSets,
		},
	}

	// Create the command-line flags.
	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(aggregateCmd)
	Root.AddCommand(voidfillCmd)
	Root.AddCommand(carbonCmd)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "biomosaic",
	Short: "A global biomass mosaic with uncertainty.",
	Long: `BioMosaic harmonizes global and regional above-ground biomass maps onto
a common grid and combines them into a single mosaic, propagating the
uncertainty of each input through every step.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'BIOMOSAIC_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

// setConfig reads in the configuration file if one was specified.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("biomosaic: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// versionCmd prints the version number.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of BioMosaic.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("BioMosaic v%s\n", biomosaic.Version)
	},
	DisableAutoGenTag: true,
}

// signalContext returns a context that is canceled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create the biomass mosaic.",
	Long: `run moves all of the Inputs onto the output grid, combines them into a
biomass mosaic, and writes it to OutputFile. If Carbon is true, the woody
inputs are converted to biomass carbon first and the mosaic is a carbon mosaic.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return Run(ctx, Cfg, cmd.OutOrStdout())
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Move a layer onto the output grid.",
	Long: `aggregate moves the Input layer onto the output grid, averaging with
area weights where the output grid is coarser and interpolating where it is
finer, and writes the result to OutputFile.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return Aggregate(ctx, Cfg, cmd.OutOrStdout())
	},
}

var voidfillCmd = &cobra.Command{
	Use:   "voidfill",
	Short: "Fill gaps in a layer.",
	Long: `voidfill fills masked pixels of the Input layer that are within
Params.FillDistance meters of valid pixels and writes the result to OutputFile
on the grid of the Input layer.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return VoidFill(ctx, Cfg, cmd.OutOrStdout())
	},
}

var carbonCmd = &cobra.Command{
	Use:   "carbon",
	Short: "Convert a biomass layer to biomass carbon.",
	Long: `carbon converts the Input biomass layer to biomass carbon using the
land_cover and koppen Inputs, which are moved onto the grid of the Input
layer, and writes the result to OutputFile.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return Carbon(ctx, Cfg, cmd.OutOrStdout())
	},
}
