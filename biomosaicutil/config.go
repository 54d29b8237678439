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

package biomosaicutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/biomosaic"
	"github.com/spatialmodel/biomosaic/cloud"
	"github.com/spatialmodel/biomosaic/store"
	"github.com/spf13/cast"
)

// Names of the Inputs.
const (
	PrimaryWoody     = "primary_woody"
	RegionalWoody    = "regional_woody"
	Grass            = "grass"
	Crop             = "crop"
	Tundra           = "tundra"
	TreeCover        = "tree_cover"
	WoodyAllocation  = "woody_allocation"
	TundraAllocation = "tundra_allocation"
	LandCover        = "land_cover"
	Koppen           = "koppen"
	Boreal           = "boreal"
	TundraExtent     = "tundra_extent"
)

// inputRequired lists the valid Inputs and whether the mosaic needs them.
var inputRequired = map[string]bool{
	PrimaryWoody:     true,
	RegionalWoody:    false,
	Grass:            true,
	Crop:             true,
	Tundra:           true,
	TreeCover:        true,
	WoodyAllocation:  false,
	TundraAllocation: false,
	LandCover:        true,
	Koppen:           false,
	Boreal:           true,
	TundraExtent:     true,
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapString(v), nil
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("biomosaic: parsing %s as JSON: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("biomosaic: invalid type for %s: %#v", varName, i)
	}
}

// checkInputs expands the environment variables in the input locations
// and makes sure that every input name is valid and that the required
// inputs, plus any in extra, are present.
func checkInputs(inputs map[string]string, extra ...string) (map[string]string, error) {
	o := make(map[string]string, len(inputs))
	for k, v := range inputs {
		k = strings.ToLower(strings.TrimSpace(k))
		if _, ok := inputRequired[k]; !ok {
			return nil, fmt.Errorf("biomosaic: invalid input name %q", k)
		}
		if v = os.ExpandEnv(strings.TrimSpace(v)); v != "" {
			o[k] = v
		}
	}
	var missing []string
	for k, req := range inputRequired {
		if _, ok := o[k]; req && !ok {
			missing = append(missing, k)
		}
	}
	for _, k := range extra {
		if _, ok := o[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("biomosaic: missing Inputs: %s", strings.Join(missing, ", "))
	}
	return o, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkInputFile makes sure that the input file is specified and expands
// any environment variables.
func checkInputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`biomosaic: you need to specify an input file (for example: Input="woody.nc")`)
	}
	return os.ExpandEnv(f), nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(ctx context.Context, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`biomosaic: you need to specify an output file configuration variable (for example: OutputFile="mosaic.nc")`)
	}
	f = os.ExpandEnv(f)
	if cloud.IsBlob(f) {
		bucketName, _, err := cloud.SplitURL(f)
		if err != nil {
			return f, err
		}
		if _, err := cloud.OpenBucket(ctx, bucketName); err != nil {
			return f, fmt.Errorf("biomosaic: error when checking OutputFile location: %v", err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("biomosaic: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// Params returns the mosaic parameters held in cfg.
func Params(cfg *viper.Viper) (biomosaic.Params, error) {
	if f := cfg.GetString("ParamsFile"); f != "" {
		return biomosaic.ReadParamsFile(f)
	}
	p := biomosaic.Params{
		Digits:              cfg.GetInt("Params.Digits"),
		TreeCoverThreshold:  cfg.GetFloat64("Params.TreeCoverThreshold"),
		TreeCoverSaturation: cfg.GetFloat64("Params.TreeCoverSaturation"),
		BorealDivide:        cfg.GetFloat64("Params.BorealDivide"),
		BlendHalfWidth:      cfg.GetFloat64("Params.BlendHalfWidth"),
		FillDistance:        cfg.GetFloat64("Params.FillDistance"),
		Interpolation:       cfg.GetString("Params.Interpolation"),
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// ExportGridSpec returns the specification of the output grid held in cfg.
func ExportGridSpec(cfg *viper.Viper) (store.GridSpec, error) {
	s, err := store.GlobalGridSpec(cfg.GetFloat64("Export.Scale"))
	if err != nil {
		return s, err
	}
	s.West = cfg.GetFloat64("Export.West")
	s.East = cfg.GetFloat64("Export.East")
	s.South = cfg.GetFloat64("Export.South")
	s.North = cfg.GetFloat64("Export.North")
	if s.West < -180 || s.East > 180 || s.South < -90 || s.North > 90 {
		return s, fmt.Errorf("biomosaic: export grid bounds W %g E %g S %g N %g are outside of the globe",
			s.West, s.East, s.South, s.North)
	}
	if _, err := s.Grid(); err != nil {
		return s, err
	}
	return s, nil
}
