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

// Package biomosaic combines independently derived biomass maps for
// different land-cover types into a single global map of biomass
// density and its uncertainty.
//
// Every input is a raster with an estimate and a one-standard-deviation
// uncertainty band. Inputs are harmonized to a common grid, gaps are
// filled, and the maps are composited zone by zone using priority rules
// and, across the southern edge of the boreal forest, latitude-weighted
// blending. Uncertainty is propagated through every step.
package biomosaic

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/biomosaic/raster"
)

// Version gives the version number.
const Version = "1.0.0"

// DefaultDigits is the number of decimal places kept by Stabilize.
const DefaultDigits = 2

// Stabilize returns a copy of l with every value rounded to the given
// number of decimal places. Masked values stay masked. Rounding removes
// spurious precision near zero before values are used as denominators
// in relative error calculations.
func Stabilize(l *raster.Layer, digits int) *raster.Layer {
	s := math.Pow(10, float64(digits))
	o := l.Copy()
	for b := 0; b < o.NumBands(); b++ {
		e := o.BandAt(b).Elements
		for i, v := range e {
			e[i] = round(v, s)
		}
	}
	return o
}

// round rounds v to the nearest multiple of 1/s, with halves rounded up.
func round(v, s float64) float64 {
	return math.Floor(v*s+0.5) / s
}

// RegionalWoodyRelativeError is the relative uncertainty of the regional
// woody biomass map, which is distributed without an uncertainty band:
// its reported RMSE of 17 Mg/ha divided by its mean of 58.2 Mg/ha.
const RegionalWoodyRelativeError = 17 / 58.2

// RegionalWoodyUncertainty returns agb with an uncertainty band
// calculated from RegionalWoodyRelativeError. If agb already has an
// uncertainty band it is returned unchanged.
func RegionalWoodyUncertainty(agb *raster.Layer) (*raster.Layer, error) {
	if agb.HasBand(raster.Uncertainty) {
		return agb, nil
	}
	est := agb.Band(raster.Estimate)
	if est == nil {
		return nil, fmt.Errorf("biomosaic: regional woody layer has no %q band", raster.Estimate)
	}
	e := append([]float64{}, est.Elements...)
	u := make([]float64, len(e))
	for i, v := range e {
		u[i] = v * RegionalWoodyRelativeError
	}
	return raster.FromArrays(agb.Grid, agb.Units, []string{raster.Estimate, raster.Uncertainty}, e, u)
}

// Params hold the parameters of the mosaic.
type Params struct {
	// Digits is the number of decimal places kept when stabilizing
	// layers.
	Digits int `toml:"digits"`

	// TreeCoverThreshold is the percent tree cover above which tundra
	// and boreal pixels can take woody biomass.
	TreeCoverThreshold float64 `toml:"tree_cover_threshold"`

	// TreeCoverSaturation is the percent tree cover at which the tree
	// cover product saturates. Cover at or above it is treated as
	// complete tree cover.
	TreeCoverSaturation float64 `toml:"tree_cover_saturation"`

	// BorealDivide is the latitude in degrees that separates the
	// northern and southern boreal forest, and BlendHalfWidth is the
	// half-width in degrees of the band around it where the two are blended.
	BorealDivide   float64 `toml:"boreal_divide"`
	BlendHalfWidth float64 `toml:"blend_half_width"`

	// FillDistance is the maximum distance in meters over which gaps in
	// the input layers are filled. Gaps are not filled if it is zero.
	FillDistance float64 `toml:"fill_distance"`

	// Interpolation is the method used when an input layer is coarser
	// than the target grid: "nearest" or "bilinear". It has no default;
	// harmonizing a coarser layer fails if it is empty.
	Interpolation string `toml:"interpolation"`
}

// DefaultParams returns the default mosaic parameters.
func DefaultParams() Params {
	return Params{
		Digits:              DefaultDigits,
		TreeCoverThreshold:  10,
		TreeCoverSaturation: 80,
		BorealDivide:        60,
		BlendHalfWidth:      1,
	}
}

// Validate returns an error if any of the parameters are invalid.
func (p Params) Validate() error {
	if p.Digits < 0 || p.Digits > 15 {
		return fmt.Errorf("biomosaic: digits is %d but should be between 0 and 15", p.Digits)
	}
	if p.TreeCoverThreshold < 0 || p.TreeCoverThreshold > 100 {
		return fmt.Errorf("biomosaic: tree_cover_threshold is %g but should be a percentage", p.TreeCoverThreshold)
	}
	if !(p.TreeCoverSaturation > 0) || p.TreeCoverSaturation > 100 {
		return fmt.Errorf("biomosaic: tree_cover_saturation is %g but should be in (0, 100]", p.TreeCoverSaturation)
	}
	if p.BorealDivide < -90 || p.BorealDivide > 90 {
		return fmt.Errorf("biomosaic: boreal_divide is %g but should be a latitude", p.BorealDivide)
	}
	if !(p.BlendHalfWidth > 0) {
		return fmt.Errorf("biomosaic: blend_half_width is %g but should be >0", p.BlendHalfWidth)
	}
	if p.FillDistance < 0 || math.IsInf(p.FillDistance, 0) {
		return fmt.Errorf("biomosaic: fill_distance is %g but should be a finite value >= 0", p.FillDistance)
	}
	if _, err := p.InterpolationMode(); err != nil {
		return err
	}
	return nil
}

// InterpolationMode returns the parsed Interpolation, which is
// raster.InterpolationUnset if it is empty.
func (p Params) InterpolationMode() (raster.Interpolation, error) {
	if strings.TrimSpace(p.Interpolation) == "" {
		return raster.InterpolationUnset, nil
	}
	m, err := raster.ParseInterpolation(p.Interpolation)
	if err != nil {
		return m, fmt.Errorf("biomosaic: %v", err)
	}
	return m, nil
}

// ReadParams reads parameters in TOML format from r. Parameters missing
// from r keep their default values.
func ReadParams(r io.Reader) (Params, error) {
	p := DefaultParams()
	if _, err := toml.DecodeReader(r, &p); err != nil {
		return p, fmt.Errorf("biomosaic: reading parameters: %v", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// ReadParamsFile reads parameters from a TOML file.
func ReadParamsFile(path string) (Params, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return Params{}, fmt.Errorf("biomosaic: opening parameter file: %v", err)
	}
	defer f.Close()
	return ReadParams(f)
}
