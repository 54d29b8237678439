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

package biomosaic

import (
	"context"
	"fmt"
	"math"

	"github.com/spatialmodel/biomosaic/errprop"
	"github.com/spatialmodel/biomosaic/landcover"
	"github.com/spatialmodel/biomosaic/raster"
)

// pair returns l with exactly the estimate and uncertainty bands, in
// that order.
func pair(what string, l *raster.Layer) (*raster.Layer, error) {
	if l == nil {
		return nil, fmt.Errorf("biomosaic: missing %s layer", what)
	}
	o, err := l.Select(raster.Estimate, raster.Uncertainty)
	if err != nil {
		return nil, fmt.Errorf("biomosaic: %s layer: %v", what, err)
	}
	return o, nil
}

// WoodyFusion combines the primary (global) and regional woody biomass
// maps. The regional map is used wherever it has a value and the land
// cover class is one for which the regional map is authoritative; the
// primary map is used everywhere else. The two are never averaged.
func WoodyFusion(ctx context.Context, primary, regional *raster.Layer, lc *raster.Classes) (*raster.Layer, error) {
	primary, err := pair("primary woody", primary)
	if err != nil {
		return nil, err
	}
	regional, err = pair("regional woody", regional)
	if err != nil {
		return nil, err
	}
	useRegional, err := landcover.Mask(ctx, lc, func(c landcover.Class) bool {
		return c.WoodySource() == landcover.RegionalSource
	})
	if err != nil {
		return nil, err
	}
	t := RuleTable{Zone: GlobalZone}
	t.Add("regional woody", regional, useRegional)
	t.Add("primary woody", primary, nil)
	return t.Resolve(ctx)
}

// HerbComposite combines the cropland and grassland maps into a single
// herbaceous biomass map. Negative grassland values are set to zero.
// Cropland pixels without an estimate, or with an estimate of zero,
// take the grassland value. Each pixel then takes the cropland or
// grassland value depending on the herbaceous type of its land cover.
func HerbComposite(ctx context.Context, crop, grass *raster.Layer, lc *raster.Classes) (*raster.Layer, error) {
	crop, err := pair("crop", crop)
	if err != nil {
		return nil, err
	}
	grass, err = pair("grass", grass)
	if err != nil {
		return nil, err
	}
	if err := crop.Grid.CheckAligned("herbaceous composite", grass.Grid, lc.Grid); err != nil {
		return nil, fmt.Errorf("biomosaic: %v", err)
	}
	grass, err = grass.Apply(ctx, func(i int, in, out []float64) {
		for b, v := range in {
			out[b] = math.Max(v, 0) // NaN stays NaN
		}
	})
	if err != nil {
		return nil, err
	}
	if err := raster.CheckUnits(crop.Units, grass.Units); err != nil {
		return nil, fmt.Errorf("biomosaic: herbaceous composite: %v", err)
	}
	crop, err = raster.MapPairs(ctx, crop.Grid, crop.Units, func(i int) errprop.Value {
		c := crop.Pair(i)
		if c.IsMasked() || c.Mean == 0 {
			return grass.Pair(i)
		}
		return c
	})
	if err != nil {
		return nil, err
	}
	isCrop, err := landcover.Mask(ctx, lc, func(c landcover.Class) bool { return c.HerbType() == landcover.Crop })
	if err != nil {
		return nil, err
	}
	isGrass := isCrop.Not()
	t := RuleTable{Zone: HerbZone}
	t.Add("crop", crop, isCrop)
	t.Add("grass", grass, isGrass)
	return t.Resolve(ctx)
}

// TreeHerb adds herbaceous biomass to woody biomass in proportion to
// the fraction of each pixel that is not covered by trees.
// treeCover is the percent tree cover and its uncertainty in percent.
//
// Tree cover at or above saturation is treated as complete cover, and
// its uncertainty is rescaled by the same factor as the estimate. The
// tree fraction is zero where there is no woody biomass, and is rounded
// to the given number of digits. The herbaceous fraction is one minus
// the tree fraction, with the same uncertainty.
func TreeHerb(ctx context.Context, woody, herb, treeCover *raster.Layer, saturation float64, digits int) (*raster.Layer, error) {
	if err := woody.Grid.CheckAligned("adding herbaceous biomass", herb.Grid, treeCover.Grid); err != nil {
		return nil, fmt.Errorf("biomosaic: %v", err)
	}
	if err := raster.CheckUnits(woody.Units, herb.Units); err != nil {
		return nil, fmt.Errorf("biomosaic: adding herbaceous biomass: %v", err)
	}
	s := math.Pow(10, float64(digits))
	return raster.MapPairs(ctx, woody.Grid, woody.Units, func(i int) errprop.Value {
		w, h, pc := woody.Pair(i), herb.Pair(i), treeCover.Pair(i)
		if w.IsMasked() || h.IsMasked() || pc.IsMasked() {
			return errprop.Masked
		}
		t := treeFraction(pc, saturation)
		if w.Mean == 0 {
			t = errprop.Value{}
		}
		t.Mean, t.SD = round(t.Mean, s), round(t.SD, s)
		hf := errprop.Value{Mean: 1 - t.Mean, SD: t.SD}
		return errprop.Add(w, errprop.Mul(h, hf))
	})
}

// treeFraction converts percent tree cover to a fraction of the
// saturation value.
func treeFraction(pc errprop.Value, saturation float64) errprop.Value {
	f := math.Min(math.Max(pc.Mean, 0), saturation) / saturation
	// The uncertainty is scaled by the ratio of the rescaled fraction
	// to the unscaled fraction, which is 100/saturation below
	// saturation and 100/pc above it.
	scale := 100 / saturation
	if pc.Mean > saturation {
		scale = 100 / pc.Mean
	}
	return errprop.Value{Mean: f, SD: pc.SD / 100 * scale}
}
