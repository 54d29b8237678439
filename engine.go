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

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/biomosaic/errprop"
	"github.com/spatialmodel/biomosaic/landcover"
	"github.com/spatialmodel/biomosaic/raster"
)

// Inputs are the layers that are combined into the mosaic. All of them
// must be on the same grid.
type Inputs struct {
	// Woody, Grass, Crop and Tundra are biomass estimates and
	// uncertainties for each vegetation type.
	Woody, Grass, Crop, Tundra *raster.Layer

	// TreeCover is percent tree cover and its uncertainty in percent.
	TreeCover *raster.Layer

	LandCover *raster.Classes

	// Boreal is true in the boreal forest biome and TundraExtent is
	// true in the tundra biome.
	Boreal, TundraExtent *raster.Mask

	// WoodyAllocation and TundraAllocation are compared to decide
	// whether tundra pixels with trees take woody biomass. If nil,
	// Woody and Tundra are used.
	WoodyAllocation, TundraAllocation *raster.Layer
}

// check returns an error if any inputs are missing or not on the same
// grid.
func (in *Inputs) check() error {
	layers := map[string]*raster.Layer{
		"woody": in.Woody, "grass": in.Grass, "crop": in.Crop,
		"tundra": in.Tundra, "tree cover": in.TreeCover,
	}
	for name, l := range layers {
		if l == nil {
			return fmt.Errorf("biomosaic: missing %s input", name)
		}
	}
	if in.LandCover == nil {
		return fmt.Errorf("biomosaic: missing land cover input")
	}
	if in.Boreal == nil || in.TundraExtent == nil {
		return fmt.Errorf("biomosaic: missing biome extent input")
	}
	g := in.Woody.Grid
	grids := []*raster.Grid{in.Grass.Grid, in.Crop.Grid, in.Tundra.Grid, in.TreeCover.Grid,
		in.LandCover.Grid, in.Boreal.Grid, in.TundraExtent.Grid}
	for _, l := range []*raster.Layer{in.WoodyAllocation, in.TundraAllocation} {
		if l != nil {
			grids = append(grids, l.Grid)
		}
	}
	if err := g.CheckAligned("mosaic inputs", grids...); err != nil {
		return fmt.Errorf("biomosaic: %v", err)
	}
	for name, l := range map[string]*raster.Layer{"grass": in.Grass, "crop": in.Crop, "tundra": in.Tundra} {
		if err := raster.CheckUnits(in.Woody.Units, l.Units); err != nil {
			return fmt.Errorf("biomosaic: %s input: %v", name, err)
		}
	}
	if err := raster.CheckUnits(in.TreeCover.Units, "percent"); err != nil {
		return fmt.Errorf("biomosaic: tree cover input: %v", err)
	}
	if err := landcover.Decode(in.LandCover); err != nil {
		return fmt.Errorf("biomosaic: %v", err)
	}
	return nil
}

// Engine creates biomass mosaics.
type Engine struct {
	Params

	Log logrus.FieldLogger
}

func (e *Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Mosaic combines the inputs into a single biomass layer.
//
// In the tundra, sparse land cover takes the tundra estimate, pixels
// where trees dominate take woody plus grassland biomass, and other
// pixels take the tundra estimate. In the boreal forest, a northern
// mosaic built with the tundra rules is blended across BorealDivide with
// a southern mosaic of woody plus herbaceous biomass. Elsewhere, pixels
// take woody plus herbaceous biomass. Pixels with no value from any zone
// take the grassland estimate, and bare ground without any estimate
// has zero biomass. Finally, permanent ice is set to zero and water and
// pixels without land cover are masked.
func (e *Engine) Mosaic(ctx context.Context, in *Inputs) (*raster.Layer, error) {
	if err := e.Params.Validate(); err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}
	log := e.log()
	g := in.Woody.Grid
	lc := in.LandCover

	layers := make(map[string]*raster.Layer)
	for name, l := range map[string]*raster.Layer{
		"woody": in.Woody, "grass": in.Grass, "crop": in.Crop, "tundra": in.Tundra,
	} {
		p, err := pair(name, l)
		if err != nil {
			return nil, err
		}
		layers[name] = Stabilize(p, e.Digits)
	}
	woody, grass, crop, tundra := layers["woody"], layers["grass"], layers["crop"], layers["tundra"]

	herb, err := HerbComposite(ctx, crop, grass, lc)
	if err != nil {
		return nil, err
	}
	// The tundra rules add grass directly, so clamp it here as well.
	grass, err = grass.Apply(ctx, func(i int, vals, out []float64) {
		for b, v := range vals {
			if v < 0 {
				v = 0
			}
			out[b] = v
		}
	})
	if err != nil {
		return nil, err
	}

	sparse, err := landcover.Mask(ctx, lc, func(c landcover.Class) bool { return c.TundraTier() == landcover.Sparse })
	if err != nil {
		return nil, err
	}
	useWoody, err := e.useWoody(ctx, in, sparse)
	if err != nil {
		return nil, err
	}
	notUseWoody := useWoody.Not()
	notBoreal := in.Boreal.Not()

	treeGrass, err := TreeHerb(ctx, woody, grass, in.TreeCover, e.TreeCoverSaturation, e.Digits)
	if err != nil {
		return nil, err
	}

	// Tundra.
	tundraRules := func(z Zone) *RuleTable {
		t := &RuleTable{Zone: z}
		t.Add("sparse tundra", tundra, sparse)
		t.Add("tundra trees", treeGrass, useWoody)
		t.Add("tundra vegetation", tundra, notUseWoody)
		return t
	}
	tundraOnly, err := in.TundraExtent.And(notBoreal)
	if err != nil {
		return nil, err
	}
	tundraMosaic, err := e.zone(ctx, tundraRules(TundraZone), tundraOnly)
	if err != nil {
		return nil, err
	}

	// Boreal.
	north, err := e.zone(ctx, tundraRules(BorealNorthZone), in.Boreal)
	if err != nil {
		return nil, err
	}
	herbNotSparse, err := herb.UpdateMask(ctx, sparse.Not())
	if err != nil {
		return nil, err
	}
	southTrees, err := TreeHerb(ctx, woody, herbNotSparse, in.TreeCover, e.TreeCoverSaturation, e.Digits)
	if err != nil {
		return nil, err
	}
	southRules := &RuleTable{Zone: BorealSouthZone}
	southRules.Add("sparse tundra", tundra, sparse)
	southRules.Add("boreal trees", southTrees, nil)
	south, err := e.zone(ctx, southRules, in.Boreal)
	if err != nil {
		return nil, err
	}
	weights, err := NewBlendWeights(g, e.BorealDivide, e.BlendHalfWidth)
	if err != nil {
		return nil, err
	}
	boreal, err := weights.Apply(ctx, north, south)
	if err != nil {
		return nil, err
	}

	// Everywhere else.
	otherTrees, err := TreeHerb(ctx, woody, herb, in.TreeCover, e.TreeCoverSaturation, e.Digits)
	if err != nil {
		return nil, err
	}
	otherOnly, err := notBoreal.And(in.TundraExtent.Not())
	if err != nil {
		return nil, err
	}
	otherRules := &RuleTable{Zone: OtherZone}
	otherRules.Add("trees and herbaceous", otherTrees, nil)
	other, err := e.zone(ctx, otherRules, otherOnly)
	if err != nil {
		return nil, err
	}

	// Global assembly.
	bareGround, err := landcover.Mask(ctx, lc, func(c landcover.Class) bool {
		return c.Disposition() == landcover.BareGround
	})
	if err != nil {
		return nil, err
	}
	bareZero, err := raster.NewPair(g, woody.Units).Where(ctx, bareGround, 0, 0)
	if err != nil {
		return nil, err
	}
	global := &RuleTable{Zone: GlobalZone}
	global.Add("tundra", tundraMosaic, nil)
	global.Add("boreal", boreal, nil)
	global.Add("other", other, nil)
	global.Add("grass", grass, nil)
	global.Add("bare ground", bareZero, nil)
	mosaic, err := global.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	out, err := raster.MapPairs(ctx, g, woody.Units, func(i int) errprop.Value {
		switch landcover.At(lc, i).Disposition() {
		case landcover.Ice:
			return errprop.Value{}
		case landcover.Excluded:
			return errprop.Masked
		default:
			return mosaic.Pair(i)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("biomosaic: invalid mosaic: %v", err)
	}
	log.WithFields(logrus.Fields{
		"valid pixels": out.Mask().Count(),
		"pixels":       g.Len(),
	}).Info("biomosaic: mosaic complete")
	return out, nil
}

// useWoody returns a mask that is true where tree cover is above the
// threshold, woody biomass is greater than tundra biomass, and the land
// cover is not sparse.
func (e *Engine) useWoody(ctx context.Context, in *Inputs, sparse *raster.Mask) (*raster.Mask, error) {
	woodyAlloc, tundraAlloc := in.WoodyAllocation, in.TundraAllocation
	if woodyAlloc == nil {
		woodyAlloc = in.Woody
	}
	if tundraAlloc == nil {
		tundraAlloc = in.Tundra
	}
	we, te := woodyAlloc.BandIndex(raster.Estimate), tundraAlloc.BandIndex(raster.Estimate)
	pc := in.TreeCover.BandIndex(raster.Estimate)
	if we < 0 || te < 0 || pc < 0 {
		return nil, fmt.Errorf("biomosaic: allocation and tree cover layers need an %q band", raster.Estimate)
	}
	return raster.MaskFunc(ctx, in.Woody.Grid, func(i int) bool {
		// Comparisons with NaN are false, so masked pixels are excluded.
		return in.TreeCover.At(pc, i) > e.TreeCoverThreshold &&
			woodyAlloc.At(we, i) > tundraAlloc.At(te, i) &&
			!sparse.At(i)
	})
}

// zone resolves the rules of a zone and masks the result to where.
func (e *Engine) zone(ctx context.Context, t *RuleTable, where *raster.Mask) (*raster.Layer, error) {
	l, err := t.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	l, err = l.UpdateMask(ctx, where)
	if err != nil {
		return nil, fmt.Errorf("biomosaic: %s zone: %v", t.Zone, err)
	}
	e.log().WithFields(logrus.Fields{
		"zone":         t.Zone.String(),
		"rules":        len(t.Rules),
		"valid pixels": l.Mask().Count(),
	}).Debug("biomosaic: resolved zone")
	return l, nil
}
