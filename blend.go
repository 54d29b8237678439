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
	"github.com/spatialmodel/biomosaic/raster"
)

// BlendWeights are the weights of the northern and southern boreal
// mosaics for every cell of a grid. North[i] + South[i] = 1.
type BlendWeights struct {
	Grid         *raster.Grid
	North, South []float64
}

// NewBlendWeights calculates blend weights from the cell-center latitude.
// The northern weight rises linearly from 0 at divide−halfWidth to 1 at
// divide+halfWidth, so both weights are 0.5 at the divide.
func NewBlendWeights(g *raster.Grid, divide, halfWidth float64) (*BlendWeights, error) {
	if !(halfWidth > 0) {
		return nil, fmt.Errorf("biomosaic: blend half-width is %g but should be >0", halfWidth)
	}
	lat, err := g.Latitudes()
	if err != nil {
		return nil, fmt.Errorf("biomosaic: calculating blend weights: %v", err)
	}
	w := &BlendWeights{Grid: g, North: make([]float64, len(lat)), South: make([]float64, len(lat))}
	for i, y := range lat {
		n := math.Max(0, math.Min(1, (y-(divide-halfWidth))/(2*halfWidth)))
		w.North[i] = n
		w.South[i] = 1 - n
	}
	return w, nil
}

// Blend combines the northern and southern values at cell i. Where both
// are valid the result is their weighted mean; the two are derived from
// the same inputs so their errors are combined linearly. Where only one
// is valid it is used alone if its weight is above zero. Otherwise the
// result is masked.
func (w *BlendWeights) Blend(i int, north, south errprop.Value) errprop.Value {
	wn, ws := w.North[i], w.South[i]
	switch {
	case !north.IsMasked() && !south.IsMasked():
		return errprop.Weighted(north, south, wn)
	case !north.IsMasked() && wn > 0:
		return north
	case !south.IsMasked() && ws > 0:
		return south
	default:
		return errprop.Masked
	}
}

// Apply blends two layers on the weights' grid.
func (w *BlendWeights) Apply(ctx context.Context, north, south *raster.Layer) (*raster.Layer, error) {
	if err := w.Grid.CheckAligned("blending", north.Grid, south.Grid); err != nil {
		return nil, fmt.Errorf("biomosaic: %v", err)
	}
	return raster.MapPairs(ctx, w.Grid, north.Units, func(i int) errprop.Value {
		return w.Blend(i, north.Pair(i), south.Pair(i))
	})
}
