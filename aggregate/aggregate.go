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

// Package aggregate changes the resolution and spatial reference of
// estimate and uncertainty rasters. Estimates are combined as
// area-weighted means and uncertainties as area-weighted quadrature
// means, so that a block of pixels with equal uncertainty keeps that
// uncertainty.
package aggregate

import (
	"context"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/biomosaic/errprop"
	"github.com/spatialmodel/biomosaic/raster"
	"gonum.org/v1/gonum/floats"
)

// Options control aggregation.
type Options struct {
	// Interpolation is used when the target grid is finer than the
	// source grid. It must be set in that case.
	Interpolation raster.Interpolation
}

// Check returns an error if l cannot be aggregated from src to target.
func Check(src, target *raster.Grid) error {
	for _, g := range []*raster.Grid{src, target} {
		if g == nil {
			return fmt.Errorf("aggregate: missing grid")
		}
		if g.Nx <= 0 || g.Ny <= 0 {
			return fmt.Errorf("aggregate: grid %s has %d×%d cells", g.Name, g.Nx, g.Ny)
		}
		if !(g.Dx > 0) || !(g.Dy > 0) {
			return fmt.Errorf("aggregate: grid %s has spacing %g×%g but both should be >0", g.Name, g.Dx, g.Dy)
		}
		if g.SR == nil {
			return fmt.Errorf("aggregate: grid %s has no spatial reference", g.Name)
		}
	}
	t, err := target.SR.NewTransform(src.SR)
	if err != nil {
		return fmt.Errorf("aggregate: transforming %s to %s: %v", target.Name, src.Name, err)
	}
	outline, err := gridOutline(target).Transform(t)
	if err != nil {
		return fmt.Errorf("aggregate: transforming outline of %s: %v", target.Name, err)
	}
	if !outline.Bounds().Overlaps(src.Bounds()) {
		return fmt.Errorf("aggregate: grids %s and %s do not overlap", src.Name, target.Name)
	}
	return nil
}

// outlineSegments is the number of points per edge used to
// approximate the grid outline in another spatial reference.
const outlineSegments = 16

func gridOutline(g *raster.Grid) geom.Polygon {
	b := g.Bounds()
	var p geom.Path
	edge := func(x0, y0, x1, y1 float64) {
		for i := 0; i < outlineSegments; i++ {
			f := float64(i) / outlineSegments
			p = append(p, geom.Point{X: x0 + f*(x1-x0), Y: y0 + f*(y1-y0)})
		}
	}
	edge(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y)
	edge(b.Max.X, b.Min.Y, b.Max.X, b.Max.Y)
	edge(b.Max.X, b.Max.Y, b.Min.X, b.Max.Y)
	edge(b.Min.X, b.Max.Y, b.Min.X, b.Min.Y)
	p = append(p, p[0])
	return geom.Polygon{p}
}

// Upsampling returns whether target cells are smaller than src cells
// along either axis.
func Upsampling(src, target *raster.Grid) bool {
	const tol = 1 - 1.e-9
	if raster.SameSR(src.SR, target.SR) {
		return target.Dx < src.Dx*tol || target.Dy < src.Dy*tol
	}
	sdx, sdy := src.CellSizeMeters(src.Ny / 2)
	tdx, tdy := target.CellSizeMeters(target.Ny / 2)
	return tdx < sdx*tol || tdy < sdy*tol
}

// Aggregate resamples l onto target. Each target cell takes the
// area-weighted mean of the valid pixels of l that it overlaps, and the
// uncertainty band, if present, takes the area-weighted quadrature mean
// sqrt(Σ wᵢ eᵢ² / Σ wᵢ) of the same pixels. Target cells that overlap no
// valid pixel are masked.
//
// When target is finer than l along either axis, the values are instead
// interpolated at the target cell centers using opts.Interpolation,
// which must be set.
func Aggregate(ctx context.Context, l *raster.Layer, target *raster.Grid, opts Options) (*raster.Layer, error) {
	if err := Check(l.Grid, target); err != nil {
		return nil, err
	}
	if l.Grid.Aligned(target) {
		return l.Copy(), nil
	}
	if Upsampling(l.Grid, target) {
		if opts.Interpolation == raster.InterpolationUnset {
			return nil, fmt.Errorf("aggregate: %s is finer than %s so an interpolation method must be specified",
				target.Name, l.Grid.Name)
		}
		o, err := raster.Resample(ctx, l, target, opts.Interpolation)
		if err != nil {
			return nil, fmt.Errorf("aggregate: %v", err)
		}
		return o, nil
	}

	var weights weightFunc
	if raster.SameSR(l.Grid.SR, target.SR) {
		weights = overlapWeights(l.Grid, target)
	} else {
		t, err := target.SR.NewTransform(l.Grid.SR)
		if err != nil {
			return nil, fmt.Errorf("aggregate: %v", err)
		}
		weights = intersectionWeights(l.Grid, target, t)
	}

	o := raster.NewLayer(target, l.Units, l.Bands()...)
	u := l.BandIndex(raster.Uncertainty)
	nb := l.NumBands()
	err := raster.Tiles(ctx, target.Ny, func(rowStart, rowEnd int) error {
		var idx []int
		var w []float64
		vals := make([][]float64, nb)
		for row := rowStart; row < rowEnd; row++ {
			for col := 0; col < target.Nx; col++ {
				idx, w = idx[:0], w[:0]
				weights(row, col, func(j int, wj float64) {
					if wj > 0 && l.Valid(j) {
						idx = append(idx, j)
						w = append(w, wj)
					}
				})
				if len(idx) == 0 {
					continue // stays masked
				}
				i := target.Index(row, col)
				wsum := floats.Sum(w)
				for b := 0; b < nb; b++ {
					v := vals[b][:0]
					for _, j := range idx {
						v = append(v, l.At(b, j))
					}
					vals[b] = v
					var r float64
					if b == u {
						r = errprop.QuadratureMean(v, w)
					} else {
						r = floats.Dot(v, w) / wsum
					}
					o.BandAt(b).Elements[i] = r
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// weightFunc calls f with the flat index and area weight of every
// source cell that may overlap target cell (row, col).
type weightFunc func(row, col int, f func(j int, w float64))

// overlapWeights calculates weights for grids in the same spatial
// reference from the exact overlap of the cell rectangles.
func overlapWeights(src, target *raster.Grid) weightFunc {
	areaFactor := rowAreaFactors(src)
	return func(row, col int, f func(j int, w float64)) {
		tb := target.CellBounds(row, col)
		c0, c1 := cellRange(tb.Min.X, tb.Max.X, src.X0, src.Dx, src.Nx)
		r0, r1 := cellRange(tb.Min.Y, tb.Max.Y, src.Y0, src.Dy, src.Ny)
		for r := r0; r <= r1; r++ {
			sy0 := src.Y0 + float64(r)*src.Dy
			oy := math.Min(tb.Max.Y, sy0+src.Dy) - math.Max(tb.Min.Y, sy0)
			if oy <= 0 {
				continue
			}
			for c := c0; c <= c1; c++ {
				sx0 := src.X0 + float64(c)*src.Dx
				ox := math.Min(tb.Max.X, sx0+src.Dx) - math.Max(tb.Min.X, sx0)
				if ox <= 0 {
					continue
				}
				f(src.Index(r, c), ox*oy*areaFactor[r])
			}
		}
	}
}

// intersectionWeights calculates weights for grids in different spatial
// references by transforming each target cell into the source spatial
// reference and intersecting it with the source cells.
func intersectionWeights(src, target *raster.Grid, t proj.Transformer) weightFunc {
	areaFactor := rowAreaFactors(src)
	return func(row, col int, f func(j int, w float64)) {
		g, err := target.CellPolygon(row, col).Transform(t)
		if err != nil {
			return // cells that cannot be transformed stay masked
		}
		p := g.(geom.Polygon)
		b := p.Bounds()
		c0, c1 := cellRange(b.Min.X, b.Max.X, src.X0, src.Dx, src.Nx)
		r0, r1 := cellRange(b.Min.Y, b.Max.Y, src.Y0, src.Dy, src.Ny)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				a := p.Intersection(src.CellPolygon(r, c)).Area()
				if a > 0 {
					f(src.Index(r, c), a*areaFactor[r])
				}
			}
		}
	}
}

// cellRange returns the first and last cell indices along one axis that
// may overlap [min, max]. last < first if there are none.
func cellRange(min, max, origin, d float64, n int) (first, last int) {
	first = int(math.Floor((min - origin) / d))
	last = int(math.Ceil((max-origin)/d)) - 1
	if first < 0 {
		first = 0
	}
	if last > n-1 {
		last = n - 1
	}
	return first, last
}

// rowAreaFactors returns the ratio of true cell area to nominal cell
// area for every row of g. On geographic grids cell area shrinks with the
// cosine of latitude.
func rowAreaFactors(g *raster.Grid) []float64 {
	f := make([]float64, g.Ny)
	for r := range f {
		f[r] = 1
		if g.Geographic() {
			lat := g.Center(r, 0).Y * math.Pi / 180
			f[r] = math.Max(math.Cos(lat), 0)
		}
	}
	return f
}

// Classes resamples a categorical raster onto target by nearest
// neighbor, which is the only meaningful way to change the resolution of
// class codes.
func Classes(ctx context.Context, c *raster.Classes, target *raster.Grid) (*raster.Classes, error) {
	if err := Check(c.Grid, target); err != nil {
		return nil, err
	}
	if c.Grid.Aligned(target) {
		return &raster.Classes{Grid: target, Codes: append([]int{}, c.Codes...)}, nil
	}
	o, err := raster.ResampleClasses(ctx, c, target)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %v", err)
	}
	return o, nil
}
