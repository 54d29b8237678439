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

package raster

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom/proj"
)

// Interpolation is a method of sampling a raster at points that do not
// fall on its cell centers.
type Interpolation int

const (
	// InterpolationUnset is the zero value. It is not a valid method.
	InterpolationUnset Interpolation = iota
	// Nearest takes the value of the cell containing the point.
	Nearest
	// Bilinear interpolates between the four nearest cell centers.
	Bilinear
)

func (m Interpolation) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	default:
		return "unset"
	}
}

// ParseInterpolation parses "nearest" or "bilinear".
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return InterpolationUnset, fmt.Errorf("raster: interpolation is %q but should be 'nearest' or 'bilinear'", s)
	}
}

// Resample samples l at the cell centers of target using the given
// interpolation method. Cells whose sample point falls outside of l, or
// that depend on masked cells of l, are masked.
func Resample(ctx context.Context, l *Layer, target *Grid, mode Interpolation) (*Layer, error) {
	if mode != Nearest && mode != Bilinear {
		return nil, fmt.Errorf("raster: resampling %s to %s: interpolation method must be specified", l.Grid.Name, target.Name)
	}
	t, err := target.SR.NewTransform(l.Grid.SR)
	if err != nil {
		return nil, fmt.Errorf("raster: resampling %s to %s: %v", l.Grid.Name, target.Name, err)
	}
	src := l.Grid
	nb := l.NumBands()
	return Map(ctx, target, l.Units, l.names, func(i int, out []float64) {
		c := target.Center(target.RowCol(i))
		x, y, err := t(c.X, c.Y)
		if err != nil {
			return
		}
		// Fractional column and row relative to source cell centers.
		fx := (x-src.X0)/src.Dx - 0.5
		fy := (y-src.Y0)/src.Dy - 0.5
		if fx < -0.5 || fy < -0.5 || fx >= float64(src.Nx)-0.5 || fy >= float64(src.Ny)-0.5 {
			return
		}
		if mode == Nearest {
			j := src.Index(int(math.Floor(fy+0.5)), int(math.Floor(fx+0.5)))
			if !l.Valid(j) {
				return
			}
			for b := 0; b < nb; b++ {
				out[b] = l.bands[b].Elements[j]
			}
			return
		}
		// Neighbors are taken from the unclamped lower index so that
		// points in the outer half of an edge cell use only that cell.
		x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
		c0, c1 := clampIndex(x0, src.Nx), clampIndex(x0+1, src.Nx)
		r0, r1 := clampIndex(y0, src.Ny), clampIndex(y0+1, src.Ny)
		wx := clampUnit(fx - float64(x0))
		wy := clampUnit(fy - float64(y0))
		idx := [4]int{src.Index(r0, c0), src.Index(r0, c1), src.Index(r1, c0), src.Index(r1, c1)}
		w := [4]float64{(1 - wx) * (1 - wy), wx * (1 - wy), (1 - wx) * wy, wx * wy}
		for k, j := range idx {
			if w[k] > 0 && !l.Valid(j) {
				return
			}
		}
		for b := 0; b < nb; b++ {
			var v float64
			for k, j := range idx {
				if w[k] > 0 {
					v += w[k] * l.bands[b].Elements[j]
				}
			}
			out[b] = v
		}
	})
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ResampleClasses samples c at the cell centers of target using
// nearest-neighbor interpolation.
func ResampleClasses(ctx context.Context, c *Classes, target *Grid) (*Classes, error) {
	t, err := target.SR.NewTransform(c.Grid.SR)
	if err != nil {
		return nil, fmt.Errorf("raster: resampling classes %s to %s: %v", c.Grid.Name, target.Name, err)
	}
	o := NewClasses(target)
	err = Tiles(ctx, target.Ny, func(rowStart, rowEnd int) error {
		return sampleClasses(c, o, t, rowStart, rowEnd)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func sampleClasses(c, o *Classes, t proj.Transformer, rowStart, rowEnd int) error {
	g := o.Grid
	for i := rowStart * g.Nx; i < rowEnd*g.Nx; i++ {
		p := g.Center(g.RowCol(i))
		x, y, err := t(p.X, p.Y)
		if err != nil {
			return err
		}
		p.X, p.Y = x, y
		if row, col, ok := c.Grid.Cell(p); ok {
			o.Codes[i] = c.Codes[c.Grid.Index(row, col)]
		}
	}
	return nil
}
