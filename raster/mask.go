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

	"github.com/ctessum/geom"
)

// Mask is a boolean raster.
type Mask struct {
	Grid  *Grid
	valid []bool
}

// NewMask returns a mask on g with every cell set to v.
func NewMask(g *Grid, v bool) *Mask {
	m := &Mask{Grid: g, valid: make([]bool, g.Len())}
	if v {
		for i := range m.valid {
			m.valid[i] = true
		}
	}
	return m
}

// MaskFunc creates a mask on g by evaluating f for every cell.
// f is called concurrently.
func MaskFunc(ctx context.Context, g *Grid, f func(i int) bool) (*Mask, error) {
	m := NewMask(g, false)
	err := Tiles(ctx, g.Ny, func(rowStart, rowEnd int) error {
		for i := rowStart * g.Nx; i < rowEnd*g.Nx; i++ {
			m.valid[i] = f(i)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// At returns the value of cell i.
func (m *Mask) At(i int) bool { return m.valid[i] }

// Set sets the value of cell i. It should only be called while the mask
// is being built.
func (m *Mask) Set(i int, v bool) { m.valid[i] = v }

// Count returns the number of true cells.
func (m *Mask) Count() int {
	var n int
	for _, v := range m.valid {
		if v {
			n++
		}
	}
	return n
}

// Not returns the inverse of m.
func (m *Mask) Not() *Mask {
	o := NewMask(m.Grid, false)
	for i, v := range m.valid {
		o.valid[i] = !v
	}
	return o
}

// And returns a mask that is true where m and all of the others are true.
func (m *Mask) And(others ...*Mask) (*Mask, error) {
	return m.combine("And", others, func(a, b bool) bool { return a && b })
}

// Or returns a mask that is true where m or any of the others are true.
func (m *Mask) Or(others ...*Mask) (*Mask, error) {
	return m.combine("Or", others, func(a, b bool) bool { return a || b })
}

func (m *Mask) combine(op string, others []*Mask, f func(a, b bool) bool) (*Mask, error) {
	o := &Mask{Grid: m.Grid, valid: append([]bool{}, m.valid...)}
	for _, m2 := range others {
		if err := m.Grid.CheckAligned(fmt.Sprintf("mask %s", op), m2.Grid); err != nil {
			return nil, err
		}
		for i, v := range m2.valid {
			o.valid[i] = f(o.valid[i], v)
		}
	}
	return o, nil
}

// MaskFromLayer returns a mask that is true where the first band of l is
// valid and not zero, the way 0/1 extent rasters are usually stored.
func MaskFromLayer(l *Layer) (*Mask, error) {
	if l.NumBands() == 0 {
		return nil, fmt.Errorf("raster: mask layer has no bands")
	}
	m := NewMask(l.Grid, false)
	b := l.BandAt(0)
	for i, v := range b.Elements {
		m.valid[i] = v == v && v != 0
	}
	return m, nil
}

// RasterizePolygons returns a mask on g that is true for cells whose
// centers are within any of the given polygons. The polygons must be in
// the spatial reference of g.
func RasterizePolygons(ctx context.Context, g *Grid, polys []geom.Polygonal) (*Mask, error) {
	bounds := make([]*geom.Bounds, len(polys))
	for i, p := range polys {
		bounds[i] = p.Bounds()
	}
	return MaskFunc(ctx, g, func(i int) bool {
		c := g.Center(g.RowCol(i))
		for j, p := range polys {
			if !bounds[j].Overlaps(c.Bounds()) {
				continue
			}
			if c.Within(p) != geom.Outside {
				return true
			}
		}
		return false
	})
}
