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
)

// NoClass marks cells of a categorical raster that have no class.
const NoClass = -1

// Classes is a single-band categorical raster of integer class codes.
type Classes struct {
	Grid  *Grid
	Codes []int
}

// NewClasses returns a categorical raster on g where every cell is NoClass.
func NewClasses(g *Grid) *Classes {
	c := &Classes{Grid: g, Codes: make([]int, g.Len())}
	for i := range c.Codes {
		c.Codes[i] = NoClass
	}
	return c
}

// ClassesFromLayer converts the first band of l into class codes.
// Masked cells become NoClass. Values that are not whole numbers
// return an error.
func ClassesFromLayer(l *Layer) (*Classes, error) {
	if l.NumBands() == 0 {
		return nil, fmt.Errorf("raster: class layer has no bands")
	}
	c := NewClasses(l.Grid)
	for i, v := range l.BandAt(0).Elements {
		if math.IsNaN(v) {
			continue
		}
		if v != math.Trunc(v) {
			row, col := l.Grid.RowCol(i)
			return nil, fmt.Errorf("raster: class value %g at (row %d, col %d) is not an integer", v, row, col)
		}
		c.Codes[i] = int(v)
	}
	return c, nil
}

// Layer returns c as a single-band layer with the given band name.
func (c *Classes) Layer(band string) *Layer {
	l := NewLayer(c.Grid, "1", band)
	b := l.BandAt(0)
	for i, v := range c.Codes {
		if v != NoClass {
			b.Elements[i] = float64(v)
		}
	}
	return l
}

// Mask returns a mask that is true where f returns true for the cell's
// class code. f is not called for NoClass cells.
func (c *Classes) Mask(ctx context.Context, f func(code int) bool) (*Mask, error) {
	return MaskFunc(ctx, c.Grid, func(i int) bool {
		if c.Codes[i] == NoClass {
			return false
		}
		return f(c.Codes[i])
	})
}
