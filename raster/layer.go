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

// Package raster holds georeferenced, multi-band, masked grids of
// floating point values. Masked (no data) values are stored as NaN.
package raster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/biomosaic/errprop"
)

// Canonical band names.
const (
	Estimate    = "estimate"
	Uncertainty = "uncertainty"
)

// ErrGridMismatch is returned when layers that should share a grid do not.
var ErrGridMismatch = errors.New("grid mismatch")

// Layer is a georeferenced raster with an ordered set of named bands.
// Each band is stored as a [Ny, Nx] array where NaN marks a masked cell.
// Layers are not modified after they are returned by the functions
// in this package.
type Layer struct {
	Grid *Grid

	// Units are the units of all bands, e.g. "Mg ha-1".
	Units string

	names []string
	bands []*sparse.DenseArray
}

// NewLayer returns a layer with the given bands where all cells are masked.
func NewLayer(g *Grid, units string, bands ...string) *Layer {
	l := &Layer{Grid: g, Units: units, names: append([]string{}, bands...)}
	l.bands = make([]*sparse.DenseArray, len(bands))
	for i := range bands {
		b := sparse.ZerosDense(g.Ny, g.Nx)
		for j := range b.Elements {
			b.Elements[j] = math.NaN()
		}
		l.bands[i] = b
	}
	return l
}

// NewPair returns a fully masked layer with estimate and
// uncertainty bands.
func NewPair(g *Grid, units string) *Layer {
	return NewLayer(g, units, Estimate, Uncertainty)
}

// FromArrays creates a layer from existing band data, which must
// have the same number of elements as g has cells. The arrays are not copied.
func FromArrays(g *Grid, units string, names []string, data ...[]float64) (*Layer, error) {
	if len(names) != len(data) {
		return nil, fmt.Errorf("raster: %d band names but %d bands", len(names), len(data))
	}
	l := &Layer{Grid: g, Units: units, names: append([]string{}, names...)}
	for i, d := range data {
		if len(d) != g.Len() {
			return nil, fmt.Errorf("raster: band %s has %d values but grid %s has %d cells",
				names[i], len(d), g.Name, g.Len())
		}
		a := &sparse.DenseArray{Elements: d, Shape: []int{g.Ny, g.Nx}}
		a.Fix() // sets the array size that Copy relies on
		l.bands = append(l.bands, a)
	}
	return l, nil
}

// Bands returns the band names in order.
func (l *Layer) Bands() []string { return append([]string{}, l.names...) }

// NumBands returns the number of bands.
func (l *Layer) NumBands() int { return len(l.names) }

// BandIndex returns the index of the named band, or -1 if it is not present.
func (l *Layer) BandIndex(name string) int {
	for i, n := range l.names {
		if n == name {
			return i
		}
	}
	return -1
}

// HasBand returns whether l has a band with the given name.
func (l *Layer) HasBand(name string) bool { return l.BandIndex(name) >= 0 }

// Band returns the data for the named band, or nil if it is not present.
// The returned array must not be modified.
func (l *Layer) Band(name string) *sparse.DenseArray {
	i := l.BandIndex(name)
	if i < 0 {
		return nil
	}
	return l.bands[i]
}

// BandAt returns the band with index b.
func (l *Layer) BandAt(b int) *sparse.DenseArray { return l.bands[b] }

// At returns the value of band b at flat cell index i.
func (l *Layer) At(b, i int) float64 { return l.bands[b].Elements[i] }

// Valid returns whether cell i is valid in every band.
func (l *Layer) Valid(i int) bool {
	for _, b := range l.bands {
		if math.IsNaN(b.Elements[i]) {
			return false
		}
	}
	return len(l.bands) > 0
}

// Pair returns the estimate and uncertainty at cell i. The uncertainty
// is zero for layers without an uncertainty band.
func (l *Layer) Pair(i int) errprop.Value {
	v := errprop.Value{Mean: math.NaN(), SD: math.NaN()}
	if e := l.BandIndex(Estimate); e >= 0 {
		v.Mean = l.bands[e].Elements[i]
	}
	if u := l.BandIndex(Uncertainty); u >= 0 {
		v.SD = l.bands[u].Elements[i]
	} else if !math.IsNaN(v.Mean) {
		v.SD = 0
	}
	return v
}

// Copy returns a deep copy of l.
func (l *Layer) Copy() *Layer {
	o := &Layer{Grid: l.Grid, Units: l.Units, names: append([]string{}, l.names...)}
	o.bands = make([]*sparse.DenseArray, len(l.bands))
	for i, b := range l.bands {
		o.bands[i] = b.Copy()
	}
	return o
}

// Select returns a layer with only the given bands, in the given order.
func (l *Layer) Select(names ...string) (*Layer, error) {
	o := &Layer{Grid: l.Grid, Units: l.Units, names: append([]string{}, names...)}
	for _, n := range names {
		b := l.Band(n)
		if b == nil {
			return nil, fmt.Errorf("raster: layer has no band %q (has %v)", n, l.names)
		}
		o.bands = append(o.bands, b.Copy())
	}
	return o, nil
}

// Mask returns a mask that is true where l is valid in every band.
func (l *Layer) Mask() *Mask {
	m := NewMask(l.Grid, false)
	for i := range m.valid {
		m.valid[i] = l.Valid(i)
	}
	return m
}

// UpdateMask returns a copy of l that is masked wherever m is false.
func (l *Layer) UpdateMask(ctx context.Context, m *Mask) (*Layer, error) {
	if err := l.Grid.CheckAligned("updating mask", m.Grid); err != nil {
		return nil, err
	}
	return l.Apply(ctx, func(i int, in, out []float64) {
		if !m.valid[i] {
			for b := range out {
				out[b] = math.NaN()
			}
			return
		}
		copy(out, in)
	})
}

// Where returns a copy of l where cells for which m is true are replaced
// by the given band values. The replaced cells become valid.
func (l *Layer) Where(ctx context.Context, m *Mask, values ...float64) (*Layer, error) {
	if len(values) != len(l.names) {
		return nil, fmt.Errorf("raster: Where: %d values for %d bands", len(values), len(l.names))
	}
	if err := l.Grid.CheckAligned("Where", m.Grid); err != nil {
		return nil, err
	}
	return l.Apply(ctx, func(i int, in, out []float64) {
		if m.valid[i] {
			copy(out, values)
			return
		}
		copy(out, in)
	})
}

// Unmask returns a copy of l where cells that are masked in any band
// are replaced by the given band values.
func (l *Layer) Unmask(ctx context.Context, values ...float64) (*Layer, error) {
	if len(values) != len(l.names) {
		return nil, fmt.Errorf("raster: Unmask: %d values for %d bands", len(values), len(l.names))
	}
	return l.Apply(ctx, func(i int, in, out []float64) {
		for _, v := range in {
			if math.IsNaN(v) {
				copy(out, values)
				return
			}
		}
		copy(out, in)
	})
}

// Apply returns a new layer with the same bands as l, where the values
// of each cell are calculated by f from the values of the same cell in l.
// f must not retain in or out.
func (l *Layer) Apply(ctx context.Context, f func(i int, in, out []float64)) (*Layer, error) {
	o := NewLayer(l.Grid, l.Units, l.names...)
	nx := l.Grid.Nx
	err := Tiles(ctx, l.Grid.Ny, func(rowStart, rowEnd int) error {
		in := make([]float64, len(l.bands))
		out := make([]float64, len(l.bands))
		for i := rowStart * nx; i < rowEnd*nx; i++ {
			for b, band := range l.bands {
				in[b] = band.Elements[i]
			}
			f(i, in, out)
			for b, v := range out {
				o.bands[b].Elements[i] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Map creates a new layer on g with the given bands, calling f to fill
// in the band values of every cell. f is called concurrently from
// multiple goroutines and must not retain out.
func Map(ctx context.Context, g *Grid, units string, bands []string, f func(i int, out []float64)) (*Layer, error) {
	o := NewLayer(g, units, bands...)
	err := Tiles(ctx, g.Ny, func(rowStart, rowEnd int) error {
		out := make([]float64, len(bands))
		for row := rowStart; row < rowEnd; row++ {
			for col := 0; col < g.Nx; col++ {
				i := g.Index(row, col)
				for b := range out {
					out[b] = math.NaN()
				}
				f(i, out)
				for b, v := range out {
					o.bands[b].Elements[i] = v
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

// MapPairs creates a new estimate/uncertainty layer on g by calling f
// for every cell. A result with a NaN in either field masks the cell in
// both bands.
func MapPairs(ctx context.Context, g *Grid, units string, f func(i int) errprop.Value) (*Layer, error) {
	return Map(ctx, g, units, []string{Estimate, Uncertainty}, func(i int, out []float64) {
		v := f(i)
		if math.IsNaN(v.Mean) || math.IsNaN(v.SD) {
			return
		}
		out[0], out[1] = v.Mean, v.SD
	})
}

// Validate checks that l's uncertainty band, if present, is non-negative
// and that every band is masked in the same cells.
func (l *Layer) Validate() error {
	if l.Grid == nil {
		return fmt.Errorf("raster: layer has no grid")
	}
	for b, band := range l.bands {
		if len(band.Elements) != l.Grid.Len() {
			return fmt.Errorf("raster: band %s has %d values but grid %s has %d cells",
				l.names[b], len(band.Elements), l.Grid.Name, l.Grid.Len())
		}
	}
	u := l.BandIndex(Uncertainty)
	for i := 0; i < l.Grid.Len(); i++ {
		var nValid int
		for _, band := range l.bands {
			if !math.IsNaN(band.Elements[i]) {
				nValid++
			}
		}
		if nValid != 0 && nValid != len(l.bands) {
			row, col := l.Grid.RowCol(i)
			return fmt.Errorf("raster: cell (row %d, col %d) is valid in %d of %d bands", row, col, nValid, len(l.bands))
		}
		if u >= 0 {
			if v := l.bands[u].Elements[i]; v < 0 {
				row, col := l.Grid.RowCol(i)
				return fmt.Errorf("raster: cell (row %d, col %d) has negative uncertainty %g", row, col, v)
			}
		}
	}
	return nil
}
