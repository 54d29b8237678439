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
)

// FirstNonNull returns a layer where each cell takes its values from the
// first of the given layers that is valid in every band at that cell.
// Cells where none of the layers is valid are masked. All layers must
// share a grid, band names and units.
func FirstNonNull(ctx context.Context, layers ...*Layer) (*Layer, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("raster: FirstNonNull: no layers")
	}
	first := layers[0]
	for i, l := range layers[1:] {
		if err := first.Grid.CheckAligned("FirstNonNull", l.Grid); err != nil {
			return nil, err
		}
		if !sameNames(first.names, l.names) {
			return nil, fmt.Errorf("raster: FirstNonNull: layer %d has bands %v but layer 0 has %v",
				i+1, l.names, first.names)
		}
		if err := CheckUnits(first.Units, l.Units); err != nil {
			return nil, fmt.Errorf("raster: FirstNonNull: layer %d: %v", i+1, err)
		}
	}
	return Map(ctx, first.Grid, first.Units, first.names, func(i int, out []float64) {
		for _, l := range layers {
			if l.Valid(i) {
				for b, band := range l.bands {
					out[b] = band.Elements[i]
				}
				return
			}
		}
	})
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
