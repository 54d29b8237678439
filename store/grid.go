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

// Package store loads input layers from local files or blob storage and
// exports finished layers on the global export grid.
package store

import (
	"fmt"
	"math"

	"github.com/spatialmodel/biomosaic/raster"
)

// DefaultScale is the nominal pixel size in meters of the export grid.
const DefaultScale = 309.2208077591178

// Bounds of the export grid, in degrees.
const (
	West  = -180.
	East  = 180.
	North = 84.
	South = -61.
)

const exportProj = "+proj=longlat"

// GridSpec specifies a geographic grid with square pixels.
type GridSpec struct {
	Name            string
	PixelsPerDegree int

	West, East, South, North float64
}

// GlobalGridSpec returns the specification of the global export grid
// with pixels of approximately scale meters at the equator.
func GlobalGridSpec(scale float64) (GridSpec, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return GridSpec{}, fmt.Errorf("store: export scale is %g but should be >0", scale)
	}
	metersPerDegree := 2 * math.Pi * raster.EarthRadius / 360
	ppd := int(math.Round(metersPerDegree / scale))
	if ppd < 1 {
		return GridSpec{}, fmt.Errorf("store: export scale %g m is coarser than one degree", scale)
	}
	return GridSpec{
		Name:            fmt.Sprintf("global_%d", ppd),
		PixelsPerDegree: ppd,
		West:            West,
		East:            East,
		South:           South,
		North:           North,
	}, nil
}

// Grid returns the grid that s specifies.
func (s GridSpec) Grid() (*raster.Grid, error) {
	if s.PixelsPerDegree < 1 {
		return nil, fmt.Errorf("store: grid %s has %d pixels per degree", s.Name, s.PixelsPerDegree)
	}
	if !(s.East > s.West) || !(s.North > s.South) {
		return nil, fmt.Errorf("store: grid %s has invalid bounds W %g E %g S %g N %g",
			s.Name, s.West, s.East, s.South, s.North)
	}
	ppd := float64(s.PixelsPerDegree)
	d := 1 / ppd
	nx := int(math.Round((s.East - s.West) * ppd))
	ny := int(math.Round((s.North - s.South) * ppd))
	return raster.NewGrid(s.Name, nx, ny, d, d, s.West, s.South, exportProj)
}
