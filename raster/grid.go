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
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// EarthRadius is the radius of the spherical earth used for
// distances on geographic grids, in meters.
const EarthRadius = 6371000.0

// Grid specifies a regular rectilinear grid. X0 and Y0 are the
// coordinates of the lower-left corner of the grid, and row 0 is
// the southernmost row.
type Grid struct {
	Name   string
	Nx, Ny int
	Dx, Dy float64
	X0, Y0 float64

	// Proj is the Proj4 or WKT definition of the spatial reference.
	Proj string
	SR   *proj.SR
}

// NewGrid creates a new regular grid, where Nx and Ny are the numbers of
// columns and rows, Dx and Dy are the cell edge lengths and X0 and Y0
// are the coordinates of the lower-left corner, all in the units of the
// spatial reference srDef, which is in Proj4 or WKT format.
func NewGrid(name string, nx, ny int, dx, dy, x0, y0 float64, srDef string) (*Grid, error) {
	sr, err := proj.Parse(srDef)
	if err != nil {
		return nil, fmt.Errorf("raster: parsing spatial reference for grid %s: %v", name, err)
	}
	g := &Grid{
		Name: name,
		Nx:   nx, Ny: ny,
		Dx: dx, Dy: dy,
		X0: x0, Y0: y0,
		Proj: srDef,
		SR:   sr,
	}
	if err := g.check(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grid) check() error {
	if g.Nx <= 0 || g.Ny <= 0 {
		return fmt.Errorf("raster: grid %s has %d×%d cells but should have at least one", g.Name, g.Nx, g.Ny)
	}
	if !(g.Dx > 0) || !(g.Dy > 0) {
		return fmt.Errorf("raster: grid %s: Dx=%g and Dy=%g but both should be >0", g.Name, g.Dx, g.Dy)
	}
	if g.SR == nil {
		return fmt.Errorf("raster: grid %s has no spatial reference", g.Name)
	}
	return nil
}

// Len returns the number of cells in the grid.
func (g *Grid) Len() int { return g.Nx * g.Ny }

// Index returns the flat index of the cell at the given row and column.
func (g *Grid) Index(row, col int) int { return row*g.Nx + col }

// RowCol is the inverse of Index.
func (g *Grid) RowCol(i int) (row, col int) { return i / g.Nx, i % g.Nx }

// CellBounds returns the bounding box of the specified cell.
func (g *Grid) CellBounds(row, col int) *geom.Bounds {
	x := g.X0 + float64(col)*g.Dx
	y := g.Y0 + float64(row)*g.Dy
	return &geom.Bounds{
		Min: geom.Point{X: x, Y: y},
		Max: geom.Point{X: x + g.Dx, Y: y + g.Dy},
	}
}

// CellPolygon returns the outline of the specified cell.
func (g *Grid) CellPolygon(row, col int) geom.Polygon {
	x := g.X0 + float64(col)*g.Dx
	y := g.Y0 + float64(row)*g.Dy
	return geom.Polygon([]geom.Path{{
		{X: x, Y: y}, {X: x + g.Dx, Y: y},
		{X: x + g.Dx, Y: y + g.Dy}, {X: x, Y: y + g.Dy}, {X: x, Y: y}}})
}

// Center returns the center point of the specified cell.
func (g *Grid) Center(row, col int) geom.Point {
	return geom.Point{
		X: g.X0 + (float64(col)+0.5)*g.Dx,
		Y: g.Y0 + (float64(row)+0.5)*g.Dy,
	}
}

// Bounds returns the extent of the grid.
func (g *Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y0},
		Max: geom.Point{X: g.X0 + g.Dx*float64(g.Nx), Y: g.Y0 + g.Dy*float64(g.Ny)},
	}
}

// Cell returns the row and column of the cell containing p. ok is false
// if p is outside of the grid.
func (g *Grid) Cell(p geom.Point) (row, col int, ok bool) {
	col = int(math.Floor((p.X - g.X0) / g.Dx))
	row = int(math.Floor((p.Y - g.Y0) / g.Dy))
	if col < 0 || col >= g.Nx || row < 0 || row >= g.Ny {
		return 0, 0, false
	}
	return row, col, true
}

// Geographic returns whether the grid coordinates are longitude and latitude
// in degrees.
func (g *Grid) Geographic() bool {
	return g.SR != nil && (g.SR.Name == "longlat" || g.SR.Name == "identity")
}

// gridTolerance is the relative tolerance used when comparing grid
// parameters, which are often read from single-precision files.
const gridTolerance = 1.e-6

func near(a, b, scale float64) bool {
	return math.Abs(a-b) <= gridTolerance*math.Max(math.Abs(scale), 1.e-12)
}

// Aligned returns whether g and g2 describe the same cells in the
// same spatial reference.
func (g *Grid) Aligned(g2 *Grid) bool {
	if g == g2 {
		return true
	}
	if g == nil || g2 == nil {
		return false
	}
	if g.Nx != g2.Nx || g.Ny != g2.Ny {
		return false
	}
	if !near(g.Dx, g2.Dx, g.Dx) || !near(g.Dy, g2.Dy, g.Dy) ||
		!near(g.X0, g2.X0, g.Dx) || !near(g.Y0, g2.Y0, g.Dy) {
		return false
	}
	return SameSR(g.SR, g2.SR)
}

// SameSR returns whether two spatial references are equivalent.
func SameSR(a, b *proj.SR) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b, 3)
}

// CheckAligned returns an error if any of the grids is not aligned with g.
func (g *Grid) CheckAligned(what string, grids ...*Grid) error {
	for i, g2 := range grids {
		if !g.Aligned(g2) {
			return fmt.Errorf("raster: %s: grid %d (%s) is not aligned with grid %s: %w",
				what, i, gridName(g2), gridName(g), ErrGridMismatch)
		}
	}
	return nil
}

func gridName(g *Grid) string {
	if g == nil {
		return "<nil>"
	}
	return g.Name
}

// Latitudes returns the latitude in degrees of the center of every
// cell in the grid, indexed by Index.
func (g *Grid) Latitudes() ([]float64, error) {
	lat := make([]float64, g.Len())
	if g.Geographic() {
		for row := 0; row < g.Ny; row++ {
			y := g.Y0 + (float64(row)+0.5)*g.Dy
			for col := 0; col < g.Nx; col++ {
				lat[g.Index(row, col)] = y
			}
		}
		return lat, nil
	}
	ll, err := proj.Parse("+proj=longlat +datum=WGS84")
	if err != nil {
		return nil, err
	}
	t, err := g.SR.NewTransform(ll)
	if err != nil {
		return nil, fmt.Errorf("raster: calculating latitudes for grid %s: %v", g.Name, err)
	}
	for i := range lat {
		c := g.Center(g.RowCol(i))
		_, y, err := t(c.X, c.Y)
		if err != nil {
			return nil, fmt.Errorf("raster: calculating latitudes for grid %s: %v", g.Name, err)
		}
		lat[i] = y
	}
	return lat, nil
}

// CellSizeMeters returns the approximate east-west and north-south edge
// lengths in meters of the cells in the given row.
func (g *Grid) CellSizeMeters(row int) (dx, dy float64) {
	if !g.Geographic() {
		toMeter := g.SR.ToMeter
		if math.IsNaN(toMeter) || toMeter == 0 {
			toMeter = 1
		}
		return g.Dx * toMeter, g.Dy * toMeter
	}
	lat := (g.Y0 + (float64(row)+0.5)*g.Dy) * math.Pi / 180
	const mPerDeg = EarthRadius * math.Pi / 180
	return g.Dx * mPerDeg * math.Cos(lat), g.Dy * mPerDeg
}
