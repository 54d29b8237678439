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

	"github.com/ctessum/cdf"
)

// FillValue is the value written to netCDF files for masked cells.
const FillValue = -9999.0

// defaultProj is assumed for files that do not specify a projection.
const defaultProj = "+proj=longlat"

// WriteCOARDS writes l to w as a COARDS-style NetCDF file with one
// [y, x] float variable per band, or [lat, lon] for geographic grids.
// Cell center coordinates are written as coordinate variables and the
// spatial reference is written as the global "proj4" attribute.
// Masked cells are written as FillValue.
func WriteCOARDS(w cdf.ReaderWriterAt, l *Layer) error {
	g := l.Grid
	xName, yName := "x", "y"
	if g.Geographic() {
		xName, yName = "lon", "lat"
	}
	h := cdf.NewHeader([]string{yName, xName}, []int{g.Ny, g.Nx})
	h.AddAttribute("", "Conventions", "COARDS")
	h.AddAttribute("", "proj4", projOrDefault(g))
	h.AddAttribute("", "dx", []float64{g.Dx})
	h.AddAttribute("", "dy", []float64{g.Dy})

	h.AddVariable(xName, []string{xName}, []float64{0})
	h.AddVariable(yName, []string{yName}, []float64{0})
	for _, b := range l.names {
		h.AddVariable(b, []string{yName, xName}, []float32{0})
		h.AddAttribute(b, "_FillValue", []float32{FillValue})
		if l.Units != "" {
			h.AddAttribute(b, "units", l.Units)
		}
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("raster: creating netcdf file: %v", err)
	}

	xs := make([]float64, g.Nx)
	for i := range xs {
		xs[i] = g.X0 + (float64(i)+0.5)*g.Dx
	}
	ys := make([]float64, g.Ny)
	for i := range ys {
		ys[i] = g.Y0 + (float64(i)+0.5)*g.Dy
	}
	if err := writeVar(f, xName, xs); err != nil {
		return err
	}
	if err := writeVar(f, yName, ys); err != nil {
		return err
	}
	for b, name := range l.names {
		data32 := make([]float32, g.Len())
		for i, v := range l.bands[b].Elements {
			if math.IsNaN(v) {
				data32[i] = FillValue
			} else {
				data32[i] = float32(v)
			}
		}
		if err := writeVar(f, name, data32); err != nil {
			return err
		}
	}
	return nil
}

func projOrDefault(g *Grid) string {
	if g.Proj == "" {
		return defaultProj
	}
	return g.Proj
}

func writeVar(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("raster: writing netcdf variable %s: %v", name, err)
	}
	return nil
}

// ReadCOARDS reads a COARDS-compliant NetCDF file (NetCDF 4 and greater
// not supported). All floating point variables with the same two
// dimensions as the first such variable become bands, in file order.
// The grid is derived from the coordinate variables of those dimensions.
// Rows are reordered to run from south to north if necessary.
func ReadCOARDS(r cdf.ReaderWriterAt, name string) (*Layer, error) {
	nc, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("raster: opening netcdf %s: %v", name, err)
	}
	var dims []string
	var bandNames []string
	var bands [][]float64
	for _, v := range nc.Header.Variables() {
		vd := nc.Header.Dimensions(v)
		if len(vd) != 2 {
			continue
		}
		if dims != nil && (vd[0] != dims[0] || vd[1] != dims[1]) {
			continue
		}
		data, err := readCOARDSVar(nc, v)
		if err != nil {
			return nil, fmt.Errorf("raster: reading %s from %s: %v", v, name, err)
		}
		if data == nil {
			continue // not floating point
		}
		dims = vd
		bandNames = append(bandNames, v)
		bands = append(bands, data)
	}
	if dims == nil {
		return nil, fmt.Errorf("raster: netcdf %s has no two-dimensional floating point variables", name)
	}
	ys, err := readCOARDSVar(nc, dims[0])
	if err != nil || ys == nil {
		return nil, fmt.Errorf("raster: reading coordinate variable %s from %s: %v", dims[0], name, err)
	}
	xs, err := readCOARDSVar(nc, dims[1])
	if err != nil || xs == nil {
		return nil, fmt.Errorf("raster: reading coordinate variable %s from %s: %v", dims[1], name, err)
	}
	dx, err := spacing(xs, globalFloat(nc, "dx"))
	if err != nil {
		return nil, fmt.Errorf("raster: %s: %s: %v", name, dims[1], err)
	}
	dy, err := spacing(ys, globalFloat(nc, "dy"))
	if err != nil {
		return nil, fmt.Errorf("raster: %s: %s: %v", name, dims[0], err)
	}
	nx, ny := len(xs), len(ys)
	flip := len(ys) > 1 && ys[1] < ys[0]
	if flip {
		for _, b := range bands {
			flipRows(b, nx, ny)
		}
	}
	srDef := defaultProj
	if p := attrString(nc, "", "proj4"); p != "" {
		srDef = p
	}
	x0 := math.Min(xs[0], xs[nx-1]) - dx/2
	y0 := math.Min(ys[0], ys[ny-1]) - dy/2
	g, err := NewGrid(name, nx, ny, dx, dy, x0, y0, srDef)
	if err != nil {
		return nil, err
	}
	return FromArrays(g, attrString(nc, bandNames[0], "units"), bandNames, bands...)
}

// spacing returns the absolute grid spacing from a set of cell center
// coordinates, which must be evenly spaced.
func spacing(c []float64, fallback float64) (float64, error) {
	if len(c) < 2 {
		if fallback > 0 {
			return fallback, nil
		}
		return 0, fmt.Errorf("cannot determine grid spacing from a single coordinate")
	}
	d := math.Abs(c[1] - c[0])
	for i := 2; i < len(c); i++ {
		if math.Abs(math.Abs(c[i]-c[i-1])-d) > 1.e-4*d {
			return 0, fmt.Errorf("coordinates are not evenly spaced")
		}
	}
	return d, nil
}

func attrString(nc *cdf.File, v, name string) string {
	switch a := nc.Header.GetAttribute(v, name).(type) {
	case string:
		return a
	case []byte:
		return string(a)
	}
	return ""
}

func globalFloat(nc *cdf.File, name string) float64 {
	switch v := nc.Header.GetAttribute("", name).(type) {
	case []float64:
		if len(v) > 0 {
			return v[0]
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0])
		}
	}
	return 0
}

func flipRows(d []float64, nx, ny int) {
	for r := 0; r < ny/2; r++ {
		a := d[r*nx : (r+1)*nx]
		b := d[(ny-1-r)*nx : (ny-r)*nx]
		for i := range a {
			a[i], b[i] = b[i], a[i]
		}
	}
}

// readCOARDSVar reads a floating point variable from a COARDS file,
// converting fill values to NaN.
// It will return nil if the variable is not floating point.
func readCOARDSVar(nc *cdf.File, v string) ([]float64, error) {
	r := nc.Reader(v, nil, nil)
	dataI := r.Zero(-1)
	switch dataI.(type) {
	case []float32, []float64:
	default:
		return nil, nil
	}
	if _, err := r.Read(dataI); err != nil {
		return nil, err
	}
	var data []float64
	switch d := dataI.(type) {
	case []float64:
		data = d
	case []float32:
		data = make([]float64, len(d))
		for i, v := range d {
			data[i] = float64(v)
		}
	}

	noDataI := nc.Header.GetAttribute(v, "_FillValue")
	if noDataI != nil {
		var noData float64
		switch nd := noDataI.(type) {
		case []float32:
			noData = float64(nd[0])
		case []float64:
			noData = nd[0]
		default:
			return nil, fmt.Errorf("invalid type for COARDS FillValue: %T", noDataI)
		}
		for i, d := range data {
			if d == noData {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}
