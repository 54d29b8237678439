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

package aggregate

import (
	"context"
	"math"
	"testing"

	"github.com/spatialmodel/biomosaic/raster"
	"gonum.org/v1/gonum/floats/scalar"
)

func different(a, b, tolerance float64) bool {
	return !scalar.EqualWithinAbsOrRel(a, b, tolerance, tolerance)
}

func grid(t *testing.T, nx, ny int, d, x0, y0 float64) *raster.Grid {
	g, err := raster.NewGrid("test", nx, ny, d, d, x0, y0, "+proj=longlat")
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func fill(n int, v float64) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = v
	}
	return o
}

func pair(t *testing.T, g *raster.Grid, est, unc []float64) *raster.Layer {
	l, err := raster.FromArrays(g, "Mg ha-1", []string{raster.Estimate, raster.Uncertainty}, est, unc)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// A 3×3 block of pixels with estimates 1..9 and uniform uncertainty 2
// aggregates to 5 ± 2.
func TestNineToOne(t *testing.T) {
	src := grid(t, 3, 3, 1, 0, -1.5)
	l := pair(t, src, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, fill(9, 2))
	target := grid(t, 1, 1, 3, 0, -1.5)

	o, err := Aggregate(context.Background(), l, target, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if e := o.At(0, 0); different(e, 5, 1e-12) {
		t.Errorf("estimate = %g, want 5", e)
	}
	if u := o.At(1, 0); different(u, 2, 1e-12) {
		t.Errorf("uncertainty = %g, want 2", u)
	}
	if err := o.Validate(); err != nil {
		t.Error(err)
	}
}

func TestHomogeneousError(t *testing.T) {
	src := grid(t, 8, 8, 0.25, 10, 40)
	est := make([]float64, 64)
	for i := range est {
		est[i] = float64(i % 7)
	}
	l := pair(t, src, est, fill(64, 3.5))
	target := grid(t, 2, 2, 1, 10, 40)
	o, err := Aggregate(context.Background(), l, target, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < target.Len(); i++ {
		if u := o.At(1, i); different(u, 3.5, 1e-12) {
			t.Errorf("cell %d: uncertainty = %g, want 3.5", i, u)
		}
	}
}

func TestMaskedPixelsExcluded(t *testing.T) {
	nan := math.NaN()
	src := grid(t, 4, 2, 1, 0, -1)
	l := pair(t, src,
		[]float64{1, nan, nan, nan, 3, nan, nan, nan},
		[]float64{1, nan, nan, nan, 1, nan, nan, nan})
	target := grid(t, 2, 1, 2, 0, -1)
	o, err := Aggregate(context.Background(), l, target, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if e := o.At(0, 0); different(e, 2, 1e-12) {
		t.Errorf("estimate = %g, want 2: masked pixels should not count as zero", e)
	}
	if o.Valid(1) {
		t.Errorf("cell with no valid pixels should be masked, got %g", o.At(0, 1))
	}
	if err := o.Validate(); err != nil {
		t.Error(err)
	}
}

func TestUncertaintyAlwaysAggregated(t *testing.T) {
	src := grid(t, 2, 2, 1, 0, -1)
	l := pair(t, src, []float64{1, 2, 3, 4}, []float64{0, 0, 0, 4})
	target := grid(t, 1, 1, 2, 0, -1)
	o, err := Aggregate(context.Background(), l, target, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !o.HasBand(raster.Uncertainty) {
		t.Fatal("uncertainty band dropped")
	}
	// Zero-error pixels are included in the quadrature mean.
	if u := o.At(1, 0); different(u, 2, 1e-12) {
		t.Errorf("uncertainty = %g, want 2", u)
	}

	e, err := l.Select(raster.Estimate)
	if err != nil {
		t.Fatal(err)
	}
	o, err = Aggregate(context.Background(), e, target, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if o.NumBands() != 1 || different(o.At(0, 0), 2.5, 1e-12) {
		t.Errorf("estimate-only layer: bands %v value %g", o.Bands(), o.At(0, 0))
	}
}

func TestUpsampling(t *testing.T) {
	src := grid(t, 2, 2, 1, 0, 0)
	l := pair(t, src, []float64{1, 2, 3, 4}, fill(4, 1))
	target := grid(t, 4, 4, 0.5, 0, 0)
	if !Upsampling(src, target) {
		t.Fatal("finer target should be upsampling")
	}
	if _, err := Aggregate(context.Background(), l, target, Options{}); err == nil {
		t.Error("upsampling without interpolation should fail")
	}
	o, err := Aggregate(context.Background(), l, target, Options{Interpolation: raster.Nearest})
	if err != nil {
		t.Fatal(err)
	}
	if v := o.At(0, target.Index(3, 3)); v != 4 {
		t.Errorf("nearest value = %g, want 4", v)
	}
}

func TestCheck(t *testing.T) {
	src := grid(t, 2, 2, 1, 0, 0)
	far := grid(t, 2, 2, 1, 100, 50)
	if err := Check(src, far); err == nil {
		t.Error("non-overlapping grids should fail")
	}
	if err := Check(src, nil); err == nil {
		t.Error("missing grid should fail")
	}
	bad := *src
	bad.Dx = 0
	if err := Check(src, &bad); err == nil {
		t.Error("zero spacing should fail")
	}
	noSR := *src
	noSR.SR = nil
	if err := Check(&noSR, src); err == nil {
		t.Error("missing spatial reference should fail")
	}
}

func TestCrossProjection(t *testing.T) {
	src := grid(t, 20, 20, 0.1, 0, 0)
	l := pair(t, src, fill(400, 7), fill(400, 2))
	target, err := raster.NewGrid("merc", 4, 4, 45000, 45000, 20000, 20000,
		"+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +ellps=WGS84 +units=m +no_defs")
	if err != nil {
		t.Fatal(err)
	}
	o, err := Aggregate(context.Background(), l, target, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < target.Len(); i++ {
		if !o.Valid(i) {
			t.Errorf("cell %d is masked", i)
			continue
		}
		if different(o.At(0, i), 7, 1e-9) || different(o.At(1, i), 2, 1e-9) {
			t.Errorf("cell %d: %g±%g, want 7±2", i, o.At(0, i), o.At(1, i))
		}
	}
}

func TestClasses(t *testing.T) {
	src := grid(t, 2, 1, 1, 0, 0)
	c := &raster.Classes{Grid: src, Codes: []int{10, 220}}
	target := grid(t, 4, 1, 0.5, 0, 0)
	o, err := Classes(context.Background(), c, target)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{10, 10, 220, 220}
	for i, w := range want {
		if o.Codes[i] != w {
			t.Errorf("code %d = %d, want %d", i, o.Codes[i], w)
		}
	}
}
