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

package voidfill

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

var nan = math.NaN()

// row returns a one-row layer on a grid of 1 km cells.
func row(t *testing.T, est []float64) *raster.Layer {
	g, err := raster.NewGrid("row", len(est), 1, 1000, 1000, 0, 0,
		"+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +ellps=WGS84 +units=m +no_defs")
	if err != nil {
		t.Fatal(err)
	}
	unc := make([]float64, len(est))
	for i, v := range est {
		unc[i] = v / 10
	}
	l, err := raster.FromArrays(g, "Mg ha-1", []string{raster.Estimate, raster.Uncertainty},
		append([]float64{}, est...), unc)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestStrictlyBetween(t *testing.T) {
	l := row(t, []float64{1, nan, nan, nan, nan, nan, 7})
	o, err := Fill(context.Background(), l, 10000)
	if err != nil {
		t.Fatal(err)
	}
	prev := 1.
	for i := 1; i < 6; i++ {
		v := o.At(0, i)
		if !(v > 1 && v < 7) {
			t.Errorf("pixel %d = %g, should be strictly between 1 and 7", i, v)
		}
		if v <= prev {
			t.Errorf("pixel %d = %g is not greater than its western neighbor %g", i, v, prev)
		}
		prev = v
	}
	if v := o.At(0, 3); different(v, 4, 1e-9) {
		t.Errorf("midpoint = %g, want 4", v)
	}
	if err := o.Validate(); err != nil {
		t.Error(err)
	}
}

func TestBounded(t *testing.T) {
	l := row(t, []float64{3, nan, nan, nan, nan, nan})
	o, err := Fill(context.Background(), l, 2500)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 2; i++ {
		if different(o.At(0, i), 3, 1e-9) || different(o.At(1, i), 0.3, 1e-9) {
			t.Errorf("pixel %d = %g±%g, want 3±0.3", i, o.At(0, i), o.At(1, i))
		}
	}
	for i := 3; i < 6; i++ {
		if o.Valid(i) {
			t.Errorf("pixel %d is %g m from valid data but was filled", i, float64(i)*1000)
		}
	}
	if err := o.Validate(); err != nil {
		t.Error(err)
	}
}

func TestValidUnchanged(t *testing.T) {
	in := []float64{0.123456789, nan, 2.5, 1e-300, nan}
	l := row(t, in)
	o, err := Fill(context.Background(), l, 5000)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range in {
		if !math.IsNaN(v) && o.At(0, i) != v {
			t.Errorf("valid pixel %d changed from %g to %g", i, v, o.At(0, i))
		}
	}
	if !l.Valid(0) || l.Valid(1) {
		t.Error("input layer was modified")
	}
}

func TestPathsStopAtValidPixels(t *testing.T) {
	l := row(t, []float64{nan, 1, nan, 9, nan})
	o, err := Fill(context.Background(), l, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if v := o.At(0, 0); different(v, 1, 1e-9) {
		t.Errorf("edge pixel = %g, want 1: paths must not pass through valid pixels", v)
	}
	if v := o.At(0, 2); different(v, 5, 1e-9) {
		t.Errorf("middle pixel = %g, want 5", v)
	}
	if v := o.At(0, 4); different(v, 9, 1e-9) {
		t.Errorf("edge pixel = %g, want 9", v)
	}
}

func TestTwoDimensions(t *testing.T) {
	g, err := raster.NewGrid("sq", 5, 5, 0.01, 0.01, 10, 45, "+proj=longlat")
	if err != nil {
		t.Fatal(err)
	}
	est := make([]float64, 25)
	for i := range est {
		est[i] = nan
	}
	est[g.Index(0, 0)] = 2
	est[g.Index(4, 4)] = 6
	l, err := raster.FromArrays(g, "Mg ha-1", []string{raster.Estimate}, est)
	if err != nil {
		t.Fatal(err)
	}
	o, err := Fill(context.Background(), l, 10000)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < g.Len(); i++ {
		v := o.At(0, i)
		if v < 2 || v > 6 {
			t.Errorf("pixel %d = %g is outside of the source range", i, v)
		}
	}
}

func TestDistanceError(t *testing.T) {
	l := row(t, []float64{1, nan})
	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := Fill(context.Background(), l, d); err == nil {
			t.Errorf("distance %g should be an error", d)
		}
	}
}

func TestCostRecovery(t *testing.T) {
	l := row(t, []float64{4.2, nan, nan})
	src := &label{node: 0, source: 0, cost2: make([]float64, 2)}
	a := extend(l, src, 1, 1000)
	b := extend(l, a, 2, 1000)
	for _, p := range []*label{a, b} {
		if v := p.value(0); different(v, 4.2, 1e-9) {
			t.Errorf("recovered %g, want 4.2", v)
		}
		if v := p.value(1); different(v, 0.42, 1e-9) {
			t.Errorf("recovered uncertainty %g, want 0.42", v)
		}
	}
	if b.length != 2000 {
		t.Errorf("path length %g, want 2000", b.length)
	}
}
