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

package carbon

import (
	"context"
	"math"
	"testing"

	"github.com/spatialmodel/biomosaic/errprop"
	"github.com/spatialmodel/biomosaic/landcover"
	"github.com/spatialmodel/biomosaic/raster"
	"gonum.org/v1/gonum/floats/scalar"
)

func different(a, b, tolerance float64) bool {
	return !scalar.EqualWithinAbsOrRel(a, b, tolerance, tolerance)
}

func TestZone(t *testing.T) {
	for koppen, want := range map[int]ClimateZone{
		1: Tropical, 4: Tropical, 5: Arid, 6: Temperate, 20: Boreal, 32: Polar,
	} {
		z, err := Zone(koppen)
		if err != nil {
			t.Fatal(err)
		}
		if z != want {
			t.Errorf("Zone(%d) = %d, want %d", koppen, z, want)
		}
	}
	for _, bad := range []int{0, 33, -1} {
		if _, err := Zone(bad); err == nil {
			t.Errorf("Zone(%d) should fail", bad)
		}
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		zone ClimateZone
		p    landcover.Phylogeny
		want errprop.Value
	}{
		{Tropical, landcover.Gymnosperm, errprop.Value{Mean: 0.450, SD: 0.00762}},
		{Temperate, landcover.Mixed, errprop.Value{Mean: 0.483, SD: 0.00590}},
		{Boreal, landcover.Angiosperm, errprop.Value{Mean: 0.488, SD: 0.0129}},
		{Polar, landcover.Angiosperm, errprop.Value{Mean: 0.471, SD: 0.0113}},
	}
	for _, test := range tests {
		f, err := Fraction(test.zone, test.p)
		if err != nil {
			t.Fatal(err)
		}
		if f != test.want {
			t.Errorf("Fraction(%d, %d) = %+v, want %+v", test.zone, test.p, f, test.want)
		}
	}
	if _, err := Fraction(6, landcover.Mixed); err == nil {
		t.Error("unknown zone should fail")
	}
}

func TestCarbonUnits(t *testing.T) {
	for in, want := range map[string]string{
		"Mg ha-1":   "Mg C ha-1",
		"Mg C ha-1": "Mg C ha-1",
		"kg":        "kg C",
		"":          "",
	} {
		if have := CarbonUnits(in); have != want {
			t.Errorf("CarbonUnits(%q) = %q, want %q", in, have, want)
		}
	}
}

func testGrid(t *testing.T, n int) *raster.Grid {
	g, err := raster.NewGrid("c", n, 1, 1, 1, 0, 0, "+proj=longlat")
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestConvert(t *testing.T) {
	g := testGrid(t, 3)
	bio, err := raster.FromArrays(g, "Mg ha-1", []string{raster.Estimate, raster.Uncertainty},
		[]float64{100, 50, 10}, []float64{10, 5, 1})
	if err != nil {
		t.Fatal(err)
	}
	lc := &raster.Classes{Grid: g, Codes: []int{50, 70, raster.NoClass}}
	koppen := &raster.Classes{Grid: g, Codes: []int{1, 26, 1}}
	c, err := Convert(context.Background(), bio, lc, koppen)
	if err != nil {
		t.Fatal(err)
	}
	if c.Units != "Mg C ha-1" {
		t.Errorf("units = %q", c.Units)
	}
	// Tropical angiosperm: 100±10 × 0.454±0.00328.
	want := errprop.Mul(errprop.Value{Mean: 100, SD: 10}, errprop.Value{Mean: 0.454, SD: 0.00328})
	if p := c.Pair(0); different(p.Mean, want.Mean, 1e-12) || different(p.SD, want.SD, 1e-12) {
		t.Errorf("pixel 0 = %+v, want %+v", p, want)
	}
	// Temperate gymnosperm.
	if p := c.Pair(1); different(p.Mean, 50*0.489, 1e-12) {
		t.Errorf("pixel 1 = %+v", p)
	}
	if c.Valid(2) {
		t.Error("pixel without land cover should be masked")
	}
	if err := c.Validate(); err != nil {
		t.Error(err)
	}

	koppen.Codes[0] = 40
	if _, err := Convert(context.Background(), bio, lc, koppen); err == nil {
		t.Error("unknown Köppen code should fail")
	}
}

func TestGrassRootShoot(t *testing.T) {
	for koppen, want := range map[int]float64{1: 1.887, 5: 4.224, 18: 4.504, 20: 4.804, 32: 1.887} {
		rs, err := GrassRootShoot(koppen)
		if err != nil {
			t.Fatal(err)
		}
		if rs.Mean != want {
			t.Errorf("GrassRootShoot(%d) = %g, want %g", koppen, rs.Mean, want)
		}
	}
	if _, err := GrassRootShoot(0); err == nil {
		t.Error("unknown code should fail")
	}
}

func TestTundraRootShoot(t *testing.T) {
	rs := TundraRootShoot(errprop.Exact(0))
	if different(rs.Mean, math.Exp(1.01), 1e-12) {
		t.Errorf("mean %g, want %g", rs.Mean, math.Exp(1.01))
	}
	// At MAT = 0 only the intercept error contributes.
	if different(rs.SD, math.Exp(1.01)*0.21, 1e-12) {
		t.Errorf("sd %g, want %g", rs.SD, math.Exp(1.01)*0.21)
	}
	cold := TundraRootShoot(errprop.Value{Mean: -10, SD: 1.12})
	if !(cold.Mean > rs.Mean) {
		t.Errorf("colder tundra should allocate more to roots: %g <= %g", cold.Mean, rs.Mean)
	}
	// Temperature, slope and intercept errors add in quadrature.
	wantMean := math.Exp(-0.042*-10 + 1.01)
	wantSD := wantMean * math.Sqrt(math.Pow(10*0.021, 2)+math.Pow(0.042*1.12, 2)+math.Pow(0.21, 2))
	if different(cold.Mean, wantMean, 1e-12) || different(cold.SD, wantSD, 1e-12) {
		t.Errorf("cold = %g±%g, want %g±%g", cold.Mean, cold.SD, wantMean, wantSD)
	}
}

func TestBelowgroundTotal(t *testing.T) {
	ctx := context.Background()
	g := testGrid(t, 2)
	agb, err := raster.FromArrays(g, "Mg ha-1", []string{raster.Estimate, raster.Uncertainty},
		[]float64{2, math.NaN()}, []float64{0.2, math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	koppen := &raster.Classes{Grid: g, Codes: []int{5, 5}}
	rs, err := GrassRootShootLayer(ctx, koppen)
	if err != nil {
		t.Fatal(err)
	}
	bgb, err := Belowground(ctx, agb, rs)
	if err != nil {
		t.Fatal(err)
	}
	if different(bgb.At(0, 0), 2*4.224, 1e-12) {
		t.Errorf("bgb = %g", bgb.At(0, 0))
	}
	if bgb.Valid(1) {
		t.Error("masked agb should give masked bgb")
	}
	total, err := Total(ctx, agb, bgb)
	if err != nil {
		t.Fatal(err)
	}
	want := errprop.Add(agb.Pair(0), bgb.Pair(0))
	if p := total.Pair(0); different(p.Mean, want.Mean, 1e-12) || different(p.SD, want.SD, 1e-12) {
		t.Errorf("total = %+v, want %+v", p, want)
	}
	if err := total.Validate(); err != nil {
		t.Error(err)
	}
}
