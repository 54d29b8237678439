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

package landcover

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spatialmodel/biomosaic/raster"
)

// legend is every code except SnowIce, in order.
var legend = []int{0, 10, 11, 12, 20, 30, 40, 50, 60, 61, 62, 70, 71, 72, 80, 81, 82, 90, 100,
	110, 120, 121, 122, 130, 140, 150, 151, 152, 153, 160, 170, 180, 190, 200, 201, 202, 210}

func remap(f func(Class) int) []int {
	o := make([]int, len(legend))
	for i, code := range legend {
		c, err := Parse(code)
		if err != nil {
			panic(err)
		}
		o[i] = f(c)
	}
	return o
}

func TestClassesComplete(t *testing.T) {
	var codes []int
	for _, c := range Classes() {
		codes = append(codes, int(c))
	}
	want := append(append([]int{}, legend...), 220)
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Errorf("classes (-want +got):\n%s", diff)
	}
}

func TestWoodySource(t *testing.T) {
	want := []int{1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 1, 2, 2, 1, 2, 2, 1, 2, 1,
		1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 1, 1, 1, 1, 1}
	have := remap(func(c Class) int { return int(c.WoodySource()) })
	if diff := cmp.Diff(want, have); diff != "" {
		t.Errorf("woody source (-want +got):\n%s", diff)
	}
}

func TestHerbType(t *testing.T) {
	want := []int{2, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
		2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	have := remap(func(c Class) int { return int(c.HerbType()) })
	if diff := cmp.Diff(want, have); diff != "" {
		t.Errorf("herb type (-want +got):\n%s", diff)
	}
}

func TestPhylogeny(t *testing.T) {
	want := []int{1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 0, 0, 0, 0, 0, 0, 1, 1,
		1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	have := remap(func(c Class) int { return int(c.Phylogeny()) })
	if diff := cmp.Diff(want, have); diff != "" {
		t.Errorf("phylogeny (-want +got):\n%s", diff)
	}
}

func TestTundraTier(t *testing.T) {
	var sparse []int
	for _, c := range Classes() {
		if c.TundraTier() == Sparse {
			sparse = append(sparse, int(c))
		}
	}
	want := []int{120, 121, 122, 130, 140, 150, 151, 152, 153, 200, 201, 202}
	if diff := cmp.Diff(want, sparse); diff != "" {
		t.Errorf("sparse classes (-want +got):\n%s", diff)
	}
}

func TestDisposition(t *testing.T) {
	for c, want := range map[Class]Disposition{
		SnowIce:            Ice,
		Water:              Excluded,
		NoData:             Excluded,
		Bare:               BareGround,
		BareUnconsolidated: BareGround,
		Grassland:          Vegetated,
		TreeMixed:          Vegetated,
	} {
		if d := c.Disposition(); d != want {
			t.Errorf("%v: disposition %d, want %d", c, d, want)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	for _, code := range []int{1, 55, 203, 230, -5} {
		if _, err := Parse(code); err == nil {
			t.Errorf("code %d should be unknown", code)
		}
	}
}

func TestDecode(t *testing.T) {
	g, err := raster.NewGrid("lc", 3, 1, 1, 1, 0, 0, "+proj=longlat")
	if err != nil {
		t.Fatal(err)
	}
	r := &raster.Classes{Grid: g, Codes: []int{10, raster.NoClass, 220}}
	if err := Decode(r); err != nil {
		t.Error(err)
	}
	r.Codes[1] = 15
	if err := Decode(r); err == nil {
		t.Error("unknown code should fail")
	}
}

func TestMask(t *testing.T) {
	g, err := raster.NewGrid("lc", 4, 1, 1, 1, 0, 0, "+proj=longlat")
	if err != nil {
		t.Fatal(err)
	}
	r := &raster.Classes{Grid: g, Codes: []int{130, 50, raster.NoClass, 152}}
	m, err := Mask(context.Background(), r, func(c Class) bool { return c.TundraTier() == Sparse })
	if err != nil {
		t.Fatal(err)
	}
	have := []bool{m.At(0), m.At(1), m.At(2), m.At(3)}
	if diff := cmp.Diff([]bool{true, false, false, true}, have); diff != "" {
		t.Errorf("mask (-want +got):\n%s", diff)
	}
	if At(r, 2) != NoData {
		t.Error("cell without class should be NoData")
	}
}
