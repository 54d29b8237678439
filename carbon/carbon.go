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

// Package carbon converts biomass density to biomass carbon density
// using carbon fractions stratified by climate zone and tree phylogeny,
// and estimates belowground biomass from aboveground biomass with
// root-to-shoot ratios.
package carbon

import (
	"context"
	"fmt"
	"strings"

	"github.com/spatialmodel/biomosaic/errprop"
	"github.com/spatialmodel/biomosaic/landcover"
	"github.com/spatialmodel/biomosaic/raster"
)

// ClimateZone is an aggregated Köppen-Geiger climate zone.
type ClimateZone int

// Climate zones.
const (
	Tropical ClimateZone = iota + 1
	Arid
	Temperate
	Boreal
	Polar
)

// koppenZones maps Köppen-Geiger codes 1 through 32 to climate zones.
var koppenZones = [32]ClimateZone{
	1, 1, 1, 1, 2, 3, 2, 3, 2, 3, 3, 2, 3, 3, 2, 2,
	3, 3, 3, 4, 4, 3, 3, 4, 4, 3, 3, 4, 4, 4, 4, 5,
}

// Zone returns the climate zone of a Köppen-Geiger class code.
func Zone(koppen int) (ClimateZone, error) {
	if koppen < 1 || koppen > len(koppenZones) {
		return 0, fmt.Errorf("carbon: unknown Köppen-Geiger code %d", koppen)
	}
	return koppenZones[koppen-1], nil
}

// fractions are biomass carbon fractions by stratum, where the stratum
// is 10·zone + phylogeny.
var fractions = map[int]errprop.Value{
	10: {Mean: 0.450, SD: 0.00762},
	11: {Mean: 0.452, SD: 0.00417},
	12: {Mean: 0.454, SD: 0.00328},
	20: {Mean: 0.484, SD: 0.00921},
	21: {Mean: 0.478, SD: 0.00841},
	22: {Mean: 0.465, SD: 0.00648},
	30: {Mean: 0.489, SD: 0.00616},
	31: {Mean: 0.483, SD: 0.00590},
	32: {Mean: 0.472, SD: 0.00485},
	40: {Mean: 0.476, SD: 0.00940},
	41: {Mean: 0.480, SD: 0.0114},
	42: {Mean: 0.488, SD: 0.0129},
	50: {Mean: 0.479, SD: 0.0124},
	51: {Mean: 0.476, SD: 0.0155},
	52: {Mean: 0.471, SD: 0.0113},
}

// Fraction returns the biomass carbon fraction and its uncertainty for
// the given climate zone and phylogeny.
func Fraction(zone ClimateZone, p landcover.Phylogeny) (errprop.Value, error) {
	f, ok := fractions[10*int(zone)+int(p)]
	if !ok {
		return errprop.Masked, fmt.Errorf("carbon: no carbon fraction for climate zone %d and phylogeny %d", zone, p)
	}
	return f, nil
}

// CarbonUnits returns the carbon units corresponding to biomass units,
// e.g. "Mg C ha-1" for "Mg ha-1".
func CarbonUnits(units string) string {
	f := strings.Fields(units)
	if len(f) == 0 {
		return units
	}
	for _, s := range f {
		if s == "C" {
			return units
		}
	}
	return strings.Join(append([]string{f[0], "C"}, f[1:]...), " ")
}

// checkKoppen returns an error if any classified cell of koppen has an
// unknown code.
func checkKoppen(koppen *raster.Classes, zone func(int) error) error {
	for i, code := range koppen.Codes {
		if code == raster.NoClass {
			continue
		}
		if err := zone(code); err != nil {
			row, col := koppen.Grid.RowCol(i)
			return fmt.Errorf("%v at (row %d, col %d) of %s", err, row, col, koppen.Grid.Name)
		}
	}
	return nil
}

// Convert converts a biomass layer to biomass carbon by multiplying it
// by the carbon fraction of each pixel's climate zone and land-cover
// phylogeny. Pixels without a land-cover or climate class are masked.
func Convert(ctx context.Context, biomass *raster.Layer, lc, koppen *raster.Classes) (*raster.Layer, error) {
	if err := biomass.Grid.CheckAligned("carbon conversion", lc.Grid, koppen.Grid); err != nil {
		return nil, fmt.Errorf("carbon: %v", err)
	}
	if err := landcover.Decode(lc); err != nil {
		return nil, fmt.Errorf("carbon: %v", err)
	}
	if err := checkKoppen(koppen, func(code int) error { _, err := Zone(code); return err }); err != nil {
		return nil, err
	}
	return raster.MapPairs(ctx, biomass.Grid, CarbonUnits(biomass.Units), func(i int) errprop.Value {
		if lc.Codes[i] == raster.NoClass || koppen.Codes[i] == raster.NoClass {
			return errprop.Masked
		}
		zone, _ := Zone(koppen.Codes[i])
		f, err := Fraction(zone, landcover.Class(lc.Codes[i]).Phylogeny())
		if err != nil {
			return errprop.Masked
		}
		return errprop.Mul(biomass.Pair(i), f)
	})
}
