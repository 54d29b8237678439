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
	"fmt"

	"github.com/spatialmodel/biomosaic/errprop"
	"github.com/spatialmodel/biomosaic/raster"
)

// grassClasses maps Köppen-Geiger codes 1 through 32 to the four
// climate classes of the grassland root-to-shoot model.
var grassClasses = [32]int{
	1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	2, 3, 3, 4, 4, 3, 3, 3, 3, 3, 3, 4, 4, 4, 4, 1,
}

var grassRatios = [4]errprop.Value{
	{Mean: 1.887, SD: 0.304},
	{Mean: 4.224, SD: 0.518},
	{Mean: 4.504, SD: 1.337},
	{Mean: 4.804, SD: 1.188},
}

// GrassRootShoot returns the grassland root-to-shoot ratio for a
// Köppen-Geiger class (Mokany et al., 2006).
func GrassRootShoot(koppen int) (errprop.Value, error) {
	if koppen < 1 || koppen > len(grassClasses) {
		return errprop.Masked, fmt.Errorf("carbon: unknown Köppen-Geiger code %d", koppen)
	}
	return grassRatios[grassClasses[koppen-1]-1], nil
}

// Tundra root-to-shoot model coefficients (Wang et al., 2016).
var (
	tundraSlope     = errprop.Value{Mean: -0.042, SD: 0.021}
	tundraIntercept = errprop.Value{Mean: 1.01, SD: 0.21}
)

// TundraRootShoot returns the tundra root-to-shoot ratio
// exp(slope·MAT + intercept) for mean annual temperature mat in °C.
// The uncertainty includes that of the model coefficients.
func TundraRootShoot(mat errprop.Value) errprop.Value {
	return errprop.Exp(errprop.Add(errprop.Mul(tundraSlope, mat), tundraIntercept))
}

// GrassRootShootLayer returns a ratio layer from a Köppen-Geiger class raster.
func GrassRootShootLayer(ctx context.Context, koppen *raster.Classes) (*raster.Layer, error) {
	if err := checkKoppen(koppen, func(code int) error { _, err := GrassRootShoot(code); return err }); err != nil {
		return nil, err
	}
	return raster.MapPairs(ctx, koppen.Grid, "1", func(i int) errprop.Value {
		if koppen.Codes[i] == raster.NoClass {
			return errprop.Masked
		}
		v, _ := GrassRootShoot(koppen.Codes[i])
		return v
	})
}

// TundraRootShootLayer returns a ratio layer from a mean annual
// temperature layer.
func TundraRootShootLayer(ctx context.Context, mat *raster.Layer) (*raster.Layer, error) {
	return raster.MapPairs(ctx, mat.Grid, "1", func(i int) errprop.Value {
		return TundraRootShoot(mat.Pair(i))
	})
}

// Belowground returns belowground biomass agb·rs, where rs is a
// root-to-shoot ratio layer.
func Belowground(ctx context.Context, agb, rs *raster.Layer) (*raster.Layer, error) {
	if err := agb.Grid.CheckAligned("belowground biomass", rs.Grid); err != nil {
		return nil, fmt.Errorf("carbon: %v", err)
	}
	return raster.MapPairs(ctx, agb.Grid, agb.Units, func(i int) errprop.Value {
		return errprop.Mul(agb.Pair(i), rs.Pair(i))
	})
}

// Total returns the sum of aboveground and belowground biomass.
func Total(ctx context.Context, agb, bgb *raster.Layer) (*raster.Layer, error) {
	if err := agb.Grid.CheckAligned("total biomass", bgb.Grid); err != nil {
		return nil, fmt.Errorf("carbon: %v", err)
	}
	if err := raster.CheckUnits(agb.Units, bgb.Units); err != nil {
		return nil, fmt.Errorf("carbon: total biomass: %v", err)
	}
	return raster.MapPairs(ctx, agb.Grid, agb.Units, func(i int) errprop.Value {
		return errprop.Sum(agb.Pair(i), bgb.Pair(i))
	})
}
