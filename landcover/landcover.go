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

// Package landcover holds the land-cover classification used to decide
// which biomass source applies to each pixel. Codes follow the ESA CCI
// land cover legend.
package landcover

import (
	"context"
	"fmt"

	"github.com/spatialmodel/biomosaic/raster"
)

// Class is a land-cover class.
type Class int

// Land-cover classes.
const (
	NoData                         Class = 0
	CroplandRainfed                Class = 10
	CroplandHerbaceous             Class = 11
	CroplandTreeShrub              Class = 12
	CroplandIrrigated              Class = 20
	MosaicCropland                 Class = 30
	MosaicNaturalVegetation        Class = 40
	TreeBroadleavedEvergreen       Class = 50
	TreeBroadleavedDeciduous       Class = 60
	TreeBroadleavedDeciduousClosed Class = 61
	TreeBroadleavedDeciduousOpen   Class = 62
	TreeNeedleleavedEvergreen      Class = 70
	TreeNeedleleavedEvergreenClose Class = 71
	TreeNeedleleavedEvergreenOpen  Class = 72
	TreeNeedleleavedDeciduous      Class = 80
	TreeNeedleleavedDeciduousClose Class = 81
	TreeNeedleleavedDeciduousOpen  Class = 82
	TreeMixed                      Class = 90
	MosaicTreeShrub                Class = 100
	MosaicHerbaceous               Class = 110
	Shrubland                      Class = 120
	ShrublandEvergreen             Class = 121
	ShrublandDeciduous             Class = 122
	Grassland                      Class = 130
	LichensMosses                  Class = 140
	SparseVegetation               Class = 150
	SparseTree                     Class = 151
	SparseShrub                    Class = 152
	SparseHerbaceous               Class = 153
	TreeFloodedFresh               Class = 160
	TreeFloodedSaline              Class = 170
	ShrubHerbaceousFlooded         Class = 180
	Urban                          Class = 190
	Bare                           Class = 200
	BareConsolidated               Class = 201
	BareUnconsolidated             Class = 202
	Water                          Class = 210
	SnowIce                        Class = 220
)

var classNames = map[Class]string{
	NoData:                         "no data",
	CroplandRainfed:                "cropland, rainfed",
	CroplandHerbaceous:             "cropland, rainfed, herbaceous cover",
	CroplandTreeShrub:              "cropland, rainfed, tree or shrub cover",
	CroplandIrrigated:              "cropland, irrigated",
	MosaicCropland:                 "mosaic cropland / natural vegetation",
	MosaicNaturalVegetation:        "mosaic natural vegetation / cropland",
	TreeBroadleavedEvergreen:       "tree cover, broadleaved, evergreen",
	TreeBroadleavedDeciduous:       "tree cover, broadleaved, deciduous",
	TreeBroadleavedDeciduousClosed: "tree cover, broadleaved, deciduous, closed",
	TreeBroadleavedDeciduousOpen:   "tree cover, broadleaved, deciduous, open",
	TreeNeedleleavedEvergreen:      "tree cover, needleleaved, evergreen",
	TreeNeedleleavedEvergreenClose: "tree cover, needleleaved, evergreen, closed",
	TreeNeedleleavedEvergreenOpen:  "tree cover, needleleaved, evergreen, open",
	TreeNeedleleavedDeciduous:      "tree cover, needleleaved, deciduous",
	TreeNeedleleavedDeciduousClose: "tree cover, needleleaved, deciduous, closed",
	TreeNeedleleavedDeciduousOpen:  "tree cover, needleleaved, deciduous, open",
	TreeMixed:                      "tree cover, mixed leaf type",
	MosaicTreeShrub:                "mosaic tree and shrub / herbaceous cover",
	MosaicHerbaceous:               "mosaic herbaceous cover / tree and shrub",
	Shrubland:                      "shrubland",
	ShrublandEvergreen:             "shrubland, evergreen",
	ShrublandDeciduous:             "shrubland, deciduous",
	Grassland:                      "grassland",
	LichensMosses:                  "lichens and mosses",
	SparseVegetation:               "sparse vegetation",
	SparseTree:                     "sparse tree",
	SparseShrub:                    "sparse shrub",
	SparseHerbaceous:               "sparse herbaceous cover",
	TreeFloodedFresh:               "tree cover, flooded, fresh or brackish water",
	TreeFloodedSaline:              "tree cover, flooded, saline water",
	ShrubHerbaceousFlooded:         "shrub or herbaceous cover, flooded",
	Urban:                          "urban areas",
	Bare:                           "bare areas",
	BareConsolidated:               "consolidated bare areas",
	BareUnconsolidated:             "unconsolidated bare areas",
	Water:                          "water bodies",
	SnowIce:                        "permanent snow and ice",
}

// Classes returns all known classes in increasing code order.
func Classes() []Class {
	return []Class{
		NoData, CroplandRainfed, CroplandHerbaceous, CroplandTreeShrub,
		CroplandIrrigated, MosaicCropland, MosaicNaturalVegetation,
		TreeBroadleavedEvergreen, TreeBroadleavedDeciduous,
		TreeBroadleavedDeciduousClosed, TreeBroadleavedDeciduousOpen,
		TreeNeedleleavedEvergreen, TreeNeedleleavedEvergreenClose,
		TreeNeedleleavedEvergreenOpen, TreeNeedleleavedDeciduous,
		TreeNeedleleavedDeciduousClose, TreeNeedleleavedDeciduousOpen,
		TreeMixed, MosaicTreeShrub, MosaicHerbaceous, Shrubland,
		ShrublandEvergreen, ShrublandDeciduous, Grassland, LichensMosses,
		SparseVegetation, SparseTree, SparseShrub, SparseHerbaceous,
		TreeFloodedFresh, TreeFloodedSaline, ShrubHerbaceousFlooded, Urban,
		Bare, BareConsolidated, BareUnconsolidated, Water, SnowIce,
	}
}

// Parse returns the class with the given code.
func Parse(code int) (Class, error) {
	c := Class(code)
	if _, ok := classNames[c]; !ok {
		return NoData, fmt.Errorf("landcover: unknown land-cover code %d", code)
	}
	return c, nil
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("unknown class %d", int(c))
}

// Decode checks that every cell of r that has a class holds a known
// land-cover code. Cells without a class are treated as NoData.
func Decode(r *raster.Classes) error {
	for i, code := range r.Codes {
		if code == raster.NoClass {
			continue
		}
		if _, err := Parse(code); err != nil {
			row, col := r.Grid.RowCol(i)
			return fmt.Errorf("%v at (row %d, col %d) of %s", err, row, col, r.Grid.Name)
		}
	}
	return nil
}

// Mask returns a mask that is true where the class of a cell satisfies
// f. Cells without a class or with an unknown code are false.
func Mask(ctx context.Context, r *raster.Classes, f func(Class) bool) (*raster.Mask, error) {
	return r.Mask(ctx, func(code int) bool {
		c, err := Parse(code)
		if err != nil {
			return false
		}
		return f(c)
	})
}

// At returns the class of cell i, treating cells without a class as NoData.
func At(r *raster.Classes, i int) Class {
	if r.Codes[i] == raster.NoClass {
		return NoData
	}
	return Class(r.Codes[i])
}
