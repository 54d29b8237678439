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

// WoodySource is the woody biomass source that is authoritative for a class.
type WoodySource int

const (
	// RegionalSource is the regional woody map, used for open and
	// mixed cover types.
	RegionalSource WoodySource = iota + 1
	// PrimarySource is the global woody map, used for closed forests.
	PrimarySource
)

// WoodySource returns the woody source that is authoritative for c.
func (c Class) WoodySource() WoodySource {
	switch c {
	case TreeBroadleavedEvergreen, TreeBroadleavedDeciduous, TreeBroadleavedDeciduousClosed,
		TreeNeedleleavedEvergreen, TreeNeedleleavedEvergreenClose,
		TreeNeedleleavedDeciduous, TreeNeedleleavedDeciduousClose,
		TreeMixed, TreeFloodedFresh, TreeFloodedSaline, ShrubHerbaceousFlooded,
		SnowIce:
		return PrimarySource
	default:
		return RegionalSource
	}
}

// HerbType is the kind of herbaceous vegetation.
type HerbType int

const (
	Crop HerbType = iota + 1
	Grass
)

// HerbType returns the herbaceous layer that applies to c.
func (c Class) HerbType() HerbType {
	switch c {
	case CroplandRainfed, CroplandHerbaceous, CroplandTreeShrub, CroplandIrrigated,
		MosaicCropland, MosaicNaturalVegetation:
		return Crop
	default:
		return Grass
	}
}

// TundraTier says how tundra pixels of a class are treated.
type TundraTier int

const (
	// Open classes can take woody biomass where trees dominate.
	Open TundraTier = iota
	// Sparse classes always take the tundra estimate.
	Sparse
)

// TundraTier returns the tundra tier of c.
func (c Class) TundraTier() TundraTier {
	switch c {
	case Shrubland, ShrublandEvergreen, ShrublandDeciduous, Grassland, LichensMosses,
		SparseVegetation, SparseTree, SparseShrub, SparseHerbaceous,
		Bare, BareConsolidated, BareUnconsolidated:
		return Sparse
	default:
		return Open
	}
}

// Disposition is how the final mosaic treats a class.
type Disposition int

const (
	// Vegetated classes take the mosaic value.
	Vegetated Disposition = iota
	// BareGround classes fall back to zero biomass where no source
	// has an estimate.
	BareGround
	// Ice is forced to zero biomass with zero uncertainty.
	Ice
	// Excluded classes (water and no data) are masked.
	Excluded
)

// Disposition returns the disposition of c.
func (c Class) Disposition() Disposition {
	switch c {
	case SnowIce:
		return Ice
	case NoData, Water:
		return Excluded
	case Bare, BareConsolidated, BareUnconsolidated:
		return BareGround
	default:
		return Vegetated
	}
}

// Phylogeny is the dominant tree phylogeny of a class, used to select
// biomass carbon fractions.
type Phylogeny int

const (
	Gymnosperm Phylogeny = iota
	Mixed
	Angiosperm
)

// Phylogeny returns the dominant tree phylogeny of c. Classes without
// a dominant leaf type are Mixed.
func (c Class) Phylogeny() Phylogeny {
	switch c {
	case TreeBroadleavedEvergreen, TreeBroadleavedDeciduous,
		TreeBroadleavedDeciduousClosed, TreeBroadleavedDeciduousOpen:
		return Angiosperm
	case TreeNeedleleavedEvergreen, TreeNeedleleavedEvergreenClose, TreeNeedleleavedEvergreenOpen,
		TreeNeedleleavedDeciduous, TreeNeedleleavedDeciduousClose, TreeNeedleleavedDeciduousOpen:
		return Gymnosperm
	default:
		return Mixed
	}
}
