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

package biomosaic

import (
	"context"
	"fmt"
	"sort"

	"github.com/spatialmodel/biomosaic/raster"
)

// Zone is a region of the mosaic with its own compositing rules.
type Zone int

// Mosaic zones.
const (
	TundraZone Zone = iota
	BorealNorthZone
	BorealSouthZone
	OtherZone
	GlobalZone
	HerbZone
)

func (z Zone) String() string {
	switch z {
	case TundraZone:
		return "tundra"
	case BorealNorthZone:
		return "boreal north"
	case BorealSouthZone:
		return "boreal south"
	case OtherZone:
		return "other"
	case GlobalZone:
		return "global"
	case HerbZone:
		return "herbaceous"
	default:
		return fmt.Sprintf("zone %d", int(z))
	}
}

// Rule is one candidate source for a zone. Layer is used where Where is
// true, or everywhere if Where is nil. Rules with lower Rank take
// priority.
type Rule struct {
	Name  string
	Rank  int
	Layer *raster.Layer
	Where *raster.Mask
}

// RuleTable is an ordered set of rules for a zone.
type RuleTable struct {
	Zone  Zone
	Rules []Rule
}

// Add appends a rule ranked after all existing rules.
func (t *RuleTable) Add(name string, l *raster.Layer, where *raster.Mask) {
	t.Rules = append(t.Rules, Rule{Name: name, Rank: len(t.Rules), Layer: l, Where: where})
}

// Resolve returns a layer where each pixel takes its value from the
// highest priority rule that has a valid value there. Rules of equal
// rank keep the order in which they were added.
func (t *RuleTable) Resolve(ctx context.Context) (*raster.Layer, error) {
	if len(t.Rules) == 0 {
		return nil, fmt.Errorf("biomosaic: %s zone has no rules", t.Zone)
	}
	rules := append([]Rule{}, t.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Rank < rules[j].Rank })

	layers := make([]*raster.Layer, len(rules))
	for i, r := range rules {
		if r.Layer == nil {
			return nil, fmt.Errorf("biomosaic: %s zone: rule %s has no layer", t.Zone, r.Name)
		}
		if r.Where == nil {
			layers[i] = r.Layer
			continue
		}
		l, err := r.Layer.UpdateMask(ctx, r.Where)
		if err != nil {
			return nil, fmt.Errorf("biomosaic: %s zone: rule %s: %v", t.Zone, r.Name, err)
		}
		layers[i] = l
	}
	o, err := raster.FirstNonNull(ctx, layers...)
	if err != nil {
		return nil, fmt.Errorf("biomosaic: %s zone: %v", t.Zone, err)
	}
	return o, nil
}
