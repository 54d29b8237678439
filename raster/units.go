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
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/unit"
)

// unitSymbols holds the SI value and dimensions of the unit symbols
// that can appear in layer units.
var unitSymbols = map[string]*unit.Unit{
	"Mg":       unit.New(1000, unit.Kilogram),
	"t":        unit.New(1000, unit.Kilogram),
	"kg":       unit.New(1, unit.Kilogram),
	"g":        unit.New(0.001, unit.Kilogram),
	"ha":       unit.New(1.e4, unit.Meter2),
	"m":        unit.New(1, unit.Meter),
	"km":       unit.New(1000, unit.Meter),
	"C":        unit.New(1, unit.Dimless), // carbon
	"1":        unit.New(1, unit.Dimless),
	"fraction": unit.New(1, unit.Dimless),
	"percent":  unit.New(0.01, unit.Dimless),
	"%":        unit.New(0.01, unit.Dimless),
}

// ParseUnits parses a unit string such as "Mg C ha-1", "kg/m2" or
// "percent" into a value in SI units.
func ParseUnits(s string) (*unit.Unit, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("raster: empty units")
	}
	u := unit.New(1, unit.Dimless)
	parts := strings.SplitN(s, "/", 2)
	for pi, part := range parts {
		sign := 1
		if pi == 1 {
			sign = -1
		}
		for _, tok := range strings.Fields(part) {
			sym, exp, err := splitExponent(tok)
			if err != nil {
				return nil, fmt.Errorf("raster: parsing units %q: %v", s, err)
			}
			base, ok := unitSymbols[sym]
			if !ok {
				return nil, fmt.Errorf("raster: parsing units %q: unknown unit %q", s, sym)
			}
			exp *= sign
			for j := 0; j < abs(exp); j++ {
				if exp > 0 {
					u.Mul(base)
				} else {
					u.Div(base)
				}
			}
		}
	}
	return u, nil
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// splitExponent splits a token like "ha-1" or "m^2" into its symbol and
// integer exponent.
func splitExponent(tok string) (string, int, error) {
	tok = strings.Replace(tok, "^", "", 1)
	i := strings.IndexAny(tok, "-0123456789")
	if i <= 0 || tok == "1" {
		return tok, 1, nil
	}
	exp, err := strconv.Atoi(tok[i:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid exponent in %q", tok)
	}
	return tok[:i], exp, nil
}

// CheckUnits returns an error if a and b are not the same units.
// Empty units are treated as unknown and match anything.
func CheckUnits(a, b string) error {
	if a == "" || b == "" || a == b {
		return nil
	}
	ua, err := ParseUnits(a)
	if err != nil {
		return err
	}
	ub, err := ParseUnits(b)
	if err != nil {
		return err
	}
	if !unit.DimensionsMatch(ua, ub) {
		return fmt.Errorf("raster: units %q and %q have different dimensions", a, b)
	}
	if !equalScale(ua.Value(), ub.Value()) {
		return fmt.Errorf("raster: units %q and %q differ by a factor of %g", a, b, ua.Value()/ub.Value())
	}
	return nil
}

func equalScale(a, b float64) bool {
	return math.Abs(a-b) <= 1.e-12*math.Max(math.Abs(a), math.Abs(b))
}

// ConvertUnits returns a copy of l with all bands converted to the
// given units, which must have the same dimensions as l.Units.
func ConvertUnits(ctx context.Context, l *Layer, to string) (*Layer, error) {
	from, err := ParseUnits(l.Units)
	if err != nil {
		return nil, err
	}
	target, err := ParseUnits(to)
	if err != nil {
		return nil, err
	}
	if err := from.Check(target.Dimensions()); err != nil {
		return nil, fmt.Errorf("raster: converting %q to %q: %v", l.Units, to, err)
	}
	factor := from.Value() / target.Value()
	o, err := l.Apply(ctx, func(i int, in, out []float64) {
		for b, v := range in {
			out[b] = v * factor
		}
	})
	if err != nil {
		return nil, err
	}
	o.Units = to
	return o, nil
}
