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
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/biomosaic/errprop"
	"github.com/spatialmodel/biomosaic/raster"
	"gonum.org/v1/gonum/stat"
)

// Summary holds summary statistics of the valid pixels of a layer.
type Summary struct {
	Count          int
	Mean, StdDev   float64
	Median         float64
	P5, P95        float64
	RMSUncertainty float64
}

// Summarize calculates summary statistics of the estimate band of l and
// the root-mean-square of its uncertainty band. Only pixels valid in
// every band are included. Statistics of a layer without valid pixels
// are NaN.
func Summarize(l *raster.Layer) (Summary, error) {
	e := l.BandIndex(raster.Estimate)
	if e < 0 {
		return Summary{}, fmt.Errorf("biomosaic: summarizing layer: no %q band", raster.Estimate)
	}
	u := l.BandIndex(raster.Uncertainty)
	var est, unc []float64
	for i := 0; i < l.Grid.Len(); i++ {
		if !l.Valid(i) {
			continue
		}
		est = append(est, l.At(e, i))
		if u >= 0 {
			unc = append(unc, l.At(u, i))
		}
	}
	nan := math.NaN()
	s := Summary{Count: len(est), Mean: nan, StdDev: nan, Median: nan, P5: nan, P95: nan, RMSUncertainty: nan}
	if len(est) == 0 {
		return s, nil
	}
	s.Mean, s.StdDev = stat.MeanStdDev(est, nil)
	var err error
	if s.Median, err = stats.Median(est); err != nil {
		return s, fmt.Errorf("biomosaic: summarizing layer: %v", err)
	}
	if s.P5, err = stats.PercentileNearestRank(est, 5); err != nil {
		return s, fmt.Errorf("biomosaic: summarizing layer: %v", err)
	}
	if s.P95, err = stats.PercentileNearestRank(est, 95); err != nil {
		return s, fmt.Errorf("biomosaic: summarizing layer: %v", err)
	}
	if len(unc) > 0 {
		s.RMSUncertainty = errprop.QuadratureMean(unc, nil)
	}
	return s, nil
}

// Fields returns s as log fields.
func (s Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"count":           s.Count,
		"mean":            s.Mean,
		"std dev":         s.StdDev,
		"median":          s.Median,
		"p5":              s.P5,
		"p95":             s.P95,
		"rms uncertainty": s.RMSUncertainty,
	}
}
