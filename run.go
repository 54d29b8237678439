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
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/biomosaic/aggregate"
	"github.com/spatialmodel/biomosaic/carbon"
	"github.com/spatialmodel/biomosaic/raster"
	"github.com/spatialmodel/biomosaic/voidfill"
)

// Sources are the input layers of a run, each on its own native grid.
type Sources struct {
	// PrimaryWoody is the global woody biomass map. RegionalWoody is
	// optional and takes priority where the land cover allows it. If it
	// has no uncertainty band, one is calculated with
	// RegionalWoodyUncertainty.
	PrimaryWoody, RegionalWoody *raster.Layer

	Grass, Crop, Tundra *raster.Layer
	TreeCover           *raster.Layer

	// WoodyAllocation and TundraAllocation are optional.
	WoodyAllocation, TundraAllocation *raster.Layer

	LandCover *raster.Classes

	// Koppen holds Köppen-Geiger climate codes. It is only required by
	// the WoodyCarbon stage.
	Koppen *raster.Classes

	// Boreal and TundraExtent must already be on the target grid.
	Boreal, TundraExtent *raster.Mask
}

// Run holds the state of a single mosaic run as it moves through a
// series of stages.
type Run struct {
	ID uuid.UUID

	Params

	// Target is the grid of the mosaic.
	Target  *raster.Grid
	Sources *Sources

	Log logrus.FieldLogger

	// Harmonized holds the sources after they have been moved to the
	// target grid, and Inputs holds the inputs to the mosaic engine.
	Harmonized *Sources
	Inputs     *Inputs

	// Mosaic is the biomass mosaic, in carbon units if the woody sources
	// were converted with WoodyCarbon.
	Mosaic *raster.Layer
}

// Stage is one step of a run.
type Stage func(ctx context.Context, r *Run) error

// NewRun creates a new run with a random ID. If log is nil the standard
// logger is used.
func NewRun(p Params, target *raster.Grid, src *Sources, log logrus.FieldLogger) *Run {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.New()
	return &Run{
		ID:      id,
		Params:  p,
		Target:  target,
		Sources: src,
		Log:     log.WithField("run", id.String()),
	}
}

// Do runs the given stages in order, stopping at the first error.
func (r *Run) Do(ctx context.Context, stages ...Stage) error {
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if r.Target == nil {
		return fmt.Errorf("biomosaic: run has no target grid")
	}
	if r.Sources == nil {
		return fmt.Errorf("biomosaic: run has no sources")
	}
	start := time.Now()
	for i, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		stageStart := time.Now()
		if err := s(ctx, r); err != nil {
			return err
		}
		r.Log.WithFields(logrus.Fields{
			"stage":    i + 1,
			"of":       len(stages),
			"walltime": time.Since(stageStart).String(),
		}).Info("biomosaic: stage complete")
	}
	r.Log.WithField("walltime", time.Since(start).String()).Info("biomosaic: run complete")
	return nil
}

// summarize logs summary statistics of l.
func (r *Run) summarize(name string, l *raster.Layer) {
	s, err := Summarize(l)
	if err != nil {
		r.Log.WithField("layer", name).Warn(err)
		return
	}
	r.Log.WithFields(s.Fields()).WithField("layer", name).Info("biomosaic: layer summary")
}

// Harmonize returns a stage that moves every source onto the target grid.
// Continuous layers are stabilized, aggregated, and, if FillDistance is
// above zero, biomass layers are void filled. Class layers are resampled
// by nearest neighbor.
func Harmonize() Stage {
	return func(ctx context.Context, r *Run) error {
		src := r.Sources
		mode, err := r.InterpolationMode()
		if err != nil {
			return err
		}
		opts := aggregate.Options{Interpolation: mode}
		h := &Sources{Boreal: src.Boreal, TundraExtent: src.TundraExtent}

		layer := func(name string, l *raster.Layer, fill bool) (*raster.Layer, error) {
			if l == nil {
				return nil, nil
			}
			o, err := aggregate.Aggregate(ctx, Stabilize(l, r.Digits), r.Target, opts)
			if err != nil {
				return nil, fmt.Errorf("biomosaic: harmonizing %s: %v", name, err)
			}
			if fill && r.FillDistance > 0 {
				if o, err = voidfill.Fill(ctx, o, r.FillDistance); err != nil {
					return nil, fmt.Errorf("biomosaic: harmonizing %s: %v", name, err)
				}
			}
			r.summarize(name, o)
			return o, nil
		}

		regional := src.RegionalWoody
		if regional != nil {
			if regional, err = RegionalWoodyUncertainty(regional); err != nil {
				return err
			}
		}
		for _, c := range []struct {
			name string
			in   *raster.Layer
			out  **raster.Layer
			fill bool
		}{
			{"primary woody", src.PrimaryWoody, &h.PrimaryWoody, true},
			{"regional woody", regional, &h.RegionalWoody, true},
			{"grass", src.Grass, &h.Grass, true},
			{"crop", src.Crop, &h.Crop, true},
			{"tundra", src.Tundra, &h.Tundra, true},
			{"tree cover", src.TreeCover, &h.TreeCover, false},
			{"woody allocation", src.WoodyAllocation, &h.WoodyAllocation, false},
			{"tundra allocation", src.TundraAllocation, &h.TundraAllocation, false},
		} {
			if *c.out, err = layer(c.name, c.in, c.fill); err != nil {
				return err
			}
		}
		for _, c := range []struct {
			name string
			in   *raster.Classes
			out  **raster.Classes
		}{
			{"land cover", src.LandCover, &h.LandCover},
			{"koppen", src.Koppen, &h.Koppen},
		} {
			if c.in == nil {
				continue
			}
			if *c.out, err = aggregate.Classes(ctx, c.in, r.Target); err != nil {
				return fmt.Errorf("biomosaic: harmonizing %s: %v", c.name, err)
			}
		}
		for name, m := range map[string]*raster.Mask{"boreal": h.Boreal, "tundra extent": h.TundraExtent} {
			if m != nil && !m.Grid.Aligned(r.Target) {
				return fmt.Errorf("biomosaic: harmonizing %s: mask is not on the target grid: %w", name, raster.ErrGridMismatch)
			}
		}
		r.Harmonized = h
		return nil
	}
}

// Fuse returns a stage that combines the harmonized woody sources and
// assembles the inputs to the mosaic engine.
func Fuse() Stage {
	return func(ctx context.Context, r *Run) error {
		h := r.Harmonized
		if h == nil {
			return fmt.Errorf("biomosaic: fusing woody biomass: sources have not been harmonized")
		}
		if h.PrimaryWoody == nil {
			return fmt.Errorf("biomosaic: missing primary woody input")
		}
		if h.LandCover == nil {
			return fmt.Errorf("biomosaic: missing land cover input")
		}
		woody := h.PrimaryWoody
		if h.RegionalWoody != nil {
			var err error
			if woody, err = WoodyFusion(ctx, h.PrimaryWoody, h.RegionalWoody, h.LandCover); err != nil {
				return err
			}
		}
		r.summarize("woody", woody)
		r.Inputs = &Inputs{
			Woody:            woody,
			Grass:            h.Grass,
			Crop:             h.Crop,
			Tundra:           h.Tundra,
			TreeCover:        h.TreeCover,
			LandCover:        h.LandCover,
			Boreal:           h.Boreal,
			TundraExtent:     h.TundraExtent,
			WoodyAllocation:  h.WoodyAllocation,
			TundraAllocation: h.TundraAllocation,
		}
		return nil
	}
}

// Composite returns a stage that creates the biomass mosaic.
func Composite() Stage {
	return func(ctx context.Context, r *Run) error {
		if r.Inputs == nil {
			return fmt.Errorf("biomosaic: creating mosaic: no inputs")
		}
		e := &Engine{Params: r.Params, Log: r.Log}
		m, err := e.Mosaic(ctx, r.Inputs)
		if err != nil {
			return err
		}
		r.Mosaic = m
		r.summarize("mosaic", m)
		return nil
	}
}

// WoodyCarbon returns a stage that converts the woody biomass sources to
// biomass carbon on their native grids, so that carbon fractions are
// applied before aggregation. The land cover and climate classes are
// resampled onto each woody grid for the conversion. Only woody biomass
// is converted: the grass, crop and tundra sources of a carbon run must
// already be carbon densities.
func WoodyCarbon() Stage {
	return func(ctx context.Context, r *Run) error {
		src := r.Sources
		if src.LandCover == nil {
			return fmt.Errorf("biomosaic: converting to carbon: missing land cover input")
		}
		if src.Koppen == nil {
			return fmt.Errorf("biomosaic: converting to carbon: missing koppen input")
		}
		convert := func(name string, l *raster.Layer) (*raster.Layer, error) {
			if l == nil {
				return nil, nil
			}
			lc, err := aggregate.Classes(ctx, src.LandCover, l.Grid)
			if err != nil {
				return nil, fmt.Errorf("biomosaic: converting %s to carbon: land cover: %v", name, err)
			}
			koppen, err := aggregate.Classes(ctx, src.Koppen, l.Grid)
			if err != nil {
				return nil, fmt.Errorf("biomosaic: converting %s to carbon: koppen: %v", name, err)
			}
			c, err := carbon.Convert(ctx, l, lc, koppen)
			if err != nil {
				return nil, fmt.Errorf("biomosaic: converting %s to carbon: %v", name, err)
			}
			r.summarize(name+" carbon", c)
			return c, nil
		}
		s := *src
		var err error
		if s.PrimaryWoody, err = convert("primary woody", src.PrimaryWoody); err != nil {
			return err
		}
		// The regional map gets its uncertainty from its relative error in
		// biomass units, before conversion.
		if s.RegionalWoody != nil {
			if s.RegionalWoody, err = RegionalWoodyUncertainty(s.RegionalWoody); err != nil {
				return err
			}
		}
		if s.RegionalWoody, err = convert("regional woody", s.RegionalWoody); err != nil {
			return err
		}
		r.Sources = &s
		return nil
	}
}

// Stages returns the stages of a complete run. If convertCarbon is true,
// the woody sources are converted to carbon before they are harmonized
// and the mosaic is a biomass carbon mosaic.
func Stages(convertCarbon bool) []Stage {
	var s []Stage
	if convertCarbon {
		s = append(s, WoodyCarbon())
	}
	return append(s, Harmonize(), Fuse(), Composite())
}
