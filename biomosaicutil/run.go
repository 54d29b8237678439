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

package biomosaicutil

import (
	"context"
	"fmt"
	"io"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/biomosaic"
	"github.com/spatialmodel/biomosaic/aggregate"
	"github.com/spatialmodel/biomosaic/carbon"
	"github.com/spatialmodel/biomosaic/raster"
	"github.com/spatialmodel/biomosaic/store"
	"github.com/spatialmodel/biomosaic/voidfill"
	"golang.org/x/sync/errgroup"
)

func newLoader(cfg *viper.Viper, log logrus.FieldLogger) *store.Loader {
	return &store.Loader{
		TempDir:   cfg.GetString("TempDir"),
		CacheSize: cfg.GetInt("CacheSize"),
		Log:       log,
	}
}

func newExporter(cfg *viper.Viper, log logrus.FieldLogger) *store.Exporter {
	return &store.Exporter{TempDir: cfg.GetString("TempDir"), Log: log}
}

// Run creates the biomass mosaic as configured in cfg and writes it to
// the configured output file. If Carbon is true, the woody inputs are
// converted to carbon before they are harmonized and the output is a
// biomass carbon mosaic. Log messages are written to out and to the log
// file.
func Run(ctx context.Context, cfg *viper.Viper, out io.Writer) (err error) {
	outputFile, err := checkOutputFile(ctx, cfg.GetString("OutputFile"))
	if err != nil {
		return err
	}
	convertCarbon := cfg.GetBool("Carbon")
	var extra []string
	if convertCarbon {
		extra = append(extra, Koppen)
	}
	params, err := Params(cfg)
	if err != nil {
		return err
	}
	spec, err := ExportGridSpec(cfg)
	if err != nil {
		return err
	}
	target, err := spec.Grid()
	if err != nil {
		return err
	}
	inputs, err := GetStringMapString("Inputs", cfg)
	if err != nil {
		return err
	}
	if inputs, err = checkInputs(inputs, extra...); err != nil {
		return err
	}

	log, closeLog, err := newLogger(ctx, cfg, out, outputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); err == nil {
			err = cerr
		}
	}()
	log.WithFields(logrus.Fields{
		"version": biomosaic.Version,
		"grid":    spec.Name,
		"nx":      target.Nx,
		"ny":      target.Ny,
		"carbon":  convertCarbon,
	}).Info("biomosaic: starting run")

	src, err := LoadSources(ctx, newLoader(cfg, log), inputs, target)
	if err != nil {
		return err
	}
	r := biomosaic.NewRun(params, target, src, log)
	if err = r.Do(ctx, biomosaic.Stages(convertCarbon)...); err != nil {
		return err
	}
	return newExporter(cfg, r.Log).Export(ctx, r.Mosaic, spec, outputFile)
}

// LoadSources concurrently loads the named inputs. The masks are loaded
// onto target; everything else stays on its native grid.
func LoadSources(ctx context.Context, ld *store.Loader, inputs map[string]string, target *raster.Grid) (*biomosaic.Sources, error) {
	src := new(biomosaic.Sources)
	g, ctx := errgroup.WithContext(ctx)
	load := func(name string, f func(path string) error) {
		path, ok := inputs[name]
		if !ok {
			return
		}
		g.Go(func() error {
			if err := f(path); err != nil {
				return fmt.Errorf("biomosaic: loading %s: %v", name, err)
			}
			return nil
		})
	}
	layer := func(name string, dst **raster.Layer) {
		load(name, func(path string) (err error) {
			*dst, err = ld.LoadLayer(ctx, path)
			return
		})
	}
	classes := func(name string, dst **raster.Classes) {
		load(name, func(path string) (err error) {
			*dst, err = ld.LoadClasses(ctx, path)
			return
		})
	}
	mask := func(name string, dst **raster.Mask) {
		load(name, func(path string) (err error) {
			*dst, err = ld.LoadMask(ctx, path, target)
			return
		})
	}
	layer(PrimaryWoody, &src.PrimaryWoody)
	layer(RegionalWoody, &src.RegionalWoody)
	layer(Grass, &src.Grass)
	layer(Crop, &src.Crop)
	layer(Tundra, &src.Tundra)
	layer(TreeCover, &src.TreeCover)
	layer(WoodyAllocation, &src.WoodyAllocation)
	layer(TundraAllocation, &src.TundraAllocation)
	classes(LandCover, &src.LandCover)
	classes(Koppen, &src.Koppen)
	mask(Boreal, &src.Boreal)
	mask(TundraExtent, &src.TundraExtent)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return src, nil
}

// Aggregate moves the configured input layer onto the output grid.
func Aggregate(ctx context.Context, cfg *viper.Viper, out io.Writer) (err error) {
	input, err := checkInputFile(cfg.GetString("Input"))
	if err != nil {
		return err
	}
	outputFile, err := checkOutputFile(ctx, cfg.GetString("OutputFile"))
	if err != nil {
		return err
	}
	params, err := Params(cfg)
	if err != nil {
		return err
	}
	mode, err := params.InterpolationMode()
	if err != nil {
		return err
	}
	spec, err := ExportGridSpec(cfg)
	if err != nil {
		return err
	}
	target, err := spec.Grid()
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(ctx, cfg, out, outputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); err == nil {
			err = cerr
		}
	}()

	l, err := newLoader(cfg, log).LoadLayer(ctx, input, expandStringSlice(cfg.GetStringSlice("Bands"))...)
	if err != nil {
		return err
	}
	o, err := aggregate.Aggregate(ctx, l, target, aggregate.Options{Interpolation: mode})
	if err != nil {
		return err
	}
	return newExporter(cfg, log).Export(ctx, o, spec, outputFile)
}

// VoidFill fills the gaps in the configured input layer.
func VoidFill(ctx context.Context, cfg *viper.Viper, out io.Writer) (err error) {
	input, err := checkInputFile(cfg.GetString("Input"))
	if err != nil {
		return err
	}
	outputFile, err := checkOutputFile(ctx, cfg.GetString("OutputFile"))
	if err != nil {
		return err
	}
	params, err := Params(cfg)
	if err != nil {
		return err
	}
	if !(params.FillDistance > 0) {
		return fmt.Errorf("biomosaic: Params.FillDistance is %g but should be >0 to fill gaps", params.FillDistance)
	}
	log, closeLog, err := newLogger(ctx, cfg, out, outputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); err == nil {
			err = cerr
		}
	}()

	l, err := newLoader(cfg, log).LoadLayer(ctx, input, expandStringSlice(cfg.GetStringSlice("Bands"))...)
	if err != nil {
		return err
	}
	o, err := voidfill.Fill(ctx, l, params.FillDistance)
	if err != nil {
		return err
	}
	if s, err := biomosaic.Summarize(o); err == nil {
		log.WithFields(s.Fields()).Info("biomosaic: filled layer")
	}
	return newExporter(cfg, log).Write(ctx, o, outputFile)
}

// Carbon converts the configured input biomass layer to biomass carbon.
func Carbon(ctx context.Context, cfg *viper.Viper, out io.Writer) (err error) {
	input, err := checkInputFile(cfg.GetString("Input"))
	if err != nil {
		return err
	}
	outputFile, err := checkOutputFile(ctx, cfg.GetString("OutputFile"))
	if err != nil {
		return err
	}
	inputs, err := GetStringMapString("Inputs", cfg)
	if err != nil {
		return err
	}
	for _, name := range []string{LandCover, Koppen} {
		if inputs[name] == "" {
			return fmt.Errorf("biomosaic: missing Inputs: %s", name)
		}
	}
	log, closeLog, err := newLogger(ctx, cfg, out, outputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); err == nil {
			err = cerr
		}
	}()

	ld := newLoader(cfg, log)
	biomass, err := ld.LoadLayer(ctx, input)
	if err != nil {
		return err
	}
	var cls [2]*raster.Classes
	for i, name := range []string{LandCover, Koppen} {
		c, err := ld.LoadClasses(ctx, expandStringSlice([]string{inputs[name]})[0])
		if err != nil {
			return fmt.Errorf("biomosaic: loading %s: %v", name, err)
		}
		if cls[i], err = aggregate.Classes(ctx, c, biomass.Grid); err != nil {
			return fmt.Errorf("biomosaic: harmonizing %s: %v", name, err)
		}
	}
	o, err := carbon.Convert(ctx, biomass, cls[0], cls[1])
	if err != nil {
		return err
	}
	if s, err := biomosaic.Summarize(o); err == nil {
		log.WithFields(s.Fields()).Info("biomosaic: carbon layer")
	}
	return newExporter(cfg, log).Write(ctx, o, outputFile)
}
