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
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/biomosaic"
	"github.com/spatialmodel/biomosaic/cloud"
	"github.com/spatialmodel/biomosaic/raster"
	"github.com/spatialmodel/biomosaic/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUnits = "Mg ha-1"

var nan = math.NaN()

// testConfig returns a configuration holding the default value of every
// option.
func testConfig() *viper.Viper {
	cfg := viper.New()
	for _, o := range options {
		cfg.SetDefault(o.name, o.defaultVal)
	}
	return cfg
}

// setTestGrid sets the output grid to 1° pixels covering 0-4°E, 30-31°N.
func setTestGrid(cfg *viper.Viper) {
	cfg.Set("Export.Scale", 111195.)
	cfg.Set("Export.West", 0.)
	cfg.Set("Export.East", 4.)
	cfg.Set("Export.South", 30.)
	cfg.Set("Export.North", 31.)
}

func inputGrid(t *testing.T, nx, ny int, d float64) *raster.Grid {
	g, err := raster.NewGrid("input", nx, ny, d, d, 0, 30, "+proj=longlat")
	require.NoError(t, err)
	return g
}

func writeLayer(t *testing.T, path string, g *raster.Grid, units string, names []string, data ...[]float64) string {
	l, err := raster.FromArrays(g, units, names, data...)
	require.NoError(t, err)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, raster.WriteCOARDS(f, l))
	require.NoError(t, f.Close())
	return path
}

func writePair(t *testing.T, path string, g *raster.Grid, units string, est, unc []float64) string {
	return writeLayer(t, path, g, units, []string{raster.Estimate, raster.Uncertainty}, est, unc)
}

func constant(n int, v float64) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = v
	}
	return o
}

// writeRunInputs writes a complete set of inputs on the test grid.
func writeRunInputs(t *testing.T, dir string) map[string]string {
	g := inputGrid(t, 4, 1, 1)
	p := func(name string) string { return filepath.Join(dir, name+".nc") }
	return map[string]string{
		PrimaryWoody: writePair(t, p("woody"), g, testUnits, []float64{100, 0, 5, 5}, []float64{10, 0, 1, 1}),
		Grass:        writePair(t, p("grass"), g, testUnits, constant(4, 4), constant(4, 1)),
		Crop:         writePair(t, p("crop"), g, testUnits, constant(4, 6), constant(4, 2)),
		Tundra:       writePair(t, p("tundra"), g, testUnits, constant(4, 1), constant(4, 0.1)),
		TreeCover:    writePair(t, p("treecover"), g, "percent", []float64{40, 0, 0, 0}, []float64{8, 0, 0, 0}),
		LandCover:    writeLayer(t, p("landcover"), g, "1", []string{"landcover"}, []float64{50, 10, 220, 210}),
		Koppen:       writeLayer(t, p("koppen"), g, "1", []string{"koppen"}, constant(4, 1)),
		Boreal:       writeLayer(t, p("boreal"), g, "1", []string{"boreal"}, constant(4, 0)),
		TundraExtent: writeLayer(t, p("tundraextent"), g, "1", []string{"tundra"}, constant(4, 0)),
	}
}

func assertPair(t *testing.T, l *raster.Layer, i int, mean, sd float64) {
	t.Helper()
	v := l.Pair(i)
	for _, c := range []struct{ have, want float64 }{{v.Mean, mean}, {v.SD, sd}} {
		if math.IsNaN(c.want) {
			assert.True(t, math.IsNaN(c.have), "pixel %d: have %g, want NaN", i, c.have)
		} else {
			assert.InDelta(t, c.want, c.have, 1e-5, "pixel %d", i)
		}
	}
}

func TestVersion(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	Root.SetOutput(buf)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	assert.Contains(t, buf.String(), "BioMosaic v"+biomosaic.Version)
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	cfg.Set("json", `{"grass": "grass.nc", "crop": "crop.nc"}`)
	cfg.Set("map", map[string]interface{}{"grass": "grass.nc"})
	cfg.Set("empty", "")
	cfg.Set("bad", "{grass")

	m, err := GetStringMapString("json", cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"grass": "grass.nc", "crop": "crop.nc"}, m)

	m, err = GetStringMapString("map", cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"grass": "grass.nc"}, m)

	m, err = GetStringMapString("empty", cfg)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = GetStringMapString("bad", cfg)
	assert.Error(t, err)
}

func TestCheckInputs(t *testing.T) {
	os.Setenv("BIOMOSAIC_TEST_DIR", "/data")
	defer os.Unsetenv("BIOMOSAIC_TEST_DIR")
	all := map[string]string{
		PrimaryWoody: "${BIOMOSAIC_TEST_DIR}/woody.nc",
		Grass:        "grass.nc",
		Crop:         "crop.nc",
		Tundra:       "tundra.nc",
		TreeCover:    "treecover.nc",
		LandCover:    "landcover.nc",
		Boreal:       "boreal.shp",
		TundraExtent: "tundra.shp",
	}
	o, err := checkInputs(all)
	require.NoError(t, err)
	assert.Equal(t, "/data/woody.nc", o[PrimaryWoody])

	_, err = checkInputs(all, Koppen)
	assert.EqualError(t, err, "biomosaic: missing Inputs: koppen")

	_, err = checkInputs(map[string]string{Grass: "grass.nc", Crop: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crop, land_cover, primary_woody")

	_, err = checkInputs(map[string]string{"shrub": "shrub.nc"})
	assert.Error(t, err)
}

func TestParams(t *testing.T) {
	cfg := testConfig()
	p, err := Params(cfg)
	require.NoError(t, err)
	assert.Equal(t, biomosaic.DefaultParams(), p)

	cfg.Set("Params.BorealDivide", 55.)
	p, err = Params(cfg)
	require.NoError(t, err)
	assert.Equal(t, 55., p.BorealDivide)

	cfg.Set("Params.Interpolation", "cubic")
	_, err = Params(cfg)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "params.toml")
	require.NoError(t, os.WriteFile(path, []byte("fill_distance = 5000.0\n"), 0644))
	cfg.Set("ParamsFile", path)
	p, err = Params(cfg)
	require.NoError(t, err)
	want := biomosaic.DefaultParams()
	want.FillDistance = 5000
	assert.Equal(t, want, p)
}

func TestExportGridSpec(t *testing.T) {
	cfg := testConfig()
	s, err := ExportGridSpec(cfg)
	require.NoError(t, err)
	assert.Equal(t, 360, s.PixelsPerDegree)
	assert.Equal(t, store.West, s.West)
	assert.Equal(t, store.North, s.North)

	setTestGrid(cfg)
	s, err = ExportGridSpec(cfg)
	require.NoError(t, err)
	g, err := s.Grid()
	require.NoError(t, err)
	assert.Equal(t, 4, g.Nx)
	assert.Equal(t, 1, g.Ny)

	cfg.Set("Export.North", 95.)
	_, err = ExportGridSpec(cfg)
	assert.Error(t, err)
}

func TestCheckOutputFile(t *testing.T) {
	ctx := context.Background()
	_, err := checkOutputFile(ctx, "")
	assert.Error(t, err)
	_, err = checkOutputFile(ctx, filepath.Join(t.TempDir(), "missing", "mosaic.nc"))
	assert.Error(t, err)
	_, err = checkOutputFile(ctx, filepath.Join(t.TempDir(), "mosaic.nc"))
	assert.NoError(t, err)
	_, err = checkOutputFile(ctx, "mem://utiltest/mosaic.nc")
	assert.NoError(t, err)
	_, err = checkOutputFile(ctx, "ftp://utiltest/mosaic.nc")
	assert.Error(t, err)
}

func TestCheckLogFile(t *testing.T) {
	assert.Equal(t, "out/mosaic.log", checkLogFile("", "out/mosaic.nc"))
	assert.Equal(t, "run.log", checkLogFile("run.log", "out/mosaic.nc"))
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	setTestGrid(cfg)
	cfg.Set("TempDir", t.TempDir())
	cfg.Set("Inputs", writeRunInputs(t, t.TempDir()))
	cfg.Set("OutputFile", "mem://utiltest/mosaic.nc")

	out := bytes.NewBuffer(nil)
	require.NoError(t, Run(ctx, cfg, out))
	assert.Contains(t, out.String(), "biomosaic: run complete")

	ld := &store.Loader{TempDir: t.TempDir()}
	m, err := ld.LoadLayer(ctx, "mem://utiltest/mosaic.nc")
	require.NoError(t, err)
	assert.Equal(t, testUnits, m.Units)
	assertPair(t, m, 0, 102, math.Sqrt(100.41))
	assertPair(t, m, 1, 6, 2)
	assertPair(t, m, 2, 0, 0)
	assertPair(t, m, 3, nan, nan)

	logPath, err := cloud.Download(ctx, "mem://utiltest/mosaic.log", t.TempDir())
	require.NoError(t, err)
	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "biomosaic: starting run")
}

func TestRunCarbon(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	setTestGrid(cfg)
	cfg.Set("TempDir", t.TempDir())
	cfg.Set("Inputs", writeRunInputs(t, t.TempDir()))
	cfg.Set("OutputFile", "mem://utiltest/carbon.nc")
	cfg.Set("Carbon", true)
	require.NoError(t, Run(ctx, cfg, bytes.NewBuffer(nil)))

	c, err := (&store.Loader{TempDir: t.TempDir()}).LoadLayer(ctx, "mem://utiltest/carbon.nc")
	require.NoError(t, err)
	assert.Equal(t, "Mg C ha-1", c.Units)
	// Only the woody part of the tree pixel is converted.
	assert.InDelta(t, 0.454*100+2, c.Pair(0).Mean, 1e-5)
	assertPair(t, c, 1, 6, 2)
	assertPair(t, c, 2, 0, 0)
	assertPair(t, c, 3, nan, nan)
}

func TestRunMissingInputs(t *testing.T) {
	cfg := testConfig()
	setTestGrid(cfg)
	inputs := writeRunInputs(t, t.TempDir())
	delete(inputs, Koppen)
	cfg.Set("Inputs", inputs)
	cfg.Set("OutputFile", filepath.Join(t.TempDir(), "mosaic.nc"))
	cfg.Set("Carbon", true)
	err := Run(context.Background(), cfg, bytes.NewBuffer(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), Koppen)
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	row := []float64{1, 3, 5, 5, 2, 2, 0, 4}
	in := writePair(t, filepath.Join(dir, "woody.nc"), inputGrid(t, 8, 2, 0.5), testUnits,
		append(append([]float64{}, row...), row...), constant(16, 1))

	cfg := testConfig()
	setTestGrid(cfg)
	cfg.Set("Input", in)
	cfg.Set("OutputFile", filepath.Join(dir, "aggregated.nc"))
	require.NoError(t, Aggregate(ctx, cfg, bytes.NewBuffer(nil)))

	_, err := os.Stat(filepath.Join(dir, "aggregated.log"))
	assert.NoError(t, err, "log file")

	o, err := (&store.Loader{}).LoadLayer(ctx, filepath.Join(dir, "aggregated.nc"))
	require.NoError(t, err)
	require.Equal(t, 4, o.Grid.Len())
	for i, want := range []float64{2, 5, 2, 2} {
		assertPair(t, o, i, want, 1)
	}
}

func TestVoidFill(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	in := writePair(t, filepath.Join(dir, "grass.nc"), inputGrid(t, 3, 1, 1), testUnits,
		[]float64{2, nan, 2}, []float64{1, nan, 1})

	cfg := testConfig()
	cfg.Set("Input", in)
	cfg.Set("OutputFile", filepath.Join(dir, "filled.nc"))
	err := VoidFill(ctx, cfg, bytes.NewBuffer(nil))
	assert.Error(t, err, "fill distance of zero")

	cfg.Set("Params.FillDistance", 200000.)
	require.NoError(t, VoidFill(ctx, cfg, bytes.NewBuffer(nil)))
	o, err := (&store.Loader{}).LoadLayer(ctx, filepath.Join(dir, "filled.nc"))
	require.NoError(t, err)
	assert.True(t, o.Valid(1), "gap should be filled")
	assertPair(t, o, 0, 2, 1)
	assert.InDelta(t, 2, o.Pair(1).Mean, 1e-5)
}

func TestCarbon(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	g := inputGrid(t, 4, 1, 1)
	in := writePair(t, filepath.Join(dir, "mosaic.nc"), g, testUnits,
		[]float64{102, 6, 0, nan}, []float64{10, 2, 0, nan})
	cfg := testConfig()
	cfg.Set("Input", in)
	cfg.Set("OutputFile", filepath.Join(dir, "carbon.nc"))
	cfg.Set("Inputs", map[string]string{
		LandCover: writeLayer(t, filepath.Join(dir, "landcover.nc"), g, "1", []string{"landcover"}, []float64{50, 10, 220, 210}),
	})
	err := Carbon(ctx, cfg, bytes.NewBuffer(nil))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), Koppen))

	cfg.Set("Inputs", map[string]string{
		LandCover: filepath.Join(dir, "landcover.nc"),
		Koppen:    writeLayer(t, filepath.Join(dir, "koppen.nc"), g, "1", []string{"koppen"}, constant(4, 1)),
	})
	require.NoError(t, Carbon(ctx, cfg, bytes.NewBuffer(nil)))
	o, err := (&store.Loader{}).LoadLayer(ctx, filepath.Join(dir, "carbon.nc"))
	require.NoError(t, err)
	assert.True(t, o.Pair(0).Mean > 0 && o.Pair(0).Mean < 102)
	assertPair(t, o, 2, 0, 0)
	assertPair(t, o, 3, nan, nan)
}
