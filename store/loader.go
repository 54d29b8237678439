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

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/biomosaic/cloud"
	"github.com/spatialmodel/biomosaic/internal/hash"
	"github.com/spatialmodel/biomosaic/raster"
)

// DefaultCacheSize is the number of loaded files kept in memory when
// Loader.CacheSize is not set.
const DefaultCacheSize = 16

// Loader loads input files from local paths or blob URLs. Concurrent
// requests for the same file are combined, and recently loaded files are
// kept in memory. Loaded values are shared between callers and must not
// be modified.
type Loader struct {
	// TempDir is where blobs are downloaded to. If empty, the system
	// temporary directory is used.
	TempDir string

	// CacheSize is the number of files kept in memory.
	CacheSize int

	Log logrus.FieldLogger

	cacheInit sync.Once
	cache     *requestcache.Cache
}

type loadKind int

const (
	layerKind loadKind = iota
	classesKind
	maskKind
)

type loadRequest struct {
	kind  loadKind
	path  string
	bands []string
	grid  *raster.Grid
}

func (l *Loader) log() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}

func (l *Loader) request(ctx context.Context, r loadRequest) (interface{}, error) {
	l.cacheInit.Do(func() {
		size := l.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		l.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return l.load(ctx, request.(loadRequest))
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(size))
	})
	key := []interface{}{int(r.kind), r.path, r.bands}
	if g := r.grid; g != nil {
		key = append(key, g.Nx, g.Ny, g.Dx, g.Dy, g.X0, g.Y0, g.Proj)
	}
	return l.cache.NewRequest(ctx, r, hash.Hash(key...)).Result()
}

// LoadLayer loads a COARDS NetCDF file. If bands are given, only those
// bands are kept, in the given order.
func (l *Loader) LoadLayer(ctx context.Context, path string, bands ...string) (*raster.Layer, error) {
	v, err := l.request(ctx, loadRequest{kind: layerKind, path: path, bands: bands})
	if err != nil {
		return nil, err
	}
	return v.(*raster.Layer), nil
}

// LoadClasses loads the first band of a COARDS NetCDF file as class
// codes.
func (l *Loader) LoadClasses(ctx context.Context, path string) (*raster.Classes, error) {
	v, err := l.request(ctx, loadRequest{kind: classesKind, path: path})
	if err != nil {
		return nil, err
	}
	return v.(*raster.Classes), nil
}

// LoadMask loads a mask on grid g. Shapefiles are rasterized, with cells
// whose centers fall within any polygon set to true. Other files are read
// as COARDS NetCDF, must already be on g, and are true where the first
// band is valid and not zero.
func (l *Loader) LoadMask(ctx context.Context, path string, g *raster.Grid) (*raster.Mask, error) {
	v, err := l.request(ctx, loadRequest{kind: maskKind, path: path, grid: g})
	if err != nil {
		return nil, err
	}
	return v.(*raster.Mask), nil
}

func (l *Loader) load(ctx context.Context, r loadRequest) (interface{}, error) {
	path, cleanup, err := l.localPath(ctx, r.path)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	l.log().WithFields(logrus.Fields{"path": r.path}).Debug("store: loading file")

	if r.kind == maskKind && strings.ToLower(filepath.Ext(path)) == ".shp" {
		return readShpMask(ctx, path, r.grid)
	}
	lay, err := readLayer(path)
	if err != nil {
		return nil, err
	}
	switch r.kind {
	case layerKind:
		if len(r.bands) == 0 {
			return lay, nil
		}
		o, err := lay.Select(r.bands...)
		if err != nil {
			return nil, fmt.Errorf("store: %s: %v", r.path, err)
		}
		return o, nil
	case classesKind:
		c, err := raster.ClassesFromLayer(lay)
		if err != nil {
			return nil, fmt.Errorf("store: %s: %v", r.path, err)
		}
		return c, nil
	case maskKind:
		if err := r.grid.CheckAligned("loading mask "+r.path, lay.Grid); err != nil {
			return nil, fmt.Errorf("store: %v", err)
		}
		m, err := raster.MaskFromLayer(lay)
		if err != nil {
			return nil, fmt.Errorf("store: %s: %v", r.path, err)
		}
		// Use the requested grid so the mask is aligned by identity.
		m.Grid = r.grid
		return m, nil
	default:
		return nil, fmt.Errorf("store: invalid load kind %d", r.kind)
	}
}

// localPath returns a local path to the file at path, downloading it
// first if it is a blob. cleanup removes any downloaded files.
func (l *Loader) localPath(ctx context.Context, path string) (local string, cleanup func(), err error) {
	if !cloud.IsBlob(path) {
		return os.ExpandEnv(path), func() {}, nil
	}
	dir, err := os.MkdirTemp(l.TempDir, "biomosaic")
	if err != nil {
		return "", nil, fmt.Errorf("store: creating temporary download directory: %v", err)
	}
	cleanup = func() { os.RemoveAll(dir) }
	local, err = cloud.Download(ctx, path, dir)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("store: downloading %s: %v", path, err)
	}
	return local, cleanup, nil
}

func readLayer(path string) (*raster.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %v", path, err)
	}
	defer f.Close()
	lay, err := raster.ReadCOARDS(f, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("store: %v", err)
	}
	return lay, nil
}

// readShpMask rasterizes the polygons in a shapefile onto g. If the
// shapefile has a .prj file the polygons are transformed to the spatial
// reference of g; otherwise they are assumed to already be in it.
func readShpMask(ctx context.Context, path string, g *raster.Grid) (*raster.Mask, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("store: opening shapefile %s: %v", path, err)
	}
	defer d.Close()

	var t proj.Transformer
	if _, err := os.Stat(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"); err == nil {
		src, err := d.SR()
		if err != nil {
			return nil, fmt.Errorf("store: reading spatial reference of %s: %v", path, err)
		}
		if !raster.SameSR(src, g.SR) {
			if t, err = src.NewTransform(g.SR); err != nil {
				return nil, fmt.Errorf("store: %s: %v", path, err)
			}
		}
	}

	type record struct {
		geom.Geom
	}
	var polys []geom.Polygonal
	for {
		var rec record
		if more := d.DecodeRow(&rec); !more {
			break
		}
		shape := rec.Geom
		if shape == nil {
			continue
		}
		if t != nil {
			if shape, err = shape.Transform(t); err != nil {
				return nil, fmt.Errorf("store: transforming %s: %v", path, err)
			}
		}
		p, ok := shape.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("store: shapefile %s contains %T but should contain polygons", path, shape)
		}
		polys = append(polys, p)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("store: reading shapefile %s: %v", path, err)
	}
	return raster.RasterizePolygons(ctx, g, polys)
}
