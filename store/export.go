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

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/biomosaic/cloud"
	"github.com/spatialmodel/biomosaic/raster"
)

// Exporter writes layers as COARDS NetCDF files to local paths or blob
// storage.
type Exporter struct {
	// TempDir is where files are staged before upload. If empty, the
	// system temporary directory is used.
	TempDir string

	Log logrus.FieldLogger
}

func (e *Exporter) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Export checks that l is on the grid specified by spec and writes it to
// dest, which can be a local path or a blob URL such as
// "gs://bucket/mosaic.nc".
func (e *Exporter) Export(ctx context.Context, l *raster.Layer, spec GridSpec, dest string) error {
	g, err := spec.Grid()
	if err != nil {
		return err
	}
	if !l.Grid.Aligned(g) {
		return fmt.Errorf("store: exporting to %s: layer grid %s does not match export grid %s: %w",
			dest, l.Grid.Name, g.Name, raster.ErrGridMismatch)
	}
	if err := l.Validate(); err != nil {
		return fmt.Errorf("store: exporting to %s: %v", dest, err)
	}
	if err := e.Write(ctx, l, dest); err != nil {
		return err
	}
	e.log().WithFields(logrus.Fields{
		"destination": dest,
		"grid":        g.Name,
		"bands":       l.Bands(),
	}).Info("store: exported layer")
	return nil
}

// Write writes l to dest, which can be a local path or a blob URL, on
// whatever grid l is on.
func (e *Exporter) Write(ctx context.Context, l *raster.Layer, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cloud.IsBlob(dest) {
		return writeFile(os.ExpandEnv(dest), l)
	}
	dir, err := os.MkdirTemp(e.TempDir, "biomosaic")
	if err != nil {
		return fmt.Errorf("store: creating temporary export directory: %v", err)
	}
	defer os.RemoveAll(dir)
	local := filepath.Join(dir, filepath.Base(dest))
	if err := writeFile(local, l); err != nil {
		return err
	}
	if err := cloud.Upload(ctx, local, dest); err != nil {
		return fmt.Errorf("store: writing %s: %v", dest, err)
	}
	return nil
}

func writeFile(path string, l *raster.Layer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: creating %s: %v", path, err)
	}
	if err := raster.WriteCOARDS(f, l); err != nil {
		f.Close()
		return fmt.Errorf("store: writing %s: %v", path, err)
	}
	return f.Close()
}
