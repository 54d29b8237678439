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
	"os"
	"path/filepath"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/biomosaic/cloud"
)

type uploader struct {
	// files is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	files   [][2]string
	tempDir string
	dir     string
	err     error
}

// maybeUpload checks whether the given output file path refers to
// a blob storage location. If it does, then a temporary file location
// is returned. The file will then be uploaded to blob storage when
// the upload method is run.
func (u *uploader) maybeUpload(path string) string {
	if u.err != nil {
		return ""
	}
	if !cloud.IsBlob(path) {
		return path
	}
	if u.dir == "" {
		u.dir, u.err = os.MkdirTemp(u.tempDir, "biomosaic")
		if u.err != nil {
			return ""
		}
	}
	local := filepath.Join(u.dir, filepath.Base(path))
	u.files = append(u.files, [2]string{local, path})
	return local
}

// upload uploads the files and removes the temporary directory.
func (u *uploader) upload(ctx context.Context) error {
	if u.err != nil {
		return u.err
	}
	if u.dir != "" {
		defer os.RemoveAll(u.dir)
	}
	for _, f := range u.files {
		if err := cloud.Upload(ctx, f[0], f[1]); err != nil {
			return fmt.Errorf("biomosaic: uploading log file: %v", err)
		}
	}
	return nil
}

// newLogger returns a logger that writes to out and to the log file
// configured in cfg, which defaults to a file next to outputFile. The
// returned function closes the log file and uploads it if it is in blob
// storage.
func newLogger(ctx context.Context, cfg *viper.Viper, out io.Writer, outputFile string) (*logrus.Logger, func() error, error) {
	level, err := logrus.ParseLevel(cfg.GetString("LogLevel"))
	if err != nil {
		return nil, nil, fmt.Errorf("biomosaic: %v", err)
	}
	u := &uploader{tempDir: cfg.GetString("TempDir")}
	path := u.maybeUpload(checkLogFile(cfg.GetString("LogFile"), outputFile))
	if u.err != nil {
		return nil, nil, fmt.Errorf("biomosaic: creating temporary log directory: %v", u.err)
	}
	logfile, err := os.Create(path)
	if err != nil {
		os.RemoveAll(u.dir)
		return nil, nil, fmt.Errorf("biomosaic: problem creating log file: %v", err)
	}

	log := logrus.New()
	log.Out = io.MultiWriter(out, logfile)
	log.Level = level
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	}
	closeLog := func() error {
		if err := logfile.Close(); err != nil {
			return fmt.Errorf("biomosaic: closing log file: %v", err)
		}
		return u.upload(ctx)
	}
	return log, closeLog, nil
}
