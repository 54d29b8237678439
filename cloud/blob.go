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

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// newBackOff returns the retry policy for blob transfers.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

// retry runs op until it succeeds, returns a permanent error, or the
// retry policy or ctx gives up.
func retry(ctx context.Context, op backoff.Operation) error {
	return backoff.RetryNotify(op, backoff.WithContext(newBackOff(), ctx),
		func(err error, d time.Duration) {
			logrus.WithField("retry in", d.String()).Warn(err)
		},
	)
}

// permanent marks errors that retrying will not fix.
func permanent(err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound, gcerrors.PermissionDenied, gcerrors.InvalidArgument:
		return backoff.Permanent(err)
	}
	return err
}

// Download copies the blob at blobURL, and for shapefiles its
// associated files, into dir. It returns the path to the local copy
// of the requested file.
func Download(ctx context.Context, blobURL, dir string) (string, error) {
	var local []string
	for _, f := range ExpandShp(blobURL) {
		bucketName, key, err := SplitURL(f)
		if err != nil {
			return "", err
		}
		bucket, err := OpenBucket(ctx, bucketName)
		if err != nil {
			return "", err
		}
		p := filepath.Join(dir, filepath.Base(key))
		if err := readBlob(ctx, bucket, key, p); err != nil {
			return "", err
		}
		local = append(local, p)
	}
	return local[0], nil
}

// Upload copies the local file at path, and for shapefiles its
// associated files, to blobURL.
func Upload(ctx context.Context, path, blobURL string) error {
	files, urls := ExpandShp(path), ExpandShp(blobURL)
	if len(files) != len(urls) {
		return fmt.Errorf("cloud: uploading %s to %s: file types do not match", path, blobURL)
	}
	for i, f := range files {
		bucketName, key, err := SplitURL(urls[i])
		if err != nil {
			return err
		}
		bucket, err := OpenBucket(ctx, bucketName)
		if err != nil {
			return err
		}
		if err := writeBlob(ctx, bucket, key, f); err != nil {
			return err
		}
	}
	return nil
}

// readBlob copies the given blob from the given bucket to a local file,
// retrying transient failures.
func readBlob(ctx context.Context, bucket *blob.Bucket, key, path string) error {
	return retry(ctx, func() error {
		r, err := bucket.NewReader(ctx, key, nil)
		if err != nil {
			return permanent(fmt.Errorf("cloud: reading blob key %s: %w", key, err))
		}
		defer r.Close()
		w, err := os.Create(path)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("cloud: creating file for blob %s: %v", key, err))
		}
		if _, err = io.Copy(w, r); err != nil {
			w.Close()
			return fmt.Errorf("cloud: reading blob key %s: %v", key, err)
		}
		return w.Close()
	})
}

// writeBlob writes the given local file to the given bucket, retrying
// transient failures.
func writeBlob(ctx context.Context, bucket *blob.Bucket, key, path string) error {
	return retry(ctx, func() error {
		r, err := os.Open(path)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("cloud: opening file %s for upload: %v", path, err))
		}
		defer r.Close()
		w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
		if err != nil {
			return permanent(fmt.Errorf("cloud: creating writer for blob %s: %w", key, err))
		}
		if _, err = io.Copy(w, r); err != nil {
			w.Close()
			return fmt.Errorf("cloud: copying blob %s: %v", key, err)
		}
		if err = w.Close(); err != nil {
			return permanent(fmt.Errorf("cloud: writing blob %s: %w", key, err))
		}
		return nil
	})
}

// ExpandShp returns the given filename and, if it is a shapefile, the
// names of the other files that make up the shapefile.
func ExpandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if ext != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
