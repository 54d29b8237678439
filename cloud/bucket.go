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

// Package cloud opens blob storage buckets for reading inputs and
// writing outputs.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// memBuckets holds the in-memory buckets that have been opened, so
// that a bucket opened twice by name has the same contents.
var (
	memBuckets   = make(map[string]*blob.Bucket)
	memBucketsMx sync.Mutex
)

// IsBlob returns whether the given path represents a blob
// (i.e., if it starts with 'gs://', 's3://', 'mem://' or 'file://').
func IsBlob(path string) bool {
	for _, p := range []string{"gs://", "s3://", "mem://", "file://"} {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The currently accepted storage providers are "file" for a directory
// of the local filesystem, "mem" for an in-memory bucket (e.g., for
// testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket: %v", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.OpenBucket(u.Host+u.Path, nil)
	case "mem":
		memBucketsMx.Lock()
		defer memBucketsMx.Unlock()
		b, ok := memBuckets[u.Host]
		if !ok {
			b = memblob.OpenBucket(nil)
			memBuckets[u.Host] = b
		}
		return b, nil
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("cloud: opening bucket: invalid provider %q", u.Scheme)
	}
}

// SplitURL splits a blob URL into the name of its bucket and the key of
// the blob within the bucket. For the "file" provider, the bucket is
// the directory that contains the file.
func SplitURL(blobURL string) (bucketName, key string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("cloud: parsing blob URL: %v", err)
	}
	if !IsBlob(blobURL) {
		return "", "", fmt.Errorf("cloud: %q is not a blob URL", blobURL)
	}
	if u.Scheme == "file" {
		p := u.Host + u.Path
		return u.Scheme + "://" + path.Dir(p), path.Base(p), nil
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("cloud: blob URL %q has no key", blobURL)
	}
	return u.Scheme + "://" + u.Host, key, nil
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, fmt.Errorf("cloud: creating s3 session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}
