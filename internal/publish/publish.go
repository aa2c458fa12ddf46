// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package publish uploads a generated site to Google Cloud Storage or Amazon
// S3 so that it can be served in hosted mode.
package publish

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/googlegenomics/paraviewer/internal/config"
)

// Bucket stores objects by key.
type Bucket interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
}

// parallelUploads bounds the number of concurrent object uploads.
const parallelUploads = 8

var contentTypes = map[string]string{
	".bam":  "application/octet-stream",
	".css":  "text/css; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".png":  "image/png",
}

// ContentType returns the content type stored with the file name.
func ContentType(name string) string {
	ext := path.Ext(name)
	if t, ok := contentTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Open returns the bucket and key prefix named by a gs:// or s3:// URL.  GCS
// uses PARAVIEWER_GCS_ACCESS_TOKEN when set and the application default
// credentials otherwise.
func Open(ctx context.Context, rawURL string) (Bucket, string, error) {
	scheme, bucket, prefix, err := config.ParsePublishURL(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	switch scheme {
	case "gs":
		if token := os.Getenv("PARAVIEWER_GCS_ACCESS_TOKEN"); token != "" {
			b, err := NewGCSBucketFromToken(ctx, bucket, token)
			return b, prefix, err
		}
		b, err := NewGCSBucket(ctx, bucket)
		return b, prefix, err
	default:
		b, err := NewS3Bucket(ctx, bucket, S3OptionsFromEnv())
		return b, prefix, err
	}
}

// Upload copies every file below dir to dst under prefix and returns the
// number of files uploaded.
func Upload(ctx context.Context, dst Bucket, prefix, dir string) (int, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", dir, err)
	}

	var uploaded atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelUploads)
	for _, file := range files {
		file := file
		eg.Go(func() error {
			rel, err := filepath.Rel(dir, file)
			if err != nil {
				return err
			}
			key := path.Join(prefix, filepath.ToSlash(rel))
			if err := put(ctx, dst, key, file); err != nil {
				return fmt.Errorf("uploading %s: %w", key, err)
			}
			uploaded.Add(1)
			slog.Debug("Uploaded", "key", key)
			return nil
		})
	}
	err = eg.Wait()
	return int(uploaded.Load()), err
}

func put(ctx context.Context, dst Bucket, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return dst.Put(ctx, key, ContentType(key), f)
}
