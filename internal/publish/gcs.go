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

package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	errPermissionDenied = errors.New("permission denied")
	errUnauthenticated  = errors.New("invalid authentication credentials")
	errNoBucket         = errors.New("bucket does not exist")
)

// GCSBucket is a Bucket in Google Cloud Storage.
type GCSBucket struct {
	*storage.BucketHandle
}

// NewGCSBucket returns the named bucket using the application default
// credentials, or the client options given instead.
func NewGCSBucket(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSBucket, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSBucket{client.Bucket(bucket)}, nil
}

// NewGCSBucketFromToken returns the named bucket accessed with an OAuth2
// access token.
func NewGCSBucketFromToken(ctx context.Context, bucket, accessToken string) (*GCSBucket, error) {
	token := oauth2.Token{TokenType: "Bearer", AccessToken: accessToken}
	return NewGCSBucket(ctx, bucket, option.WithTokenSource(oauth2.StaticTokenSource(&token)))
}

// Put writes r to the object key.
func (b *GCSBucket) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	w := b.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return storageError("writing object", err)
	}
	if err := w.Close(); err != nil {
		return storageError("finishing object", err)
	}
	return nil
}

// storageError adds a readable reason to authentication and permission
// failures.
func storageError(context string, err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%s: %w: %v", context, errNoBucket, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %v", context, errUnauthenticated, err)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", context, errPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", context, errNoBucket, err)
		}
	}
	return fmt.Errorf("%s: %w", context, err)
}
