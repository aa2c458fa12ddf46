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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the S3 client.  Empty fields use the AWS defaults.
type S3Options struct {
	Region string
	// Endpoint selects an S3 compatible service such as MinIO.
	Endpoint  string
	PathStyle bool
	// AccessKeyID and SecretAccessKey override the default credential chain.
	AccessKeyID     string
	SecretAccessKey string
	// HTTPClient replaces the default HTTP client.
	HTTPClient aws.HTTPClient
}

// S3OptionsFromEnv reads PARAVIEWER_S3_REGION, PARAVIEWER_S3_ENDPOINT and
// PARAVIEWER_S3_PATH_STYLE.  Credentials come from the AWS default chain.
func S3OptionsFromEnv() S3Options {
	return S3Options{
		Region:    os.Getenv("PARAVIEWER_S3_REGION"),
		Endpoint:  os.Getenv("PARAVIEWER_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("PARAVIEWER_S3_PATH_STYLE"), "true"),
	}
}

// S3Bucket is a Bucket in Amazon S3 or a compatible service.
type S3Bucket struct {
	client *s3.Client
	bucket string
}

// NewS3Bucket returns the named bucket.
func NewS3Bucket(ctx context.Context, bucket string, opts S3Options) (*S3Bucket, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.HTTPClient != nil {
			o.HTTPClient = opts.HTTPClient
		}
	})
	return &S3Bucket{client: client, bucket: bucket}, nil
}

// Put writes r to the object key.
func (b *S3Bucket) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        r,
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", b.bucket, key, err)
	}
	return nil
}
