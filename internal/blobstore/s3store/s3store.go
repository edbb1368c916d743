// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package s3store is the production Store backend, backed by AWS S3
// (or an S3-compatible endpoint) via aws-sdk-go-v2.
package s3store

import (
	"context"
	"fmt"
	"io"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kadirpekel/caseflow/internal/model"
)

type Store struct {
	c      *s3.Client
	bucket string
}

// New builds a Store against bucket in region, loading credentials from
// the default AWS credential chain (environment, shared config, EC2/ECS
// role). See config.StorageConfig for the bucket/region fields that feed
// this.
func New(ctx context.Context, bucket, region string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Store{c: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (s *Store) Put(ctx context.Context, key string, content io.Reader, contentType string) (model.BlobRef, error) {
	out, err := s.c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        content,
		ContentType: &contentType,
	})
	if err != nil {
		return model.BlobRef{}, fmt.Errorf("putting object %s: %w", key, err)
	}
	ref := model.BlobRef{Key: key, Bucket: s.bucket}
	if out.VersionId != nil {
		ref.VersionID = *out.VersionId
	}
	return ref, nil
}

func (s *Store) Get(ctx context.Context, ref model.BlobRef) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{Bucket: &s.bucket, Key: &ref.Key}
	if ref.VersionID != "" {
		input.VersionId = &ref.VersionID
	}
	out, err := s.c.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("getting object %s: %w", ref.Key, err)
	}
	return out.Body, nil
}

// PresignGET returns a time-limited HTTPS URL the Ingress API hands to
// a browser for preview/download, so the document bytes never transit
// through the caseflow process itself.
func (s *Store) PresignGET(ctx context.Context, ref model.BlobRef, expiry time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.c)
	input := &s3.GetObjectInput{Bucket: &s.bucket, Key: &ref.Key}
	if ref.VersionID != "" {
		input.VersionId = &ref.VersionID
	}
	req, err := presignClient.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning GET for %s: %w", ref.Key, err)
	}
	return req.URL, nil
}

func (s *Store) Delete(ctx context.Context, ref model.BlobRef) error {
	if _, err := s.c.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &ref.Key}); err != nil {
		return fmt.Errorf("deleting object %s: %w", ref.Key, err)
	}
	return nil
}

// DeletePrefix lists and deletes every object under prefix, batching
// the delete requests up to S3's 1000-key-per-call limit.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	var continuationToken *string
	for {
		page, err := s.c.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("listing objects under %s: %w", prefix, err)
		}
		if len(page.Contents) > 0 {
			var ids []s3.ObjectIdentifier
			for _, obj := range page.Contents {
				ids = append(ids, s3.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := s.c.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: &s.bucket,
				Delete: &s3.Delete{Objects: ids},
			}); err != nil {
				return fmt.Errorf("batch deleting objects under %s: %w", prefix, err)
			}
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		continuationToken = page.NextContinuationToken
	}
}
