/*
Copyright (C) 2026  The Lakedoc Authors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config configures a bucket-backed Store. This mirrors memcp's
// storage/persistence-s3.go S3Factory, generalized from memcp's per-shard
// column layout to lakedoc's flat key/value contract.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string // custom endpoint for S3-compatible storage (MinIO, R2, ...)
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3 is a blobstore.Store backed by an S3-compatible object store.
// ifNoneMatch:"*" is implemented with S3's native conditional-write
// header (PutObjectInput.IfNoneMatch = "*"), which S3 and most
// S3-compatible stores honor atomically — this is the backend this
// whole engine's OCC scheme was designed around (spec §4.A, §6).
type S3 struct {
	cfg S3Config

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

func NewS3(cfg S3Config) *S3 {
	return &S3{cfg: cfg}
}

func (s *S3) ensureOpen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	var opts []func(*config.LoadOptions) error
	if s.cfg.Region != "" {
		opts = append(opts, config.WithRegion(s.cfg.Region))
	}
	if s.cfg.AccessKeyID != "" && s.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKeyID, s.cfg.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("lakedoc: loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if s.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(s.cfg.Endpoint) })
	}
	if s.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	s.client = s3.NewFromConfig(cfg, s3Opts...)
	s.opened = true
	return nil
}

func (s *S3) key(name string) string {
	pfx := strings.TrimSuffix(s.cfg.Prefix, "/")
	if pfx == "" {
		return name
	}
	return pfx + "/" + name
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

func (s *S3) Read(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *S3) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return resp.Body, nil
}

func (s *S3) Write(ctx context.Context, key string, data []byte, opts WriteOptions) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(data),
	}
	if opts.IfNoneMatch == "*" {
		input.IfNoneMatch = aws.String("*")
	}
	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return false, err
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return true, nil
}

func (s *S3) List(ctx context.Context, prefix string) (ListResult, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return ListResult{}, err
	}
	fullPrefix := s.key(prefix)
	base := s.key("")
	var out ListResult
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.cfg.Bucket),
		Prefix:    aws.String(fullPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return ListResult{}, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		for _, obj := range page.Contents {
			out.Keys = append(out.Keys, strings.TrimPrefix(aws.ToString(obj.Key), base))
		}
		for _, cp := range page.CommonPrefixes {
			out.CommonPrefixes = append(out.CommonPrefixes, strings.TrimPrefix(aws.ToString(cp.Prefix), base))
		}
	}
	return out, nil
}
