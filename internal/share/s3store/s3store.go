// Package s3store keeps bundles in an S3 compatible bucket.
// Each bundle is two objects: <prefix><id>.zip and the <prefix><id>.json sidecar.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/share"
)

const (
	bundleExt   = ".zip"
	metadataExt = ".json"

	defaultRegion = "us-east-1"
)

// API is the subset of *s3.Client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(
		ctx context.Context,
		in *s3.DeleteObjectInput,
		opts ...func(*s3.Options),
	) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(
		ctx context.Context,
		in *s3.ListObjectsV2Input,
		opts ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
}

// Config selects the bucket and how to reach it. Empty keys fall back to the default credential chain.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // MinIO, LocalStack
	PathStyle bool
	AccessKey string
	SecretKey string
}

type Store struct {
	api    API
	bucket string
	prefix string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", fault.ErrMissingRequirements)
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	slog.Debug("s3 store", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region, "endpoint", cfg.Endpoint)

	return NewWithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) key(id, ext string) string {
	return s.prefix + id + ext
}

func (s *Store) Put(ctx context.Context, meta *share.Metadata, body io.Reader) error {
	if !share.ValidID(meta.ID) {
		return fmt.Errorf("%w: %q", share.ErrInvalidID, meta.ID)
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(meta.ID, bundleExt)),
		Body:          body,
		ContentLength: aws.Int64(meta.Size),
		ContentType:   aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", meta.ID, err)
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(meta.ID, metadataExt)),
		Body:        bytes.NewReader(encoded),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		_ = s.deleteObject(ctx, s.key(meta.ID, bundleExt))

		return fmt.Errorf("uploading %s metadata: %w", meta.ID, err)
	}

	return nil
}

func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, *share.Metadata, error) {
	meta, err := s.Stat(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, bundleExt)),
	})
	if err != nil {
		return nil, nil, s.mapError(id, err)
	}

	return out.Body, meta, nil
}

func (s *Store) Stat(ctx context.Context, id string) (*share.Metadata, error) {
	if !share.ValidID(id) {
		return nil, fmt.Errorf("%w: %q", share.ErrInvalidID, id)
	}

	return s.readMetadata(ctx, id, s.key(id, metadataExt))
}

func (s *Store) readMetadata(ctx context.Context, id, key string) (*share.Metadata, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.mapError(id, err)
	}
	defer out.Body.Close()

	var meta share.Metadata
	if err = json.NewDecoder(out.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", fault.ErrInvalidJSON, key, err)
	}

	meta.Backfill(id)

	if meta.Size == 0 {
		head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(meta.ID, bundleExt)),
		})
		if err == nil {
			meta.Size = aws.ToInt64(head.ContentLength)
		}
	}

	return &meta, nil
}

// List reads every sidecar under the prefix. Unreadable sidecars are skipped.
func (s *Store) List(ctx context.Context) ([]*share.Metadata, error) {
	var out []*share.Metadata

	err := s.walk(ctx, func(obj s3types.Object) error {
		key := aws.ToString(obj.Key)
		if !strings.HasSuffix(key, metadataExt) {
			return nil
		}

		id := strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), metadataExt)
		if !share.ValidID(id) {
			return nil
		}

		meta, err := s.readMetadata(ctx, id, key)
		if err != nil {
			slog.Warn("skipping unreadable metadata", "key", key, "error", err)

			return nil //nolint:nilerr
		}

		out = append(out, meta)

		return nil
	})

	return out, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if !share.ValidID(id) {
		return fmt.Errorf("%w: %q", share.ErrInvalidID, id)
	}

	// DeleteObject succeeds on missing keys.
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, metadataExt)),
	})
	if err != nil {
		return s.mapError(id, err)
	}

	if err = s.deleteObject(ctx, s.key(id, metadataExt)); err != nil {
		return err
	}

	return s.deleteObject(ctx, s.key(id, bundleExt))
}

func (s *Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}

	return nil
}

// Usage sums the size of the archives under the prefix.
func (s *Store) Usage(ctx context.Context) (int64, error) {
	var total int64

	err := s.walk(ctx, func(obj s3types.Object) error {
		if strings.HasSuffix(aws.ToString(obj.Key), bundleExt) {
			total += aws.ToInt64(obj.Size)
		}

		return nil
	})

	return total, err
}

func (s *Store) walk(ctx context.Context, visit func(s3types.Object) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("%w: listing s3://%s/%s: %w", fault.ErrReadFailure, s.bucket, s.prefix, err)
		}

		for _, obj := range page.Contents {
			if err = visit(obj); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Store) mapError(id string, err error) error {
	var (
		noSuchKey *s3types.NoSuchKey
		notFound  *s3types.NotFound
	)

	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", share.ErrNotFound, id)
	}

	return fmt.Errorf("%w: s3://%s/%s: %w", fault.ErrReadFailure, s.bucket, s.key(id, ""), err)
}
