package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store persists snapshots as objects in an S3 bucket. Each save writes a
// versioned key plus a latest key under the configured prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3 snapshot store.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "us-east-1"})
//	st := store.NewS3Store(client, "my-bucket").WithPrefix("weft/snapshots/")
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: "snapshots/",
	}
}

// WithPrefix sets the key prefix for snapshot objects.
func (s *S3Store) WithPrefix(prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s.prefix = prefix
	return s
}

// Save uploads snap to the versioned key and the latest key.
func (s *S3Store) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	for _, key := range []string{s.prefix + versionFile(snap.Version), s.latestKey()} {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("store: s3 upload %s failed: %w", key, err)
		}
	}
	return nil
}

// Load downloads the latest key.
func (s *S3Store) Load(ctx context.Context) (*Snapshot, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.latestKey()),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("store: s3 download failed: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("store: s3 read failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Prune deletes all but the newest keep versioned objects. The latest key
// is never deleted.
func (s *S3Store) Prune(ctx context.Context, keep int) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "snapshot-"),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("store: s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	if keep < 0 {
		keep = 0
	}
	if len(keys) <= keep {
		return nil
	}

	sort.Strings(keys)
	for _, key := range keys[:len(keys)-keep] {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("store: s3 delete %s failed: %w", key, err)
		}
	}
	return nil
}

// List returns the versions of all stored snapshots, ascending.
func (s *S3Store) List(ctx context.Context) ([]uint64, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "snapshot-"),
	})

	var versions []uint64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if v, ok := parseVersionFile(strings.TrimPrefix(*obj.Key, s.prefix)); ok {
				versions = append(versions, v)
			}
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// Close is a no-op for S3 stores.
func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) latestKey() string {
	return s.prefix + latestFile
}

var (
	_ Store  = (*S3Store)(nil)
	_ Lister = (*S3Store)(nil)
)
