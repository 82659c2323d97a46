// Package s3 provides a cluster store backed by an S3-compatible object
// storage service. Each cluster is one JSON object under a key prefix.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/gridship/gridship/internal/repository"
)

// Store persists cluster records as S3 objects.
type Store struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// New creates a store writing to the given bucket. An optional endpoint
// overrides the AWS default for S3-compatible services. The key prefix is
// normalized to end with a single slash.
func New(ctx context.Context, bucket, prefix, region, endpoint string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{s3: client, bucket: bucket, prefix: prefix}, nil
}

func (s *Store) key(name string) string {
	return s.prefix + name + ".json"
}

func (s *Store) SaveOrUpdate(ctx context.Context, cluster repository.ClusterRecord) error {
	data, err := json.Marshal(cluster)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster %s: %w", cluster.Name, err)
	}
	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(cluster.Name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to save cluster %s: %w", cluster.Name, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (repository.ClusterRecord, error) {
	result, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return repository.ClusterRecord{}, repository.ErrNotFound
		}
		return repository.ClusterRecord{}, fmt.Errorf("failed to get cluster %s: %w", name, err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return repository.ClusterRecord{}, fmt.Errorf("failed to read cluster %s: %w", name, err)
	}
	var rec repository.ClusterRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		return repository.ClusterRecord{}, fmt.Errorf("failed to unmarshal cluster %s: %w", name, err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list clusters: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			name := strings.TrimPrefix(*obj.Key, s.prefix)
			names = append(names, strings.TrimSuffix(name, ".json"))
		}
	}
	return names, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete cluster %s: %w", name, err)
	}
	return nil
}

// isNoSuchKey reports whether the error means the object does not exist.
func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	// S3-compatible services may not return the exact SDK error type.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
