package multipart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures the S3-compatible RemoteStore implementation.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // non-empty for S3-compatible stores (MinIO, etc.)
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an aws-sdk-go-v2 S3 client from cfg, supporting
// S3-compatible endpoints via a custom BaseEndpoint and path-style
// addressing, the same pattern the teacher's content store uses for
// MinIO/Ceph-compatible backends.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3RemoteStore implements RemoteStore against an S3-compatible bucket.
type S3RemoteStore struct {
	client *s3.Client
	bucket string
}

// NewS3RemoteStore returns a RemoteStore backed by client/bucket.
func NewS3RemoteStore(client *s3.Client, bucket string) *S3RemoteStore {
	return &S3RemoteStore{client: client, bucket: bucket}
}

func (s *S3RemoteStore) PreMultipartUpload(ctx context.Context, path string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3RemoteStore) UploadPart(ctx context.Context, path, uploadID string, partNum int, data []byte) (string, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(path),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(int32(partNum)),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3RemoteStore) CopyPart(ctx context.Context, path, uploadID string, partNum int, sourceRange Interval) (string, error) {
	copySource := fmt.Sprintf("%s/%s", s.bucket, path)
	byteRange := fmt.Sprintf("bytes=%d-%d", sourceRange.Start, sourceRange.End()-1)

	out, err := s.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(path),
		UploadId:        aws.String(uploadID),
		PartNumber:      aws.Int32(int32(partNum)),
		CopySource:      aws.String(copySource),
		CopySourceRange: aws.String(byteRange),
	})
	if err != nil {
		return "", err
	}
	if out.CopyPartResult == nil {
		return "", fmt.Errorf("%w: empty CopyPartResult", ErrIO)
	}
	return aws.ToString(out.CopyPartResult.ETag), nil
}

func (s *S3RemoteStore) CompleteMultipart(ctx context.Context, path, uploadID string, parts []CompletedPart) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(int32(p.PartNum)),
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return aws.ToInt32(completed[i].PartNumber) < aws.ToInt32(completed[j].PartNumber)
	})

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(path),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	return err
}

func (s *S3RemoteStore) AbortMultipart(ctx context.Context, path, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(path),
		UploadId: aws.String(uploadID),
	})
	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return nil
	}
	return err
}
