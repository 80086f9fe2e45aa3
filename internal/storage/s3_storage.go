package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
)

// s3Storage implements IObjectStorage on S3 or any S3-compatible endpoint.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	buckets       map[string]string
}

// NewS3Storage creates the S3 backend. A custom endpoint (MinIO and friends)
// switches to path-style addressing.
func NewS3Storage(ctx context.Context, cfg *config.Config) (IObjectStorage, error) {
	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AwsS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AwsS3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		buckets: map[string]string{
			BucketAvatars:        cfg.AwsS3BucketAvatars,
			BucketPropertyImages: cfg.AwsS3BucketPropertyImages,
		},
	}, nil
}

func (s *s3Storage) physical(bucket string) (string, error) {
	name, ok := s.buckets[bucket]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	return name, nil
}

func (s *s3Storage) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	name, err := s.physical(bucket)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(name),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *s3Storage) Download(ctx context.Context, bucket, key string) (*Object, error) {
	name, err := s.physical(bucket)
	if err != nil {
		return nil, err
	}
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(name),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to download %s/%s: %w", bucket, key, err)
	}
	return &Object{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

func (s *s3Storage) Delete(ctx context.Context, bucket, key string) error {
	name, err := s.physical(bucket)
	if err != nil {
		return err
	}
	if _, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(name),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL prefers IMAGE_BASE_S3_URL (CDN or custom endpoint) and falls
// back to the virtual-hosted S3 URL.
func (s *s3Storage) PublicURL(bucket, key string) string {
	name, ok := s.buckets[bucket]
	if !ok {
		name = bucket
	}
	if s.cfg.ImageBaseS3URL != "" {
		return fmt.Sprintf("%s/%s/%s", s.cfg.ImageBaseS3URL, name, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", name, s.cfg.AwsRegion, key)
}

// GeneratePresignedPutURL returns a URL the client can PUT the object to.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, bucket, key, contentType string) (string, error) {
	name, err := s.physical(bucket)
	if err != nil {
		return "", err
	}
	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(name),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.cfg.UploadURLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", key, err)
	}

	log.Printf("Generated presigned URL for key: %s", key)
	return presignedReq.URL, nil
}
