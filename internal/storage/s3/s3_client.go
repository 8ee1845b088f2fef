// Package s3 stores the original policy documents (PDF or markdown uploads)
// that jobs are registered with. Snapshots and bundles live on the local
// snapshot store; only source document bytes go through here.
package s3

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"policonv/internal/config"
	"policonv/internal/port"
)

// defaultContentType is used when a caller registers a job without a MIME
// type; extraction sniffs the real type from the bytes later.
const defaultContentType = "application/octet-stream"

type documentStore struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	uploader      *manager.Uploader
	presignExpiry time.Duration
}

// NewS3Client creates the S3-backed document store.
func NewS3Client(cfg *config.S3Config) (port.ObjectStorage, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		// MinIO / localstack style endpoints need path addressing.
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &documentStore{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		uploader:      manager.NewUploader(client),
		presignExpiry: time.Duration(cfg.PresignExpiry) * time.Second,
	}, nil
}

func (s *documentStore) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	contentType := input.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(input.Bucket),
		Key:         aws.String(input.Key),
		Body:        input.Body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading document %s: %w", input.Key, err)
	}

	etag := ""
	if result.ETag != nil {
		etag = *result.ETag
	}
	log.Printf("documentStore.Upload: stored %s (%d bytes, %s)", input.Key, input.Size, contentType)

	return &port.UploadOutput{
		Location: result.Location,
		ETag:     etag,
	}, nil
}

func (s *documentStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("downloading document %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", key, err)
	}
	return data, nil
}

func (s *documentStore) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}

// GetPresignedURL returns a time-limited download link for an uploaded
// document. Keys are laid out as uploads/<jobID>/<filename>, so the link is
// served as an attachment under the original filename.
func (s *documentStore) GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error) {
	expiry := time.Duration(expirySeconds) * time.Second
	if expirySeconds <= 0 {
		expiry = s.presignExpiry
	}

	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(key))),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning document %s: %w", key, err)
	}
	return result.URL, nil
}
