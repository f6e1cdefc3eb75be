package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
)

// defaultOpTimeout bounds every storage call so a hung backend cannot pin a
// request goroutine; the session stays intact and the client retries.
const defaultOpTimeout = 30 * time.Second

// Seams for tests, following the SDK construction path.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignUploadPart = func(pc *s3.PresignClient, ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignUploadPart(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Config carries the settings for the S3-compatible backend (MinIO in
// development).
type S3Config struct {
	Region       string
	Bucket       string
	BaseEndpoint string
	RootUser     string
	RootPassword string
}

// S3Blob implements Blob against an S3-compatible object store.
type S3Blob struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	endpoint  string
	timeout   time.Duration
	logger    logging.Logger
}

// NewS3Blob builds the S3 client from static credentials and a base
// endpoint, the same way the rest of the backend talks to MinIO.
func NewS3Blob(ctx context.Context, cfg S3Config, logger logging.Logger) (*S3Blob, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.RootUser,
			cfg.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Blob{
		client:    client,
		presigner: newS3PresignClient(client),
		bucket:    cfg.Bucket,
		endpoint:  strings.TrimRight(cfg.BaseEndpoint, "/"),
		timeout:   defaultOpTimeout,
		logger:    logger.With("module", "s3_blob"),
	}, nil
}

// RandomStorageKey returns a fresh object key scoped to a conversation.
func RandomStorageKey(conversationID string) string {
	return fmt.Sprintf("conversations/%s/%s", conversationID, uuid.New())
}

func (s *S3Blob) PutObject(ctx context.Context, in PutInput) (*ObjectRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(in.Key),
		Body:          bytes.NewReader(in.Body),
		ContentLength: aws.Int64(int64(len(in.Body))),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if len(in.Metadata) > 0 {
		input.Metadata = in.Metadata
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, Classify("put_object", err)
	}

	s.logger.Info(ctx, "object stored", "key", in.Key, "size", len(in.Body))
	return &ObjectRef{Key: in.Key, URL: s.objectURL(in.Key)}, nil
}

func (s *S3Blob) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", Classify("create_multipart_upload", err)
	}

	s.logger.Info(ctx, "multipart upload opened", "key", key, "storage_upload_id", *out.UploadId)
	return *out.UploadId, nil
}

func (s *S3Blob) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	req, err := presignUploadPart(s.presigner, ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", Classify("presign_upload_part", err)
	}

	return req.URL, nil
}

func (s *S3Blob) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (*ObjectRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}

	out, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return nil, Classify("complete_multipart_upload", err)
	}

	url := s.objectURL(key)
	if out.Location != nil && *out.Location != "" {
		url = *out.Location
	}

	s.logger.Info(ctx, "multipart upload completed", "key", key, "parts", len(parts))
	return &ObjectRef{Key: key, URL: url}, nil
}

func (s *S3Blob) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return Classify("abort_multipart_upload", err)
	}

	s.logger.Info(ctx, "multipart upload aborted", "key", key, "storage_upload_id", uploadID)
	return nil
}

func (s *S3Blob) PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := presignGetObject(s.presigner, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", Classify("presign_get_object", err)
	}

	return req.URL, nil
}

func (s *S3Blob) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}
