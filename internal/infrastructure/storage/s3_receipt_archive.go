// Package storage archives printed sale receipts in S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/erp/salesdesk/internal/infrastructure/config"
	"go.uber.org/zap"
)

const receiptContentType = "application/pdf"

var _ checkout.ReceiptArchive = (*S3ReceiptArchive)(nil)

// objectAPI is the subset of *s3.Client the archive needs
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3ReceiptArchive stores receipts under <prefix>/<yyyy>/<mm>/<dd>/venda_<number>.pdf.
// Works against AWS S3, MinIO, RustFS and similar.
type S3ReceiptArchive struct {
	client objectAPI
	bucket string
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// S3ReceiptArchiveOption is a functional option for configuring S3ReceiptArchive
type S3ReceiptArchiveOption func(*S3ReceiptArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ReceiptArchiveOption {
	return func(a *S3ReceiptArchive) {
		a.logger = logger
	}
}

// WithClock overrides the time source used for key dates
func WithClock(now func() time.Time) S3ReceiptArchiveOption {
	return func(a *S3ReceiptArchive) {
		a.now = now
	}
}

// withObjectAPI swaps the S3 client, used by tests
func withObjectAPI(api objectAPI) S3ReceiptArchiveOption {
	return func(a *S3ReceiptArchive) {
		a.client = api
	}
}

// NewS3ReceiptArchive builds the archive from configuration.
// Static credentials are used when both keys are set, otherwise the default AWS chain.
func NewS3ReceiptArchive(ctx context.Context, cfg *config.StorageConfig, opts ...S3ReceiptArchiveOption) (*S3ReceiptArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	archive := &S3ReceiptArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *S3ReceiptArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating receipt bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Store uploads receipt and returns its object key.
func (a *S3ReceiptArchive) Store(ctx context.Context, order sales.Order, receipt []byte) (string, error) {
	if len(receipt) == 0 {
		return "", errors.New("receipt is empty")
	}

	key := a.KeyFor(order)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(receipt),
		ContentLength: aws.Int64(int64(len(receipt))),
		ContentType:   aws.String(receiptContentType),
		Metadata: map[string]string{
			"order-id":     order.ID.String(),
			"order-number": order.DisplayNumber(),
			"order-status": string(order.Status),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt %s: %w", key, err)
	}

	a.logger.Debug("Receipt archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(receipt)),
	)
	return key, nil
}

// KeyFor returns the object key a receipt for order is stored under
func (a *S3ReceiptArchive) KeyFor(order sales.Order) string {
	day := a.now().UTC().Format("2006/01/02")
	return path.Join(a.prefix, day, order.ReceiptFileName())
}

// Bucket returns the bucket name
func (a *S3ReceiptArchive) Bucket() string {
	return a.bucket
}
