// Package attachments removes files stored alongside nodes.
package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"kbase/internal/config"
	"kbase/internal/domain/services"
)

// maxDeleteBatch is the DeleteObjects per-request limit
const maxDeleteBatch = 1000

// ObjectStore is the subset of the S3 client the cleaner needs
type ObjectStore interface {
	s3.ListObjectsV2APIClient
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Cleaner deletes every object under <prefix>/<nodeID>/
type S3Cleaner struct {
	client ObjectStore
	bucket string
	prefix string
	logger *slog.Logger
}

var _ services.AttachmentCleaner = (*S3Cleaner)(nil)

// NewS3Cleaner creates a cleaner over an existing client
func NewS3Cleaner(client ObjectStore, bucket, prefix string, logger *slog.Logger) *S3Cleaner {
	return &S3Cleaner{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// NewCleaner builds the cleaner the config asks for: a no-op when no bucket is
// configured, otherwise an S3 cleaner.
func NewCleaner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.AttachmentCleaner, error) {
	if cfg.AttachmentsBucket == "" {
		logger.Info("attachment cleanup disabled", "reason", "ATTACHMENTS_BUCKET not set")
		return NoopCleaner{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Cleaner(client, cfg.AttachmentsBucket, cfg.AttachmentsPrefix, logger), nil
}

// KeyPrefix is the folder holding a node's attachments
func (c *S3Cleaner) KeyPrefix(nodeID string) string {
	if c.prefix == "" {
		return nodeID + "/"
	}
	return c.prefix + "/" + nodeID + "/"
}

// DeleteForNode implements services.AttachmentCleaner
func (c *S3Cleaner) DeleteForNode(ctx context.Context, nodeID string) error {
	prefix := c.KeyPrefix(nodeID)
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var pending []types.ObjectIdentifier
	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list attachments %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			pending = append(pending, types.ObjectIdentifier{Key: obj.Key})
			if len(pending) == maxDeleteBatch {
				if err := c.deleteBatch(ctx, pending); err != nil {
					return err
				}
				deleted += len(pending)
				pending = pending[:0]
			}
		}
	}

	if len(pending) > 0 {
		if err := c.deleteBatch(ctx, pending); err != nil {
			return err
		}
		deleted += len(pending)
	}

	if deleted > 0 {
		c.logger.Info("attachments deleted", "node_id", nodeID, "count", deleted)
	}
	return nil
}

func (c *S3Cleaner) deleteBatch(ctx context.Context, objects []types.ObjectIdentifier) error {
	out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(c.bucket),
		Delete: &types.Delete{
			Objects: append([]types.ObjectIdentifier(nil), objects...),
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("delete attachments: %d failed, first %s: %s",
			len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}

// NoopCleaner is used when attachments are not configured
type NoopCleaner struct{}

// DeleteForNode implements services.AttachmentCleaner
func (NoopCleaner) DeleteForNode(context.Context, string) error { return nil }
