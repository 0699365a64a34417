// Package archive exports outcome log snapshots to S3 for long-term retention.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/kmcoleman/bajarun-notify/internal/config"
	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
)

// Exporter writes outcome log exports to an S3 bucket.
type Exporter struct {
	client *s3.Client
	bucket string
}

// New creates an S3 exporter from archive configuration.
func New(ctx context.Context, cfg appconfig.ArchiveConfig) (*Exporter, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Exporter{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
	}, nil
}

// NewWithClient wires an exporter onto an existing S3 client.
func NewWithClient(client *s3.Client, bucket string) *Exporter {
	return &Exporter{client: client, bucket: bucket}
}

// ExportOutcomes writes the given entries as a dated JSON object and returns
// the object key.
func (e *Exporter) ExportOutcomes(ctx context.Context, entries []domain.OutcomeLogEntry) (string, error) {
	key := fmt.Sprintf("outcome-logs/%s/export-%d.json",
		time.Now().UTC().Format("2006/01/02"), time.Now().UTC().UnixMilli())

	jsonData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling entries: %w", err)
	}

	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}

	logger.Info("outcome log exported", "bucket", e.bucket, "key", key, "entries", len(entries))
	return key, nil
}
