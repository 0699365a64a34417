// Package ses sends notification messages through AWS SES v2.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/kmcoleman/bajarun-notify/internal/config"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
)

// Client is the SES v2 delivery client. It implements notify.Deliverer: any
// error from the SendEmail call is a transport failure, any non-error return
// is success. No provider status beyond that is inspected.
type Client struct {
	client  *sesv2.Client
	from    string
	replyTo string
}

// NewClient creates a delivery client. Static credentials are used when
// configured; otherwise the default chain applies.
func NewClient(ctx context.Context, cfg appconfig.SESConfig) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		client:  sesv2.NewFromConfig(awsCfg),
		from:    cfg.FromAddress,
		replyTo: cfg.ReplyTo,
	}, nil
}

// Send delivers one HTML message.
func (c *Client) Send(ctx context.Context, msg notify.OutboundMessage) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML)},
				},
			},
		},
	}
	if c.replyTo != "" {
		input.ReplyToAddresses = []string{c.replyTo}
	}

	out, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	if out.MessageId != nil {
		logger.Debug("ses accepted message", "message_id", *out.MessageId, "recipient", msg.To)
	}
	return nil
}
