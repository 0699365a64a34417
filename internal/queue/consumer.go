// Package queue consumes document-store change notifications from SQS.
//
// The host application publishes one message per create/update on a watched
// collection; each message carries the collection name, event type, document
// id, and the document's full field set. The consumer feeds them to the event
// processor sequentially.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/observability"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
)

// Handler processes one change event. A returned error leaves the message on
// the queue for transport-level redrive; the processor only errors before any
// dispatch has happened, so redriving is safe.
type Handler func(ctx context.Context, ev domain.ChangeEvent) error

// Consumer long-polls one SQS queue for change events.
type Consumer struct {
	client   *sqs.Client
	queueURL string
	handler  Handler
	done     chan struct{}
}

// NewConsumer creates a change-feed consumer. An empty profile uses the
// default AWS credential chain.
func NewConsumer(ctx context.Context, queueURL, region, profile string, handler Handler) (*Consumer, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Consumer{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		handler:  handler,
		done:     make(chan struct{}),
	}, nil
}

// NewConsumerWithClient wires a consumer onto an existing SQS client.
func NewConsumerWithClient(client *sqs.Client, queueURL string, handler Handler) *Consumer {
	return &Consumer{client: client, queueURL: queueURL, handler: handler, done: make(chan struct{})}
}

// Start begins polling in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	logger.Info("change-feed consumer started", "queue", c.queueURL)
	go c.poll(ctx)
}

// Stop signals the polling loop to exit after the current receive.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("change-feed receive failed", "error", err.Error())
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			if msg.Body == nil {
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(*msg.Body), &ev); err != nil {
				// Malformed payloads are deleted so they don't redrive forever.
				logger.Warn("change-feed bad message discarded", "error", err.Error())
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			observability.EventsProcessed.WithLabelValues(ev.Collection, string(ev.Event)).Inc()
			if err := c.handler(ctx, ev); err != nil {
				logger.Error("change-feed handler failed",
					"collection", ev.Collection,
					"document_id", ev.DocumentID,
					"error", err.Error())
				continue
			}
			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		logger.Warn("change-feed delete failed", "error", err.Error())
	}
}
