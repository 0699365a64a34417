package dynamo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/store"
)

// outcomeQueryPage bounds how many raw items one listing reads before
// client-side filtering.
const outcomeQueryPage = 500

type outcomeItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	domain.OutcomeLogEntry
}

// Append writes one immutable outcome log entry. The sort key embeds the
// entry id after the timestamp so two attempts in the same nanosecond never
// overwrite each other.
func (s *Store) Append(ctx context.Context, entry *domain.OutcomeLogEntry) error {
	item := outcomeItem{
		PK:              pkOutcome,
		SK:              entry.SentAt.UTC().Format(time.RFC3339Nano) + "#" + entry.ID,
		OutcomeLogEntry: *entry,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling outcome entry: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: s.table(), Item: av}); err != nil {
		return fmt.Errorf("appending outcome entry: %w", err)
	}
	return nil
}

// ListOutcomes returns entries newest-first. Filters are applied client-side
// over one reverse-query page; the log view is an operational tail, not a
// full-history search.
func (s *Store) ListOutcomes(ctx context.Context, f store.OutcomeFilter) ([]domain.OutcomeLogEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              s.table(),
		KeyConditionExpression: awsString("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkOutcome},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(outcomeQueryPage),
	})
	if err != nil {
		return nil, fmt.Errorf("querying outcome log: %w", err)
	}

	entries := make([]domain.OutcomeLogEntry, 0, limit)
	for _, raw := range out.Items {
		var item outcomeItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		e := item.OutcomeLogEntry
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.TriggerID != "" && e.TriggerID != f.TriggerID {
			continue
		}
		if f.RecipientContains != "" && !strings.Contains(e.Recipient, f.RecipientContains) {
			continue
		}
		entries = append(entries, e)
		if len(entries) >= limit {
			break
		}
	}
	return entries, nil
}
