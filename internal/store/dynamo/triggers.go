package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
)

type triggerItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	domain.Trigger
}

// GetTrigger returns a trigger by id.
func (s *Store) GetTrigger(ctx context.Context, id string) (*domain.Trigger, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: s.table(),
		Key:       itemKey(pkTrigger, id),
	})
	if err != nil {
		return nil, fmt.Errorf("getting trigger %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, notify.ErrTriggerNotFound
	}
	var item triggerItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling trigger %s: %w", id, err)
	}
	return &item.Trigger, nil
}

// ListTriggers returns all triggers in id order.
func (s *Store) ListTriggers(ctx context.Context) ([]domain.Trigger, error) {
	return s.queryTriggers(ctx, nil, nil)
}

// EnabledTriggers returns the enabled event-driven triggers watching the
// given (collection, event) pair, in sort-key (id) order.
func (s *Store) EnabledTriggers(ctx context.Context, collection string, event domain.EventType) ([]domain.Trigger, error) {
	filter := "enabled = :enabled AND trigger_type = :tt AND #coll = :coll AND #evt = :evt"
	values := map[string]types.AttributeValue{
		":enabled": &types.AttributeValueMemberBOOL{Value: true},
		":tt":      &types.AttributeValueMemberS{Value: string(domain.TriggerEventDriven)},
		":coll":    &types.AttributeValueMemberS{Value: collection},
		":evt":     &types.AttributeValueMemberS{Value: string(event)},
	}
	return s.queryTriggers(ctx, &filter, values)
}

func (s *Store) queryTriggers(ctx context.Context, filter *string, values map[string]types.AttributeValue) ([]domain.Trigger, error) {
	if values == nil {
		values = map[string]types.AttributeValue{}
	}
	values[":pk"] = &types.AttributeValueMemberS{Value: pkTrigger}

	input := &dynamodb.QueryInput{
		TableName:                 s.table(),
		KeyConditionExpression:    awsString("PK = :pk"),
		FilterExpression:          filter,
		ExpressionAttributeValues: values,
	}
	if filter != nil {
		input.ExpressionAttributeNames = map[string]string{
			"#coll": "collection",
			"#evt":  "event",
		}
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	triggers := make([]domain.Trigger, 0, len(out.Items))
	for _, raw := range out.Items {
		var item triggerItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		triggers = append(triggers, item.Trigger)
	}
	return triggers, nil
}

// CreateTrigger inserts a trigger.
func (s *Store) CreateTrigger(ctx context.Context, tr *domain.Trigger) error {
	return s.putTrigger(ctx, tr)
}

// UpdateTrigger replaces a trigger's configuration with a field-level update.
// send_count and last_triggered are never part of the expression, so a
// concurrent RecordDispatch increment cannot be lost to an admin edit.
func (s *Store) UpdateTrigger(ctx context.Context, tr *domain.Trigger) error {
	expr, names, values, err := triggerUpdateExpression(tr)
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 s.table(),
		Key:                       itemKey(pkTrigger, tr.ID),
		UpdateExpression:          awsString(expr),
		ConditionExpression:       awsString("attribute_exists(PK)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return notify.ErrTriggerNotFound
		}
		return fmt.Errorf("updating trigger %s: %w", tr.ID, err)
	}
	return nil
}

// triggerUpdateExpression builds the SET expression for an admin edit. It
// covers only the configuration attributes; usage statistics stay untouched.
func triggerUpdateExpression(tr *domain.Trigger) (string, map[string]string, map[string]types.AttributeValue, error) {
	conditions, err := attributevalue.Marshal(tr.Conditions)
	if err != nil {
		return "", nil, nil, fmt.Errorf("marshaling trigger conditions: %w", err)
	}
	mapping, err := attributevalue.Marshal(tr.DataMapping)
	if err != nil {
		return "", nil, nil, fmt.Errorf("marshaling trigger data mapping: %w", err)
	}
	expr := "SET #name = :name, #description = :description, #enabled = :enabled, " +
		"#template_id = :template_id, #trigger_type = :trigger_type, #collection = :collection, " +
		"#event = :event, #conditions = :conditions, #recipient_field = :recipient_field, " +
		"#data_mapping = :data_mapping, #updated_at = :now"
	names := map[string]string{
		"#name":            "name",
		"#description":     "description",
		"#enabled":         "enabled",
		"#template_id":     "template_id",
		"#trigger_type":    "trigger_type",
		"#collection":      "collection",
		"#event":           "event",
		"#conditions":      "conditions",
		"#recipient_field": "recipient_field",
		"#data_mapping":    "data_mapping",
		"#updated_at":      "updated_at",
	}
	values := map[string]types.AttributeValue{
		":name":            &types.AttributeValueMemberS{Value: tr.Name},
		":description":     &types.AttributeValueMemberS{Value: tr.Description},
		":enabled":         &types.AttributeValueMemberBOOL{Value: tr.Enabled},
		":template_id":     &types.AttributeValueMemberS{Value: tr.TemplateID},
		":trigger_type":    &types.AttributeValueMemberS{Value: string(tr.TriggerType)},
		":collection":      &types.AttributeValueMemberS{Value: tr.Collection},
		":event":           &types.AttributeValueMemberS{Value: string(tr.Event)},
		":conditions":      conditions,
		":recipient_field": &types.AttributeValueMemberS{Value: tr.RecipientField},
		":data_mapping":    mapping,
		":now":             &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	return expr, names, values, nil
}

// DeleteTrigger removes a trigger.
func (s *Store) DeleteTrigger(ctx context.Context, id string) error {
	if _, err := s.GetTrigger(ctx, id); err != nil {
		return err
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: s.table(),
		Key:       itemKey(pkTrigger, id),
	})
	if err != nil {
		return fmt.Errorf("deleting trigger %s: %w", id, err)
	}
	return nil
}

// SetTriggerEnabled toggles a trigger without rewriting the whole item.
func (s *Store) SetTriggerEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           s.table(),
		Key:                 itemKey(pkTrigger, id),
		UpdateExpression:    awsString("SET enabled = :enabled, updated_at = :now"),
		ConditionExpression: awsString("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":enabled": &types.AttributeValueMemberBOOL{Value: enabled},
			":now":     &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return notify.ErrTriggerNotFound
		}
		return fmt.Errorf("toggling trigger %s: %w", id, err)
	}
	return nil
}

// RecordDispatch bumps the trigger's usage statistics with a store-level
// atomic increment. Concurrent event-processing contexts may hit the same
// trigger; ADD keeps the counter correct without read-modify-write.
func (s *Store) RecordDispatch(ctx context.Context, triggerID string, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           s.table(),
		Key:                 itemKey(pkTrigger, triggerID),
		UpdateExpression:    awsString("SET last_triggered = :at ADD send_count :one"),
		ConditionExpression: awsString("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":  &types.AttributeValueMemberS{Value: at.Format(time.RFC3339Nano)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return notify.ErrTriggerNotFound
		}
		return fmt.Errorf("recording dispatch for trigger %s: %w", triggerID, err)
	}
	return nil
}

func (s *Store) putTrigger(ctx context.Context, tr *domain.Trigger) error {
	av, err := attributevalue.MarshalMap(triggerItem{PK: pkTrigger, SK: tr.ID, Trigger: *tr})
	if err != nil {
		return fmt.Errorf("marshaling trigger: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: s.table(), Item: av}); err != nil {
		return fmt.Errorf("putting trigger %s: %w", tr.ID, err)
	}
	return nil
}
