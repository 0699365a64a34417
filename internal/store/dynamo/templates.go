package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
)

type templateItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	domain.Template
}

// GetTemplate returns a template by id.
func (s *Store) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: s.table(),
		Key:       itemKey(pkTemplate, id),
	})
	if err != nil {
		return nil, fmt.Errorf("getting template %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, notify.ErrTemplateNotFound
	}
	var item templateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling template %s: %w", id, err)
	}
	return &item.Template, nil
}

// ListTemplates returns all templates in id order.
func (s *Store) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              s.table(),
		KeyConditionExpression: awsString("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkTemplate},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	templates := make([]domain.Template, 0, len(out.Items))
	for _, raw := range out.Items {
		var item templateItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		templates = append(templates, item.Template)
	}
	return templates, nil
}

// CreateTemplate inserts a template.
func (s *Store) CreateTemplate(ctx context.Context, t *domain.Template) error {
	return s.putTemplate(ctx, t)
}

// UpdateTemplate replaces a template.
func (s *Store) UpdateTemplate(ctx context.Context, t *domain.Template) error {
	if _, err := s.GetTemplate(ctx, t.ID); err != nil {
		return err
	}
	return s.putTemplate(ctx, t)
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.GetTemplate(ctx, id); err != nil {
		return err
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: s.table(),
		Key:       itemKey(pkTemplate, id),
	})
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	return nil
}

func (s *Store) putTemplate(ctx context.Context, t *domain.Template) error {
	av, err := attributevalue.MarshalMap(templateItem{PK: pkTemplate, SK: t.ID, Template: *t})
	if err != nil {
		return fmt.Errorf("marshaling template: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: s.table(), Item: av}); err != nil {
		return fmt.Errorf("putting template %s: %w", t.ID, err)
	}
	return nil
}
