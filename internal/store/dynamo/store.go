// Package dynamo implements the document store on a single DynamoDB table.
//
// Key layout:
//
//	PK "TEMPLATE", SK <template id>
//	PK "TRIGGER",  SK <trigger id>
//	PK "OUTCOME",  SK <sent_at RFC3339Nano>#<entry id>
//
// Templates and triggers are small configuration sets, so each lives in one
// partition and listings are a single Query. Outcome entries sort by send time
// within their partition, which makes newest-first listings a reverse Query.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pkTemplate = "TEMPLATE"
	pkTrigger  = "TRIGGER"
	pkOutcome  = "OUTCOME"
)

// Store is the DynamoDB-backed document store.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

// New creates a store against the given table. An empty profile uses the
// default AWS credential chain.
func New(ctx context.Context, tableName, region, profile string) (*Store, error) {
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
	return &Store{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}, nil
}

// NewWithClient wires a store onto an existing client (tests, shared config).
func NewWithClient(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

func (s *Store) table() *string {
	return aws.String(s.tableName)
}

func awsString(s string) *string { return aws.String(s) }

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
