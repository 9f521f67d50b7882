// Package dynamodb implements kv.Backend on a DynamoDB table.
//
// The table has a single string partition key named "key"; values are stored
// in the string attribute "value".
//
//	aws dynamodb create-table \
//	  --table-name cbir-identity \
//	  --attribute-definitions AttributeName=key,AttributeType=S \
//	  --key-schema AttributeName=key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cytomine/cbir/kv"
)

const (
	keyAttr   = "key"
	valueAttr = "value"
)

// Client is the subset of the DynamoDB API used by Backend.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Backend is a kv.Backend on one DynamoDB table.
type Backend struct {
	client Client
	table  string
}

var _ kv.Backend = (*Backend)(nil)

// New creates a backend on table.
func New(client Client, table string) *Backend {
	return &Backend{client: client, table: table}
}

// NewFromConfig creates a backend with a client built from cfg.
func NewFromConfig(cfg aws.Config, table string) *Backend {
	return New(dynamodb.NewFromConfig(cfg), table)
}

func (b *Backend) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttr: &types.AttributeValueMemberS{Value: key},
	}
}

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.table),
		Key:            b.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("dynamodb: get %q: %w", key, err)
	}
	if len(out.Item) == 0 {
		return "", kv.ErrNotFound
	}
	av, ok := out.Item[valueAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamodb: item %q has no string %q attribute", key, valueAttr)
	}
	return av.Value, nil
}

func (b *Backend) Set(ctx context.Context, key, value string) error {
	item := b.itemKey(key)
	item[valueAttr] = &types.AttributeValueMemberS{Value: value}
	if _, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamodb: put %q: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.table),
		Key:       b.itemKey(key),
	}); err != nil {
		return fmt.Errorf("dynamodb: delete %q: %w", key, err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(b.table),
		Key:                  b.itemKey(key),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyAttr,
		},
	})
	if err != nil {
		return false, fmt.Errorf("dynamodb: get %q: %w", key, err)
	}
	return len(out.Item) > 0, nil
}

// Close is a no-op; the client has no resources to release.
func (b *Backend) Close() error { return nil }
