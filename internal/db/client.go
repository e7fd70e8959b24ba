package db

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key prefixes for single-table design
const (
	PKFilter        = "FILTER#"
	PKPrefixEvent   = "EVENT#"
	SKPrefixFilter  = "FILTER#"
	SKPrefixBooking = "BOOKING#"
)

// DynamoDBClient defines the interface for DynamoDB operations
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client wraps the DynamoDB operations shared by the filter and booking stores
type Client struct {
	ddb       DynamoDBClient
	tableName string
}

// NewClient creates a Client around an existing DynamoDB client
func NewClient(ddb DynamoDBClient, tableName string) *Client {
	return &Client{
		ddb:       ddb,
		tableName: tableName,
	}
}

// NewClientFromConfig creates a Client from an AWS config. The config is
// expected to carry the OTel middlewares already.
func NewClientFromConfig(cfg aws.Config, tableName string) *Client {
	return NewClient(dynamodb.NewFromConfig(cfg), tableName)
}

// TableName returns the table this client writes to
func (c *Client) TableName() string {
	return c.tableName
}

// PutItem writes an item, replacing any item with the same key
func (c *Client) PutItem(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	return err
}

// QueryByPK returns all items under a partition key, following pagination
func (c *Client) QueryByPK(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("pk").Equal(expression.Value(pk))
	return c.query(ctx, keyCond)
}

// QueryBySKPrefix returns the items under a partition key whose sort key
// starts with skPrefix, following pagination
func (c *Client) QueryBySKPrefix(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("pk").Equal(expression.Value(pk)).
		And(expression.Key("sk").BeginsWith(skPrefix))
	return c.query(ctx, keyCond)
}

func (c *Client) query(ctx context.Context, keyCond expression.KeyConditionBuilder) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		output, err := c.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(c.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, err
		}

		items = append(items, output.Items...)

		if len(output.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = output.LastEvaluatedKey
	}
}
