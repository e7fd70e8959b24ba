package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamoDBClient implements DynamoDBClient for testing
type mockDynamoDBClient struct {
	putItemInput *dynamodb.PutItemInput
	putItemErr   error

	queryFunc   func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	queryOutput *dynamodb.QueryOutput
	queryCalled bool
	queryInputs []*dynamodb.QueryInput
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putItemInput = params
	if m.putItemErr != nil {
		return nil, m.putItemErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryCalled = true
	m.queryInputs = append(m.queryInputs, params)
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	if m.queryOutput != nil {
		return m.queryOutput, nil
	}
	return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{}}, nil
}

func TestNewClient_SetsTableName(t *testing.T) {
	client := NewClient(&mockDynamoDBClient{}, "my-table")
	if client.TableName() != "my-table" {
		t.Errorf("Expected tableName=my-table, got %s", client.TableName())
	}
}

func TestQueryByPK_ReturnsItemsFromDynamoDB(t *testing.T) {
	mockItems := []map[string]types.AttributeValue{
		{
			"pk": &types.AttributeValueMemberS{Value: PKFilter},
			"sk": &types.AttributeValueMemberS{Value: "FILTER#approved#camp#1"},
		},
		{
			"pk": &types.AttributeValueMemberS{Value: PKFilter},
			"sk": &types.AttributeValueMemberS{Value: "FILTER#approved#camp#2"},
		},
	}

	mock := &mockDynamoDBClient{
		queryOutput: &dynamodb.QueryOutput{Items: mockItems},
	}
	client := NewClient(mock, "test-table")

	items, err := client.QueryByPK(context.Background(), PKFilter)
	if err != nil {
		t.Fatalf("QueryByPK returned error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(items))
	}
	if !mock.queryCalled {
		t.Error("Expected Query to be called on DynamoDB client")
	}
	if *mock.queryInputs[0].TableName != "test-table" {
		t.Errorf("Expected table test-table, got %s", *mock.queryInputs[0].TableName)
	}
}

func TestQueryByPK_FollowsPagination(t *testing.T) {
	page := 0
	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			page++
			item := map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: PKFilter},
			}
			if page == 1 {
				if params.ExclusiveStartKey != nil {
					t.Error("expected first page to have no start key")
				}
				return &dynamodb.QueryOutput{
					Items:            []map[string]types.AttributeValue{item},
					LastEvaluatedKey: item,
				}, nil
			}
			if params.ExclusiveStartKey == nil {
				t.Error("expected second page to carry the last evaluated key")
			}
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil
		},
	}
	client := NewClient(mock, "test-table")

	items, err := client.QueryByPK(context.Background(), PKFilter)
	if err != nil {
		t.Fatalf("QueryByPK returned error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items across pages, got %d", len(items))
	}
	if len(mock.queryInputs) != 2 {
		t.Errorf("Expected 2 Query calls, got %d", len(mock.queryInputs))
	}
}

func TestQueryBySKPrefix_UsesBeginsWith(t *testing.T) {
	mock := &mockDynamoDBClient{}
	client := NewClient(mock, "test-table")

	_, err := client.QueryBySKPrefix(context.Background(), PKFilter, "FILTER#approved#camp#")
	if err != nil {
		t.Fatalf("QueryBySKPrefix returned error: %v", err)
	}

	cond := *mock.queryInputs[0].KeyConditionExpression
	if !strings.Contains(cond, "begins_with") {
		t.Errorf("Expected begins_with in key condition, got %s", cond)
	}

	var foundPrefix bool
	for _, v := range mock.queryInputs[0].ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == "FILTER#approved#camp#" {
			foundPrefix = true
		}
	}
	if !foundPrefix {
		t.Error("Expected sort key prefix among expression values")
	}
}

func TestQuery_PropagatesError(t *testing.T) {
	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	client := NewClient(mock, "test-table")

	if _, err := client.QueryByPK(context.Background(), PKFilter); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestPutItem_WritesToTable(t *testing.T) {
	mock := &mockDynamoDBClient{}
	client := NewClient(mock, "test-table")

	item := map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: PKFilter},
		"sk": &types.AttributeValueMemberS{Value: "FILTER#x"},
	}
	if err := client.PutItem(context.Background(), item); err != nil {
		t.Fatalf("PutItem returned error: %v", err)
	}
	if mock.putItemInput == nil {
		t.Fatal("Expected PutItem to be called")
	}
	if *mock.putItemInput.TableName != "test-table" {
		t.Errorf("Expected table test-table, got %s", *mock.putItemInput.TableName)
	}
}
