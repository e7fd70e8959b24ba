// Package filterstore persists QnA filters in DynamoDB.
package filterstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/planlos/ticket-account-bridge/internal/db"
	"github.com/planlos/ticket-account-bridge/internal/qnafilter"
	"github.com/planlos/ticket-account-bridge/pkg/webhookcontract"
)

// Table is the subset of db.Client the store needs
type Table interface {
	PutItem(ctx context.Context, item map[string]types.AttributeValue) error
	QueryByPK(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error)
	QueryBySKPrefix(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error)
}

// IDGenerator generates filter ids
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random UUIDs
type UUIDGenerator struct{}

// Generate returns a new UUID string
func (UUIDGenerator) Generate() string {
	return uuid.New().String()
}

// Record is a stored filter
type Record struct {
	ID        string
	Filter    qnafilter.Filter
	CreatedAt string
}

// filterItem is the DynamoDB item shape of a filter
type filterItem struct {
	PK              string `dynamodbav:"pk"`
	SK              string `dynamodbav:"sk"`
	FilterID        string `dynamodbav:"filterId"`
	Action          string `dynamodbav:"action"`
	Event           string `dynamodbav:"event"`
	QnAList         string `dynamodbav:"qnaList"`
	EncodingVersion int    `dynamodbav:"encodingVersion"`
	CreatedAt       string `dynamodbav:"createdAt"`
}

// Store holds QnA filters keyed by action and event
type Store struct {
	table Table
	ids   IDGenerator
	now   func() time.Time
}

// New creates a Store
func New(table Table, ids IDGenerator) *Store {
	return &Store{
		table: table,
		ids:   ids,
		now:   time.Now,
	}
}

func sortKeyPrefix(action, event string) string {
	return fmt.Sprintf("%s%s#%s#", db.SKPrefixFilter, webhookcontract.CanonicalAction(action), event)
}

// Add stores a validated filter under a new id
func (s *Store) Add(ctx context.Context, f qnafilter.Filter) (Record, error) {
	id := s.ids.Generate()
	createdAt := s.now().UTC().Format(time.RFC3339)

	item := filterItem{
		PK:              db.PKFilter,
		SK:              sortKeyPrefix(f.Action, f.Event) + id,
		FilterID:        id,
		Action:          f.Action,
		Event:           f.Event,
		QnAList:         qnafilter.Encode(f.QnA),
		EncodingVersion: qnafilter.EncodingVersion,
		CreatedAt:       createdAt,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal filter: %w", err)
	}

	if err := s.table.PutItem(ctx, av); err != nil {
		return Record{}, fmt.Errorf("failed to store filter: %w", err)
	}

	return Record{ID: id, Filter: f, CreatedAt: createdAt}, nil
}

// List returns every stored filter
func (s *Store) List(ctx context.Context) ([]Record, error) {
	items, err := s.table.QueryByPK(ctx, db.PKFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to query filters: %w", err)
	}
	return decodeItems(items)
}

// ListFor returns the filters defined for one action and event
func (s *Store) ListFor(ctx context.Context, action, event string) ([]qnafilter.Filter, error) {
	items, err := s.table.QueryBySKPrefix(ctx, db.PKFilter, sortKeyPrefix(action, event))
	if err != nil {
		return nil, fmt.Errorf("failed to query filters: %w", err)
	}

	records, err := decodeItems(items)
	if err != nil {
		return nil, err
	}

	// The sort key prefix is ambiguous when slugs contain '#'
	filters := make([]qnafilter.Filter, 0, len(records))
	for _, r := range records {
		if r.Filter.AppliesTo(action, event) {
			filters = append(filters, r.Filter)
		}
	}
	return filters, nil
}

func decodeItems(items []map[string]types.AttributeValue) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, av := range items {
		var item filterItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filter: %w", err)
		}
		if item.EncodingVersion != qnafilter.EncodingVersion {
			return nil, fmt.Errorf("filter %s: unsupported encoding version %d", item.FilterID, item.EncodingVersion)
		}

		qna, err := qnafilter.Decode(item.QnAList)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", item.FilterID, err)
		}

		records = append(records, Record{
			ID: item.FilterID,
			Filter: qnafilter.Filter{
				Action: item.Action,
				Event:  item.Event,
				QnA:    qna,
			},
			CreatedAt: item.CreatedAt,
		})
	}
	return records, nil
}
