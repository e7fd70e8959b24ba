// Package booking keeps a snapshot of fetched orders per event.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/planlos/ticket-account-bridge/internal/db"
	"github.com/planlos/ticket-account-bridge/internal/ordergateway"
)

// Table is the subset of db.Client the store needs
type Table interface {
	PutItem(ctx context.Context, item map[string]types.AttributeValue) error
	QueryBySKPrefix(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error)
}

// Booking is the stored snapshot of one order
type Booking struct {
	PK         string            `dynamodbav:"pk"`
	SK         string            `dynamodbav:"sk"`
	Event      string            `dynamodbav:"event"`
	Code       string            `dynamodbav:"code"`
	GivenName  string            `dynamodbav:"givenName"`
	FamilyName string            `dynamodbav:"familyName"`
	Email      string            `dynamodbav:"email"`
	Status     string            `dynamodbav:"status"`
	Expires    string            `dynamodbav:"expires,omitempty"`
	Answers    map[string]string `dynamodbav:"answers,omitempty"`
	LoadedAt   string            `dynamodbav:"loadedAt"`
}

// Store writes and reads booking snapshots
type Store struct {
	table Table
	now   func() time.Time
}

// New creates a Store
func New(table Table) *Store {
	return &Store{table: table, now: time.Now}
}

func partitionKey(event string) string {
	return db.PKPrefixEvent + event
}

// Save writes the order's snapshot, replacing an earlier one for the same code
func (s *Store) Save(ctx context.Context, event string, order ordergateway.Order) error {
	b := Booking{
		PK:         partitionKey(event),
		SK:         db.SKPrefixBooking + order.Code,
		Event:      event,
		Code:       order.Code,
		GivenName:  order.GivenName,
		FamilyName: order.FamilyName,
		Email:      order.Email,
		Status:     order.Status,
		Answers:    order.Answers,
		LoadedAt:   s.now().UTC().Format(time.RFC3339),
	}
	if !order.Expires.IsZero() {
		b.Expires = order.Expires.UTC().Format(time.RFC3339)
	}

	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}
	if err := s.table.PutItem(ctx, item); err != nil {
		return fmt.Errorf("failed to save booking %s: %w", order.Code, err)
	}
	return nil
}

// List returns every booking snapshot of an event
func (s *Store) List(ctx context.Context, event string) ([]Booking, error) {
	items, err := s.table.QueryBySKPrefix(ctx, partitionKey(event), db.SKPrefixBooking)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}

	bookings := make([]Booking, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookings: %w", err)
	}
	return bookings, nil
}
