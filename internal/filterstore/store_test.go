package filterstore

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/planlos/ticket-account-bridge/internal/db"
	"github.com/planlos/ticket-account-bridge/internal/qnafilter"
)

// memoryTable is an in-memory Table keyed by pk then sk
type memoryTable struct {
	items    map[string]map[string]map[string]types.AttributeValue
	putErr   error
	queryErr error
}

func newMemoryTable() *memoryTable {
	return &memoryTable{items: make(map[string]map[string]map[string]types.AttributeValue)}
}

func (m *memoryTable) PutItem(ctx context.Context, item map[string]types.AttributeValue) error {
	if m.putErr != nil {
		return m.putErr
	}
	pk := item["pk"].(*types.AttributeValueMemberS).Value
	sk := item["sk"].(*types.AttributeValueMemberS).Value
	if m.items[pk] == nil {
		m.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	m.items[pk][sk] = item
	return nil
}

func (m *memoryTable) QueryByPK(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	return m.QueryBySKPrefix(ctx, pk, "")
}

func (m *memoryTable) QueryBySKPrefix(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []map[string]types.AttributeValue
	for sk, item := range m.items[pk] {
		if strings.HasPrefix(sk, skPrefix) {
			out = append(out, item)
		}
	}
	return out, nil
}

// sequenceIDs returns filter-1, filter-2, ...
type sequenceIDs struct{ n int }

func (s *sequenceIDs) Generate() string {
	s.n++
	return "filter-" + strconv.Itoa(s.n)
}

func newTestStore(table Table) *Store {
	s := New(table, &sequenceIDs{})
	s.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func mustFilter(t *testing.T, action, event string, qna map[string][]string) qnafilter.Filter {
	t.Helper()
	f, err := qnafilter.New(action, event, qna)
	if err != nil {
		t.Fatalf("qnafilter.New returned error: %v", err)
	}
	return f
}

func TestAdd_StoresEncodedFilter(t *testing.T) {
	table := newMemoryTable()
	store := newTestStore(table)

	f := mustFilter(t, "pretix.event.order.approved", "camp", map[string][]string{"size": {"M", "L"}})
	record, err := store.Add(context.Background(), f)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if record.ID != "filter-1" {
		t.Errorf("expected id filter-1, got %s", record.ID)
	}
	if record.CreatedAt != "2026-05-01T12:00:00Z" {
		t.Errorf("expected createdAt 2026-05-01T12:00:00Z, got %s", record.CreatedAt)
	}

	item := table.items[db.PKFilter]["FILTER#order.approved#camp#filter-1"]
	if item == nil {
		t.Fatal("expected item under filter sort key")
	}
	if got := item["qnaList"].(*types.AttributeValueMemberS).Value; got != "size:M,L" {
		t.Errorf("expected qnaList size:M,L, got %s", got)
	}
	if got := item["encodingVersion"].(*types.AttributeValueMemberN).Value; got != "1" {
		t.Errorf("expected encodingVersion 1, got %s", got)
	}
}

func TestAdd_PropagatesStorageError(t *testing.T) {
	table := newMemoryTable()
	table.putErr = errors.New("throttled")
	store := newTestStore(table)

	_, err := store.Add(context.Background(), mustFilter(t, "a", "e", map[string][]string{"q": {"a"}}))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestList_ReturnsAllFilters(t *testing.T) {
	table := newMemoryTable()
	store := newTestStore(table)
	ctx := context.Background()

	if _, err := store.Add(ctx, mustFilter(t, "approved", "camp", map[string][]string{"size": {"M"}})); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(ctx, mustFilter(t, "approved", "other", map[string][]string{"Größe": {"groß"}})); err != nil {
		t.Fatal(err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	for _, r := range records {
		if r.Filter.Event == "other" {
			want := map[string][]string{"Größe": {"groß"}}
			if !reflect.DeepEqual(r.Filter.QnA, want) {
				t.Errorf("expected stored text unchanged, got %v", r.Filter.QnA)
			}
		}
	}
}

func TestListFor_OnlyMatchingActionAndEvent(t *testing.T) {
	table := newMemoryTable()
	store := newTestStore(table)
	ctx := context.Background()

	for _, f := range []qnafilter.Filter{
		mustFilter(t, "approved", "camp", map[string][]string{"size": {"M"}}),
		mustFilter(t, "approved", "camp", map[string][]string{"member": {"yes"}}),
		mustFilter(t, "approved", "other", map[string][]string{"size": {"L"}}),
		mustFilter(t, "placed", "camp", map[string][]string{"size": {"S"}}),
	} {
		if _, err := store.Add(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	filters, err := store.ListFor(ctx, "approved", "camp")
	if err != nil {
		t.Fatalf("ListFor returned error: %v", err)
	}
	if len(filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(filters))
	}
	for _, f := range filters {
		if !f.AppliesTo("approved", "camp") {
			t.Errorf("unexpected filter for %s/%s", f.Action, f.Event)
		}
	}
}

func TestListFor_NamespacedAndBareActionsMeet(t *testing.T) {
	table := newMemoryTable()
	store := newTestStore(table)
	ctx := context.Background()

	if _, err := store.Add(ctx, mustFilter(t, "order.approved", "camp", map[string][]string{"size": {"M"}})); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(ctx, mustFilter(t, "pretix.event.order.approved", "camp", map[string][]string{"member": {"yes"}})); err != nil {
		t.Fatal(err)
	}

	for _, action := range []string{"pretix.event.order.approved", "order.approved"} {
		filters, err := store.ListFor(ctx, action, "camp")
		if err != nil {
			t.Fatalf("ListFor(%q) returned error: %v", action, err)
		}
		if len(filters) != 2 {
			t.Errorf("ListFor(%q): expected 2 filters, got %d", action, len(filters))
		}
	}
}

func TestListFor_RejectsUnknownEncodingVersion(t *testing.T) {
	table := newMemoryTable()
	table.items[db.PKFilter] = map[string]map[string]types.AttributeValue{
		"FILTER#approved#camp#x": {
			"pk":              &types.AttributeValueMemberS{Value: db.PKFilter},
			"sk":              &types.AttributeValueMemberS{Value: "FILTER#approved#camp#x"},
			"filterId":        &types.AttributeValueMemberS{Value: "x"},
			"action":          &types.AttributeValueMemberS{Value: "approved"},
			"event":           &types.AttributeValueMemberS{Value: "camp"},
			"qnaList":         &types.AttributeValueMemberS{Value: "size:M"},
			"encodingVersion": &types.AttributeValueMemberN{Value: "2"},
		},
	}
	store := newTestStore(table)

	if _, err := store.ListFor(context.Background(), "approved", "camp"); err == nil {
		t.Fatal("expected error for unsupported encoding version, got nil")
	}
}

func TestListFor_PropagatesQueryError(t *testing.T) {
	table := newMemoryTable()
	table.queryErr = errors.New("unavailable")
	store := newTestStore(table)

	if _, err := store.ListFor(context.Background(), "approved", "camp"); err == nil {
		t.Fatal("expected error, got nil")
	}
}
