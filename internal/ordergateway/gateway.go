// Package ordergateway retrieves orders from the ticketing shop with bounded
// retries and turns them into the bridge's Order shape.
package ordergateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/planlos/ticket-account-bridge/internal/pretix"
	"github.com/qri-io/jsonpointer"
)

// ErrUpstreamUnavailable means the ticketing shop could not be consulted.
// It never means that the order does not exist.
var ErrUpstreamUnavailable = errors.New("ticketing API unavailable")

// Default JSON pointers to the buyer's name parts inside an order
const (
	DefaultGivenNamePointer  = "/invoice_address/name_parts/given_name"
	DefaultFamilyNamePointer = "/invoice_address/name_parts/family_name"
)

// OrderAPI is the ticketing API surface the gateway uses
type OrderAPI interface {
	GetOrder(ctx context.Context, organizer, event, code string) (*pretix.Order, error)
	ListOrders(ctx context.Context, organizer, event string) ([]pretix.Order, error)
	ListQuestions(ctx context.Context, organizer, event string) ([]pretix.Question, error)
}

// Config holds gateway configuration
type Config struct {
	BaseURL           string // Shop root, used for control-panel links
	Organizer         string
	Enabled           bool
	SingleRetry       RetryPolicy
	BulkRetry         RetryPolicy
	Locale            string // Preferred locale for question text
	GivenNamePointer  string
	FamilyNamePointer string
}

// Order is an order reduced to what provisioning needs
type Order struct {
	Code            string
	Email           string
	GivenName       string
	FamilyName      string
	Status          string
	RequireApproval bool
	Expires         time.Time
	Answers         map[string]string // question text -> answer text
}

// Gateway fetches orders for the configured organizer
type Gateway struct {
	api       OrderAPI
	cfg       Config
	logger    *slog.Logger
	givenPtr  jsonpointer.Pointer
	familyPtr jsonpointer.Pointer
}

// New creates a Gateway. A disabled gateway never calls the API.
func New(api OrderAPI, cfg Config, logger *slog.Logger) (*Gateway, error) {
	if cfg.GivenNamePointer == "" {
		cfg.GivenNamePointer = DefaultGivenNamePointer
	}
	if cfg.FamilyNamePointer == "" {
		cfg.FamilyNamePointer = DefaultFamilyNamePointer
	}

	givenPtr, err := parseNamePointer(cfg.GivenNamePointer)
	if err != nil {
		return nil, fmt.Errorf("invalid given name pointer: %w", err)
	}
	familyPtr, err := parseNamePointer(cfg.FamilyNamePointer)
	if err != nil {
		return nil, fmt.Errorf("invalid family name pointer: %w", err)
	}

	return &Gateway{
		api:       api,
		cfg:       cfg,
		logger:    logger,
		givenPtr:  givenPtr,
		familyPtr: familyPtr,
	}, nil
}

// parseNamePointer accepts only absolute pointers below the order root.
// jsonpointer.Parse reads a string without a leading '/' as a URI fragment.
func parseNamePointer(s string) (jsonpointer.Pointer, error) {
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("%q must start with '/'", s)
	}
	ptr, err := jsonpointer.Parse(s)
	if err != nil {
		return nil, err
	}
	if len(ptr) == 0 {
		return nil, fmt.Errorf("%q points at the whole order", s)
	}
	return ptr, nil
}

// Enabled reports whether the gateway calls the ticketing API at all
func (g *Gateway) Enabled() bool {
	return g.cfg.Enabled
}

// FetchOrder fetches one order. A disabled gateway returns (nil, nil).
func (g *Gateway) FetchOrder(ctx context.Context, event, code string) (*Order, error) {
	if !g.cfg.Enabled {
		return nil, nil
	}

	raw, err := retry(ctx, g.cfg.SingleRetry, func() (*pretix.Order, error) {
		return g.api.GetOrder(ctx, g.cfg.Organizer, event, code)
	}, g.logRetry(ctx, "get order", event))
	if err != nil {
		g.logger.ErrorContext(ctx, "Failed to fetch order",
			slog.String("event", event),
			slog.String("order_code", code),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: order %s: %w", ErrUpstreamUnavailable, code, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: order %s: %w", ErrUpstreamUnavailable, code, pretix.ErrEmptyResponse)
	}

	var questions map[int64]pretix.Question
	if raw.HasAnswers() {
		questions, err = g.fetchQuestions(ctx, event, g.cfg.SingleRetry)
		if err != nil {
			return nil, err
		}
	}

	order := g.convert(raw, questions)

	g.logger.InfoContext(ctx, "Fetched order",
		slog.String("event", event),
		slog.String("order_code", order.Code),
		slog.String("status", order.Status),
		slog.Int("answers", len(order.Answers)),
	)

	return order, nil
}

// FetchAllOrders fetches every order of an event. A disabled gateway returns
// an empty slice.
func (g *Gateway) FetchAllOrders(ctx context.Context, event string) ([]Order, error) {
	if !g.cfg.Enabled {
		return []Order{}, nil
	}

	raws, err := retry(ctx, g.cfg.BulkRetry, func() ([]pretix.Order, error) {
		return g.api.ListOrders(ctx, g.cfg.Organizer, event)
	}, g.logRetry(ctx, "list orders", event))
	if err != nil {
		g.logger.ErrorContext(ctx, "Failed to fetch orders",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: orders of %s: %w", ErrUpstreamUnavailable, event, err)
	}
	if raws == nil {
		return nil, fmt.Errorf("%w: orders of %s: %w", ErrUpstreamUnavailable, event, pretix.ErrEmptyResponse)
	}

	var questions map[int64]pretix.Question
	for i := range raws {
		if raws[i].HasAnswers() {
			questions, err = g.fetchQuestions(ctx, event, g.cfg.BulkRetry)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	orders := make([]Order, 0, len(raws))
	for i := range raws {
		orders = append(orders, *g.convert(&raws[i], questions))
	}
	return orders, nil
}

// OrderURL links to the order in the shop's control panel
func (g *Gateway) OrderURL(event, code string) string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + "/control/event/" +
		url.PathEscape(g.cfg.Organizer) + "/" + url.PathEscape(event) +
		"/orders/" + url.PathEscape(code) + "/"
}

func (g *Gateway) fetchQuestions(ctx context.Context, event string, policy RetryPolicy) (map[int64]pretix.Question, error) {
	list, err := retry(ctx, policy, func() ([]pretix.Question, error) {
		return g.api.ListQuestions(ctx, g.cfg.Organizer, event)
	}, g.logRetry(ctx, "list questions", event))
	if err != nil {
		return nil, fmt.Errorf("%w: questions of %s: %w", ErrUpstreamUnavailable, event, err)
	}

	questions := make(map[int64]pretix.Question, len(list))
	for _, q := range list {
		questions[q.ID] = q
	}
	return questions, nil
}

func (g *Gateway) logRetry(ctx context.Context, call, event string) func(error, time.Duration) {
	return func(err error, next time.Duration) {
		g.logger.WarnContext(ctx, "Ticketing API call failed, retrying",
			slog.String("call", call),
			slog.String("event", event),
			slog.Duration("next_attempt_in", next),
			slog.String("error", err.Error()),
		)
	}
}

func (g *Gateway) convert(raw *pretix.Order, questions map[int64]pretix.Question) *Order {
	order := &Order{
		Code:            raw.Code,
		Email:           raw.Email,
		GivenName:       g.lookupString(raw, g.givenPtr),
		FamilyName:      g.lookupString(raw, g.familyPtr),
		Status:          raw.Status,
		RequireApproval: raw.RequireApproval,
		Answers:         make(map[string]string),
	}

	if raw.Expires != "" {
		if expires, err := time.Parse(time.RFC3339, raw.Expires); err == nil {
			order.Expires = expires
		}
	}

	// First answer wins when several tickets answer the same question
	for _, position := range raw.Positions {
		for _, answer := range position.Answers {
			text := answer.QuestionIdentifier
			if q, ok := questions[answer.Question]; ok {
				text = q.Text(g.cfg.Locale)
			}
			if text == "" {
				continue
			}
			if _, seen := order.Answers[text]; !seen {
				order.Answers[text] = answer.Answer
			}
		}
	}

	return order
}

func (g *Gateway) lookupString(raw *pretix.Order, ptr jsonpointer.Pointer) string {
	if raw.Raw == nil {
		return ""
	}
	value, err := ptr.Eval(raw.Raw)
	if err != nil {
		return ""
	}
	s, _ := value.(string)
	return strings.TrimSpace(s)
}
