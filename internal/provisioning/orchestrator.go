// Package provisioning turns order webhooks into collaboration accounts.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/planlos/ticket-account-bridge/internal/identity"
	"github.com/planlos/ticket-account-bridge/internal/ordergateway"
	"github.com/planlos/ticket-account-bridge/internal/qnafilter"
	"github.com/planlos/ticket-account-bridge/internal/username"
	"github.com/planlos/ticket-account-bridge/pkg/webhookcontract"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderFetcher retrieves orders from the ticketing shop
type OrderFetcher interface {
	FetchOrder(ctx context.Context, event, code string) (*ordergateway.Order, error)
	OrderURL(event, code string) string
}

// FilterLister returns the QnA filters for an (action, event) pair
type FilterLister interface {
	ListFor(ctx context.Context, action, event string) ([]qnafilter.Filter, error)
}

// AdminNotifier delivers notifications to the administrator
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, subject, body string)
}

// MetricsPublisher publishes outcome counts
type MetricsPublisher interface {
	PublishMetric(ctx context.Context, name string, value float64) error
}

// Dependencies of an Orchestrator. Metrics is optional.
type Dependencies struct {
	Orders     OrderFetcher
	Filters    FilterLister
	Identities identity.Provider
	Notifier   AdminNotifier
	Metrics    MetricsPublisher
	Logger     *slog.Logger

	// UsernamePrefix starts every generated username. Empty means the
	// webhook's organizer slug.
	UsernamePrefix string
}

// Orchestrator handles one webhook event at a time. It is safe for
// concurrent use as long as its dependencies are.
type Orchestrator struct {
	deps   Dependencies
	tracer trace.Tracer
}

// New creates an Orchestrator
func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		tracer: otel.Tracer("provisioning"),
	}
}

// Handle runs the event to a terminal outcome. Failures are reported to
// the administrator here; the returned outcome is informational.
func (o *Orchestrator) Handle(ctx context.Context, ev webhookcontract.Event) Outcome {
	eventType := ParseEventType(ev.Action)

	ctx, span := o.tracer.Start(ctx, "Provision",
		trace.WithAttributes(
			attribute.String("order.code", ev.Code),
			attribute.String("order.event", ev.Event),
			attribute.String("webhook.action", ev.Action),
			attribute.String("webhook.event_type", eventType.String()),
		),
	)
	defer span.End()

	var outcome Outcome
	switch eventType {
	case EventApprovalRequired:
		outcome = o.notifyApproval(ctx, ev)
	case EventApproved, EventPlaced:
		outcome = o.provision(ctx, ev, eventType)
	default:
		o.deps.Logger.InfoContext(ctx, "Ignoring unrecognized webhook action",
			slog.String("action", ev.Action),
			slog.String("order_code", ev.Code),
		)
		outcome = Outcome{Kind: OutcomeIgnored}
	}

	span.SetAttributes(attribute.String("provisioning.outcome", outcome.Kind.String()))
	if outcome.Kind == OutcomeFailed {
		span.RecordError(outcome.Reason)
		span.SetStatus(codes.Error, outcome.Reason.Error())
	}
	o.publishOutcome(ctx, outcome)

	return outcome
}

func (o *Orchestrator) notifyApproval(ctx context.Context, ev webhookcontract.Event) Outcome {
	body := fmt.Sprintf("Order %s of event %s is waiting for approval.\n\n%s",
		ev.Code, ev.Event, o.deps.Orders.OrderURL(ev.Event, ev.Code))
	o.deps.Notifier.NotifyAdmin(ctx, SubjectApprovalRequired, body)

	o.deps.Logger.InfoContext(ctx, "Notified administrator about pending approval",
		slog.String("order_code", ev.Code),
		slog.String("event", ev.Event),
	)
	return Outcome{Kind: OutcomeAdminNotifiedOnly}
}

func (o *Orchestrator) provision(ctx context.Context, ev webhookcontract.Event, eventType EventType) Outcome {
	order, err := o.fetchOrder(ctx, ev)
	if err != nil {
		return o.fail(ctx, ev, err)
	}
	if order == nil {
		o.deps.Logger.WarnContext(ctx, "Order API disabled, skipping provisioning",
			slog.String("order_code", ev.Code),
		)
		return Outcome{Kind: OutcomeIgnored}
	}
	if eventType == EventPlaced && order.RequireApproval {
		o.deps.Logger.InfoContext(ctx, "Placed order awaits approval, skipping provisioning",
			slog.String("order_code", ev.Code),
		)
		return Outcome{Kind: OutcomeIgnored}
	}

	if len(order.Answers) > 0 {
		admitted, err := o.admitted(ctx, ev, order)
		if err != nil {
			return o.fail(ctx, ev, err)
		}
		if !admitted {
			o.deps.Logger.InfoContext(ctx, "Order rejected by QnA filter",
				slog.String("order_code", ev.Code),
				slog.String("event", ev.Event),
				slog.String("action", ev.Action),
			)
			return Outcome{Kind: OutcomeRejected, Reason: ErrFilterRejected}
		}
	}

	name, err := o.createAccount(ctx, ev, order)
	if err != nil {
		return o.fail(ctx, ev, err)
	}

	o.deps.Logger.InfoContext(ctx, "Account created",
		slog.String("order_code", ev.Code),
		slog.String("event", ev.Event),
		slog.String("username", name),
	)
	return Outcome{Kind: OutcomeAccountCreated, Identity: name}
}

func (o *Orchestrator) fetchOrder(ctx context.Context, ev webhookcontract.Event) (*ordergateway.Order, error) {
	ctx, span := o.tracer.Start(ctx, "FetchOrder")
	defer span.End()

	order, err := o.deps.Orders.FetchOrder(ctx, ev.Event, ev.Code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return order, err
}

func (o *Orchestrator) admitted(ctx context.Context, ev webhookcontract.Event, order *ordergateway.Order) (bool, error) {
	ctx, span := o.tracer.Start(ctx, "EvaluateFilters")
	defer span.End()

	filters, err := o.deps.Filters.ListFor(ctx, ev.Action, ev.Event)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to load filters: %w", err)
	}
	span.SetAttributes(attribute.Int("filters.count", len(filters)))

	return qnafilter.Admits(filters, ev.Action, ev.Event, order.Answers), nil
}

// createAccount derives the username from a snapshot of existing identities.
// Two deliveries racing for the same name are resolved by the identity
// provider's own uniqueness check.
func (o *Orchestrator) createAccount(ctx context.Context, ev webhookcontract.Event, order *ordergateway.Order) (string, error) {
	ctx, span := o.tracer.Start(ctx, "CreateAccount")
	defer span.End()

	existing, err := o.deps.Identities.ListIdentities(ctx)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to list identities: %w", err)
	}

	prefix := o.deps.UsernamePrefix
	if prefix == "" {
		prefix = ev.Organizer
	}

	name, err := username.Synthesize(prefix, order.GivenName, order.FamilyName, existing, order.Email)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("account.username", name))

	err = o.deps.Identities.CreateAccount(ctx, identity.Account{
		Username:   name,
		Email:      order.Email,
		GivenName:  order.GivenName,
		FamilyName: order.FamilyName,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to create account %s: %w", name, err)
	}
	return name, nil
}

func (o *Orchestrator) fail(ctx context.Context, ev webhookcontract.Event, reason error) Outcome {
	o.deps.Logger.ErrorContext(ctx, "Provisioning failed",
		slog.String("order_code", ev.Code),
		slog.String("event", ev.Event),
		slog.String("reason", describe(reason)),
		slog.String("error", reason.Error()),
	)

	body := fmt.Sprintf("Order %s of event %s could not be provisioned.\n\nReason: %s\nDetails: %s\n\n%s",
		ev.Code, ev.Event, describe(reason), reason.Error(), o.deps.Orders.OrderURL(ev.Event, ev.Code))
	o.deps.Notifier.NotifyAdmin(ctx, SubjectProvisioningFailed, body)

	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

// describe names the failure class for the administrator
func describe(err error) string {
	switch {
	case errors.Is(err, ordergateway.ErrUpstreamUnavailable):
		return "ticketing API unavailable"
	case errors.Is(err, username.ErrDuplicateAccount):
		return "an account with this email already exists"
	case errors.Is(err, username.ErrIdentityExhausted):
		return "no unique username could be derived from the name"
	default:
		return "unexpected error"
	}
}

func (o *Orchestrator) publishOutcome(ctx context.Context, outcome Outcome) {
	if o.deps.Metrics == nil {
		return
	}
	if err := o.deps.Metrics.PublishMetric(ctx, outcome.Kind.String(), 1); err != nil {
		o.deps.Logger.WarnContext(ctx, "Failed to publish outcome metric",
			slog.String("outcome", outcome.Kind.String()),
			slog.String("error", err.Error()),
		)
	}
}
