package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"github.com/planlos/ticket-account-bridge/internal/booking"
	"github.com/planlos/ticket-account-bridge/internal/bootstrap"
	"github.com/planlos/ticket-account-bridge/internal/db"
	"github.com/planlos/ticket-account-bridge/internal/metrics"
	"github.com/planlos/ticket-account-bridge/internal/ordergateway"
	"github.com/planlos/ticket-account-bridge/internal/secrets"
)

var logger = logging.New()

// OrderLister fetches every order of an event
type OrderLister interface {
	FetchAllOrders(ctx context.Context, event string) ([]ordergateway.Order, error)
}

// BookingStore saves and lists order snapshots
type BookingStore interface {
	Save(ctx context.Context, event string, order ordergateway.Order) error
	List(ctx context.Context, event string) ([]booking.Booking, error)
}

// MetricsPublisher publishes metrics to CloudWatch
type MetricsPublisher interface {
	PublishMetric(ctx context.Context, name string, value float64) error
}

// Dependencies for handler (injectable for testing)
type Dependencies struct {
	Orders   OrderLister
	Bookings BookingStore
	Metrics  MetricsPublisher // Optional
	Events   []string
}

var deps *Dependencies

// handler loads all orders of the configured events into the booking table.
// One failing event does not stop the others; the run fails if any did.
func handler(ctx context.Context) error {
	ctx, span := tracing.StartHandlerSpan(ctx, "OrderPreloadHandler",
		tracing.Function("order-preload"),
	)
	defer span.End()

	var errs []error
	total := 0
	for _, event := range deps.Events {
		n, err := preload(ctx, event)
		total += n
		if err != nil {
			logger.ErrorContext(ctx, "Failed to preload orders",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	if deps.Metrics != nil {
		if err := deps.Metrics.PublishMetric(ctx, "OrdersLoaded", float64(total)); err != nil {
			logger.WarnContext(ctx, "Failed to publish metric",
				slog.String("error", err.Error()),
			)
		}
	}

	logger.InfoContext(ctx, "Order preload completed",
		slog.Int("events", len(deps.Events)),
		slog.Int("orders", total),
		slog.Int("failed_events", len(errs)),
	)

	return errors.Join(errs...)
}

func preload(ctx context.Context, event string) (int, error) {
	orders, err := deps.Orders.FetchAllOrders(ctx, event)
	if err != nil {
		return 0, err
	}

	previous, listErr := deps.Bookings.List(ctx, event)
	if listErr != nil {
		logger.WarnContext(ctx, "Failed to read previous bookings, skipping change summary",
			slog.String("event", event),
			slog.String("error", listErr.Error()),
		)
	}
	changes := diffBookings(previous, orders)

	saved := 0
	for _, order := range orders {
		if err := deps.Bookings.Save(ctx, event, order); err != nil {
			return saved, fmt.Errorf("event %s: %w", event, err)
		}
		saved++
	}

	if listErr == nil {
		logger.InfoContext(ctx, "Event preloaded",
			slog.String("event", event),
			slog.Int("orders", saved),
			slog.Int("new_orders", changes.added),
			slog.Int("status_changes", changes.statusChanged),
		)
	}
	return saved, nil
}

type bookingChanges struct {
	added         int
	statusChanged int
}

// diffBookings compares freshly fetched orders with the stored snapshots
func diffBookings(previous []booking.Booking, orders []ordergateway.Order) bookingChanges {
	status := make(map[string]string, len(previous))
	for _, b := range previous {
		status[b.Code] = b.Status
	}

	var c bookingChanges
	for _, order := range orders {
		prev, ok := status[order.Code]
		switch {
		case !ok:
			c.added++
		case prev != order.Status:
			c.statusChanged++
		}
	}
	return c
}

// parseEvents splits a comma-separated list of event slugs
func parseEvents(s string) []string {
	var events []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			events = append(events, e)
		}
	}
	return events
}

func main() {
	ctx := context.Background()

	result, err := awsinit.Init(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize AWS",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
	defer result.Cleanup()

	tableName := os.Getenv("DYNAMODB_TABLE")
	if tableName == "" {
		logger.Error("FATAL: DYNAMODB_TABLE environment variable is required")
		panic("DYNAMODB_TABLE environment variable is required")
	}

	events := parseEvents(os.Getenv("PRETIX_EVENTS"))
	if len(events) == 0 {
		logger.Error("FATAL: PRETIX_EVENTS environment variable is required")
		panic("PRETIX_EVENTS environment variable is required")
	}

	reader := secrets.NewReader(
		secretsmanager.NewFromConfig(result.Config),
		ssm.NewFromConfig(result.Config),
	)
	gateway, err := bootstrap.NewOrderGateway(result.Ctx, bootstrap.Env(os.Getenv), reader, logger)
	if err != nil {
		logger.Error("FATAL: Failed to configure order gateway",
			slog.String("error", err.Error()),
		)
		panic(err)
	}

	deps = &Dependencies{
		Orders:   gateway,
		Bookings: booking.New(db.NewClientFromConfig(result.Config, tableName)),
		Events:   events,
	}
	if namespace := os.Getenv("METRIC_NAMESPACE"); namespace != "" {
		deps.Metrics = metrics.NewPublisher(cloudwatch.NewFromConfig(result.Config), namespace,
			map[string]string{"Function": "order-preload"})
	}

	result.Start(handler)
}
