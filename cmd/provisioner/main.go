package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"github.com/planlos/ticket-account-bridge/internal/bootstrap"
	"github.com/planlos/ticket-account-bridge/internal/db"
	"github.com/planlos/ticket-account-bridge/internal/filterstore"
	"github.com/planlos/ticket-account-bridge/internal/metrics"
	"github.com/planlos/ticket-account-bridge/internal/provisioning"
	"github.com/planlos/ticket-account-bridge/internal/secrets"
	"github.com/planlos/ticket-account-bridge/pkg/webhookcontract"
	"go.opentelemetry.io/otel/attribute"
)

var logger = logging.New()

// EventHandler runs one webhook event to its outcome
type EventHandler interface {
	Handle(ctx context.Context, ev webhookcontract.Event) provisioning.Outcome
}

// Dependencies for handler (injectable for testing)
type Dependencies struct {
	Orchestrator EventHandler
}

var deps *Dependencies

// handler processes queued webhook events. Business failures are reported
// by the orchestrator, so the batch never fails for them; undecodable
// messages are dropped rather than redelivered forever.
func handler(ctx context.Context, event events.SQSEvent) error {
	ctx, span := tracing.StartHandlerSpan(ctx, "ProvisionerHandler",
		tracing.Function("provisioner"),
	)
	defer span.End()
	span.SetAttributes(attribute.Int("sqs.records", len(event.Records)))

	for _, record := range event.Records {
		var ev webhookcontract.Event
		if err := json.Unmarshal([]byte(record.Body), &ev); err != nil {
			logger.ErrorContext(ctx, "Dropping undecodable message",
				slog.String("message_id", record.MessageId),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := ev.Validate(); err != nil {
			logger.ErrorContext(ctx, "Dropping invalid webhook event",
				slog.String("message_id", record.MessageId),
				slog.String("error", err.Error()),
			)
			continue
		}

		outcome := deps.Orchestrator.Handle(ctx, ev)

		attrs := []any{
			slog.String("message_id", record.MessageId),
			slog.String("order_code", ev.Code),
			slog.String("outcome", outcome.Kind.String()),
		}
		if outcome.Reason != nil {
			attrs = append(attrs, slog.String("reason", outcome.Reason.Error()))
		}
		logger.InfoContext(ctx, "Processed webhook event", attrs...)
	}

	return nil
}

func fatal(msg string, err error) {
	logger.Error("FATAL: "+msg,
		slog.String("error", err.Error()),
	)
	panic(err)
}

func main() {
	ctx := context.Background()

	result, err := awsinit.Init(ctx)
	if err != nil {
		fatal("Failed to initialize AWS", err)
	}
	defer result.Cleanup()

	env := bootstrap.Env(os.Getenv)

	tableName, err := env.Require("DYNAMODB_TABLE")
	if err != nil {
		fatal("Missing configuration", err)
	}

	reader := secrets.NewReader(
		secretsmanager.NewFromConfig(result.Config),
		ssm.NewFromConfig(result.Config),
	)

	gateway, err := bootstrap.NewOrderGateway(result.Ctx, env, reader, logger)
	if err != nil {
		fatal("Failed to configure order gateway", err)
	}
	identities, err := bootstrap.NewIdentityProvider(result.Ctx, env, reader, result.Config)
	if err != nil {
		fatal("Failed to configure identity provider", err)
	}
	notifier, err := bootstrap.NewNotifier(result.Ctx, env, reader, result.Config, logger)
	if err != nil {
		fatal("Failed to configure notifications", err)
	}

	orchDeps := provisioning.Dependencies{
		Orders:         gateway,
		Filters:        filterstore.New(db.NewClientFromConfig(result.Config, tableName), filterstore.UUIDGenerator{}),
		Identities:     identities,
		Notifier:       notifier,
		Logger:         logger,
		UsernamePrefix: env.Default("USERNAME_PREFIX", ""),
	}
	if namespace := env.Default("METRIC_NAMESPACE", ""); namespace != "" {
		orchDeps.Metrics = metrics.NewPublisher(cloudwatch.NewFromConfig(result.Config), namespace,
			map[string]string{"Function": "provisioner"})
	}

	logger.Info("Provisioner configured",
		slog.Bool("order_api_enabled", gateway.Enabled()),
		slog.Any("notification_channels", notifier.Channels()),
	)

	deps = &Dependencies{
		Orchestrator: provisioning.New(orchDeps),
	}

	result.Start(handler)
}
