package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"github.com/planlos/ticket-account-bridge/pkg/webhookcontract"
	"go.opentelemetry.io/otel/attribute"
)

var logger = logging.New()

// ErrorResponse is the error response format
type ErrorResponse struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Response is the API Gateway proxy response
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// EventQueue hands accepted webhook events to the provisioner
type EventQueue interface {
	Enqueue(ctx context.Context, event webhookcontract.Event) error
}

// Dependencies for handler (injectable for testing)
type Dependencies struct {
	Queue EventQueue
}

var deps *Dependencies

// handler accepts an order webhook. Business processing happens
// asynchronously, so any structurally valid body is acknowledged.
func handler(ctx context.Context, request events.APIGatewayProxyRequest) (Response, error) {
	ctx, span := tracing.StartHandlerSpan(ctx, "WebhookHandler",
		tracing.Function("webhook"),
		tracing.RequestID(request.RequestContext.RequestID),
	)
	defer span.End()

	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return errorResponse(400, "invalidArguments", "Body is not valid base64")
		}
		body = decoded
	}

	var event webhookcontract.Event
	if err := json.Unmarshal(body, &event); err != nil {
		logger.WarnContext(ctx, "Malformed webhook body",
			slog.String("request_id", request.RequestContext.RequestID),
			slog.String("error", err.Error()),
		)
		return errorResponse(400, "invalidArguments", "Body is not a valid webhook event")
	}
	if err := event.Validate(); err != nil {
		logger.WarnContext(ctx, "Incomplete webhook event",
			slog.String("request_id", request.RequestContext.RequestID),
			slog.String("error", err.Error()),
		)
		return errorResponse(400, "invalidArguments", err.Error())
	}

	span.SetAttributes(
		attribute.String("order.code", event.Code),
		attribute.String("order.event", event.Event),
		attribute.String("webhook.action", event.Action),
	)

	if err := deps.Queue.Enqueue(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Failed to enqueue webhook event",
			slog.String("order_code", event.Code),
			slog.String("error", err.Error()),
		)
		return errorResponse(500, "serverFail", "Failed to accept event")
	}

	logger.InfoContext(ctx, "Accepted webhook event",
		slog.Int64("notification_id", event.ID),
		slog.String("organizer", event.Organizer),
		slog.String("event", event.Event),
		slog.String("order_code", event.Code),
		slog.String("action", event.Action),
	)

	return Response{StatusCode: 204, Headers: map[string]string{}}, nil
}

// errorResponse builds an error response
func errorResponse(statusCode int, errorType, description string) (Response, error) {
	body, _ := json.Marshal(ErrorResponse{Type: errorType, Description: description})
	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// =============================================================================
// Real implementations
// =============================================================================

// SQSClient is the interface for SQS operations
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSEventQueue implements EventQueue using SQS
type SQSEventQueue struct {
	client   SQSClient
	queueURL string
}

// Enqueue sends the event as the message body
func (q *SQSEventQueue) Enqueue(ctx context.Context, event webhookcontract.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {DataType: aws.String("String"), StringValue: aws.String(event.Action)},
		},
	})
	return err
}

func main() {
	ctx := context.Background()

	result, err := awsinit.Init(ctx, awsinit.WithHTTPHandler("webhook"))
	if err != nil {
		logger.Error("FATAL: Failed to initialize AWS",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
	defer result.Cleanup()

	queueURL := os.Getenv("WEBHOOK_QUEUE_URL")
	if queueURL == "" {
		logger.Error("FATAL: WEBHOOK_QUEUE_URL environment variable is required")
		panic("WEBHOOK_QUEUE_URL environment variable is required")
	}

	deps = &Dependencies{
		Queue: &SQSEventQueue{
			client:   sqs.NewFromConfig(result.Config),
			queueURL: queueURL,
		},
	}

	result.Start(handler)
}
