package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sort"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"github.com/planlos/ticket-account-bridge/internal/db"
	"github.com/planlos/ticket-account-bridge/internal/filterstore"
	"github.com/planlos/ticket-account-bridge/internal/qnafilter"
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

// FilterStore persists QnA filters
type FilterStore interface {
	Add(ctx context.Context, f qnafilter.Filter) (filterstore.Record, error)
	List(ctx context.Context) ([]filterstore.Record, error)
}

// Dependencies for handler (injectable for testing)
type Dependencies struct {
	Store FilterStore
}

var deps *Dependencies

// handler serves filter administration requests
func handler(ctx context.Context, request events.APIGatewayProxyRequest) (Response, error) {
	ctx, span := tracing.StartHandlerSpan(ctx, "FilterAdminHandler",
		tracing.Function("filter-admin"),
		tracing.RequestID(request.RequestContext.RequestID),
	)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", request.HTTPMethod))

	switch request.HTTPMethod {
	case "POST":
		return addFilter(ctx, request)
	case "GET":
		return listFilters(ctx)
	default:
		return errorResponse(405, "notAllowed", "Method not allowed")
	}
}

func addFilter(ctx context.Context, request events.APIGatewayProxyRequest) (Response, error) {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return errorResponse(400, "invalidArguments", "Body is not valid base64")
		}
		body = decoded
	}

	var req webhookcontract.FilterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(400, "invalidArguments", "Body is not a valid filter definition")
	}

	f, err := qnafilter.New(req.Action, req.Event, req.QnAList)
	if err != nil {
		var vErr *qnafilter.ValidationError
		if errors.As(err, &vErr) {
			logger.WarnContext(ctx, "Rejected filter definition",
				slog.String("field", vErr.Field),
				slog.String("error", vErr.Message),
			)
			return errorResponse(400, "invalidArguments", err.Error())
		}
		return errorResponse(500, "serverFail", "Failed to validate filter")
	}

	record, err := deps.Store.Add(ctx, f)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store filter",
			slog.String("action", f.Action),
			slog.String("event", f.Event),
			slog.String("error", err.Error()),
		)
		return errorResponse(500, "serverFail", "Failed to store filter")
	}

	logger.InfoContext(ctx, "Filter added",
		slog.String("filter_id", record.ID),
		slog.String("action", f.Action),
		slog.String("event", f.Event),
		slog.Int("questions", len(f.QnA)),
	)

	return Response{StatusCode: 204, Headers: map[string]string{}}, nil
}

func listFilters(ctx context.Context) (Response, error) {
	records, err := deps.Store.List(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list filters",
			slog.String("error", err.Error()),
		)
		return errorResponse(500, "serverFail", "Failed to list filters")
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})

	filters := make([]webhookcontract.FilterResponse, 0, len(records))
	for _, r := range records {
		filters = append(filters, webhookcontract.FilterResponse{
			ID:        r.ID,
			Action:    r.Filter.Action,
			Event:     r.Filter.Event,
			QnAList:   r.Filter.QnA,
			CreatedAt: r.CreatedAt,
		})
	}

	body, err := json.Marshal(filters)
	if err != nil {
		return errorResponse(500, "serverFail", "Failed to build response")
	}

	return Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
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

func main() {
	ctx := context.Background()

	result, err := awsinit.Init(ctx, awsinit.WithHTTPHandler("filter-admin"))
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

	deps = &Dependencies{
		Store: filterstore.New(db.NewClientFromConfig(result.Config, tableName), filterstore.UUIDGenerator{}),
	}

	result.Start(handler)
}
