// Package pretix is a minimal client for the ticketing shop's REST API:
// orders and the custom questions their answers refer to.
package pretix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrEmptyResponse is returned when the API answers 2xx without a body
var ErrEmptyResponse = errors.New("empty response from ticketing API")

// APIError is a non-2xx answer from the ticketing API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ticketing API returned status %d: %s", e.StatusCode, e.Body)
}

// maxErrorBody caps how much of an error body is kept for logging
const maxErrorBody = 512

// Client talks to one ticketing shop installation
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client. baseURL is the shop root, e.g. "https://tickets.example.org".
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// listPage is the paginated list envelope used by every list endpoint
type listPage[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (c *Client) eventPath(organizer, event string, parts ...string) string {
	segments := []string{"api", "v1", "organizers", url.PathEscape(organizer), "events", url.PathEscape(event)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return c.baseURL + "/" + strings.Join(segments, "/") + "/"
}

// GetOrder fetches a single order by code
func (c *Client) GetOrder(ctx context.Context, organizer, event, code string) (*Order, error) {
	var order Order
	if err := c.get(ctx, c.eventPath(organizer, event, "orders", code), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders fetches every order of an event, following pagination
func (c *Client) ListOrders(ctx context.Context, organizer, event string) ([]Order, error) {
	return listAll[Order](ctx, c, c.eventPath(organizer, event, "orders"))
}

// ListQuestions fetches every custom question of an event, following pagination
func (c *Client) ListQuestions(ctx context.Context, organizer, event string) ([]Question, error) {
	return listAll[Question](ctx, c, c.eventPath(organizer, event, "questions"))
}

func listAll[T any](ctx context.Context, c *Client, firstURL string) ([]T, error) {
	var all []T
	next := firstURL
	for next != "" {
		var page listPage[T]
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}
	if all == nil {
		all = []T{}
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to ticketing API failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read ticketing API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return ErrEmptyResponse
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode ticketing API response: %w", err)
	}
	return nil
}
