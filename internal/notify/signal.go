package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SignalConfig addresses a signal-cli REST API
type SignalConfig struct {
	Address    string // Base URL of the REST API
	User       string
	Password   string
	Sender     string   // Registered phone number messages are sent from
	Recipients []string // Administrator phone numbers
}

// SignalChannel sends notifications as instant messages
type SignalChannel struct {
	cfg        SignalConfig
	httpClient *http.Client
}

// NewSignalChannel creates a new SignalChannel
func NewSignalChannel(cfg SignalConfig, httpClient *http.Client) *SignalChannel {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.Address = strings.TrimRight(cfg.Address, "/")
	return &SignalChannel{cfg: cfg, httpClient: httpClient}
}

// Name identifies the channel in logs
func (c *SignalChannel) Name() string {
	return "signal"
}

type signalSendRequest struct {
	Message    string   `json:"message"`
	Number     string   `json:"number"`
	Recipients []string `json:"recipients"`
}

// Send posts subject and body as one message to every recipient
func (c *SignalChannel) Send(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(signalSendRequest{
		Message:    subject + "\n\n" + body,
		Number:     c.cfg.Sender,
		Recipients: c.cfg.Recipients,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Address+"/v2/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("signal API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
