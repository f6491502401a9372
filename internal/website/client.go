// Package website is the bearer-authenticated REST client for the commerce
// website: work queues and callbacks.
package website

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/model"
)

// Queue endpoints polled by the bot.
const (
	PathCreateTicket      = "/api/bot/create-ticket"
	PathSendMessage       = "/api/bot/send-message"
	PathCreateQuoteTicket = "/api/bot/create-quote-ticket"
	PathSendQuote         = "/api/bot/send-quote"
	PathSendDM            = "/api/bot/send-dm"
	PathNotifyAdmins      = "/api/bot/notify-admins"
	PathAssignRole        = "/api/bot/assign-role"

	PathTicketCreated = "/api/bot/ticket-created"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 4 << 20

// APIError is a non-2xx answer from the website.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("website %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("website %s %s: status %d", e.Method, e.Path, e.Status)
}

// StatusOf returns the HTTP status carried by err, or 0 for transport errors.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// UserMessage is the text shown to a chat user for a failed call: the
// website's own error message when it sent one, the raw error otherwise.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchQueue GETs a queue endpoint and returns the raw items under key.
// A missing or null key is an empty queue.
func (c *Client) FetchQueue(ctx context.Context, path, key string) ([]json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	raw, ok := body[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("website GET %s: decode %q: %w", path, key, err)
	}
	return items, nil
}

// TicketCreated tells the website which channel serves an order.
func (c *Client) TicketCreated(ctx context.Context, body model.TicketCreated) error {
	return c.do(ctx, http.MethodPost, PathTicketCreated, body, nil)
}

// AcceptQuote accepts the quote of an order and returns the payment link.
func (c *Client) AcceptQuote(ctx context.Context, orderID string) (model.QuoteAccepted, error) {
	var out model.QuoteAccepted
	path := "/api/orders/" + url.PathEscape(orderID) + "/accept-quote"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &out); err != nil {
		return model.QuoteAccepted{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("website %s %s: marshal: %w", method, path, err)
		}
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("website %s %s: new request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("website %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("website %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("website %s %s: decode: %w", method, path, err)
	}
	return nil
}
