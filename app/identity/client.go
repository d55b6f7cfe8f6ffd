// Package identity talks to the external identity service that owns user accounts.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/signupbot/core/logger"
)

const component = "identity"

// Outcome is the result of a sign-up submission.
type Outcome int

const (
	// ServerError covers 500, unexpected statuses and transport failures.
	ServerError Outcome = iota
	// Created means the account was created (201).
	Created
	// ClientError means the service rejected the data (400).
	ClientError
)

// String returns the log name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case ClientError:
		return "client_error"
	default:
		return "server_error"
	}
}

// Registration is the payload sent once all draft fields are collected.
type Registration struct {
	FullName   string `json:"fio"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	Login      string `json:"login"`
	TelegramID int64  `json:"telegram_id"`
	Password   string `json:"password"`
}

// Client calls the identity service HTTP API.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a client for baseURL. Each call is bounded by timeout when it is positive.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    httpClient,
	}
}

type existResponse struct {
	Exist bool `json:"exist"`
}

// UserExistsByChatID reports whether a Telegram account is already linked.
// Any failure is reported as false.
func (c *Client) UserExistsByChatID(ctx context.Context, telegramID int64) bool {
	return c.exists(ctx, "/auth/tg-exist", "telegram_id", strconv.FormatInt(telegramID, 10))
}

// LoginExists reports whether login is taken. Any failure is reported as false.
func (c *Client) LoginExists(ctx context.Context, login string) bool {
	return c.exists(ctx, "/auth/login-exist", "login", login)
}

// PhoneExists reports whether phone is registered. Any failure is reported as false.
func (c *Client) PhoneExists(ctx context.Context, phone string) bool {
	return c.exists(ctx, "/auth/phone-exist", "number", phone)
}

func (c *Client) exists(ctx context.Context, path, param, value string) bool {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	reqID := uuid.NewString()
	endpoint := c.baseURL + path + "?" + url.Values{param: {value}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logDegraded(ctx, path, reqID, 0, start, err)
		return false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logDegraded(ctx, path, reqID, 0, start, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logDegraded(ctx, path, reqID, resp.StatusCode, start, fmt.Errorf("unexpected status: %s", resp.Status))
		return false
	}

	var body existResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logDegraded(ctx, path, reqID, resp.StatusCode, start, fmt.Errorf("decode response: %w", err))
		return false
	}

	logger.Debug(ctx, component, "identity.check",
		slog.String("status", "ok"),
		slog.String("method", http.MethodGet),
		slog.String("path", path),
		slog.String("request_id", reqID),
		slog.Int("http_code", resp.StatusCode),
		slog.Bool("exist", body.Exist),
		slog.Duration("duration", logger.Took(start)),
	)
	return body.Exist
}

// SubmitRegistration posts the registration once; it is never retried.
func (c *Client) SubmitRegistration(ctx context.Context, reg Registration) Outcome {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	reqID := uuid.NewString()
	const path = "/auth/sign-up"

	payload, err := json.Marshal(reg)
	if err != nil {
		c.logSubmit(ctx, reqID, 0, ServerError, start, fmt.Errorf("encode body: %w", err))
		return ServerError
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.logSubmit(ctx, reqID, 0, ServerError, start, err)
		return ServerError
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logSubmit(ctx, reqID, 0, ServerError, start, err)
		return ServerError
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	outcome := outcomeFor(resp.StatusCode)
	var statusErr error
	if outcome != Created {
		statusErr = fmt.Errorf("sign-up rejected: %s", resp.Status)
	}
	c.logSubmit(ctx, reqID, resp.StatusCode, outcome, start, statusErr)
	return outcome
}

func outcomeFor(status int) Outcome {
	switch status {
	case http.StatusCreated:
		return Created
	case http.StatusBadRequest:
		return ClientError
	default:
		return ServerError
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) logDegraded(ctx context.Context, path, reqID string, code int, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.String("method", http.MethodGet),
		slog.String("path", path),
		slog.String("request_id", reqID),
		slog.Bool("exist", false),
		slog.Duration("duration", logger.Took(start)),
		slog.String("err", logger.Clip(err.Error(), 256)),
	}
	if code != 0 {
		attrs = append(attrs, slog.Int("http_code", code))
	}
	logger.Warn(ctx, component, "identity.check.degraded", attrs...)
}

func (c *Client) logSubmit(ctx context.Context, reqID string, code int, outcome Outcome, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("method", http.MethodPost),
		slog.String("path", "/auth/sign-up"),
		slog.String("request_id", reqID),
		slog.String("outcome", outcome.String()),
		slog.Duration("duration", logger.Took(start)),
	}
	if code != 0 {
		attrs = append(attrs, slog.Int("http_code", code))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.Clip(err.Error(), 256)))
		logger.Warn(ctx, component, "identity.signup", attrs...)
		return
	}
	logger.Info(ctx, component, "identity.signup", attrs...)
}
