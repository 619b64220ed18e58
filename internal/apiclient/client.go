// Package apiclient wraps outbound calls to the admin backend API with
// timeouts, bounded retries, and response normalization. Every call returns a
// Result; transport faults never escape this package.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_admin_bot/internal/config"
	"tg_admin_bot/internal/logging"
)

const unreachableDetail = "Could not reach the server. Please try again later."

// Transient server statuses that trigger a retry, mirroring the backend's
// load-balancer failure modes.
var retryStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Body is a decoded JSON object from an API response.
type Body = map[string]any

// Result is the normalized outcome of one API call: the HTTP status code plus
// the decoded body. Items is set instead of Body when the response is a JSON
// array. Exactly one Result is produced per call, success or failure.
type Result struct {
	Status int
	Body   Body
	Items  []Body
}

// Detail returns the body's detail string, falling back to a generic message
// when the body carries none.
func (r Result) Detail() string {
	if r.Body != nil {
		if detail, ok := r.Body["detail"].(string); ok {
			return detail
		}
	}

	return "Unknown error"
}

// StringField returns the named body field as a string, or empty when absent.
func (r Result) StringField(key string) string {
	if r.Body == nil {
		return ""
	}

	value, _ := r.Body[key].(string)
	return value
}

// FloatField returns the named body field as a float64, or zero when absent.
func (r Result) FloatField(key string) float64 {
	if r.Body == nil {
		return 0
	}

	value, _ := r.Body[key].(float64)
	return value
}

// httpDoer captures the subset of http.Client behavior we rely on to allow
// lightweight stubbing in tests without a live backend.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues requests against the admin backend API. It is safe for
// concurrent use by multiple in-flight handler invocations.
type Client struct {
	baseURL string
	retries int
	backoff time.Duration
	http    httpDoer
	logger  *logrus.Entry

	// sleep is overridable for tests.
	sleep func(time.Duration)
}

// New constructs a Client from the resolved configuration.
func New(cfg config.Config, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		retries: cfg.APIRetries,
		backoff: cfg.APIBackoff,
		http:    &http.Client{Timeout: cfg.APITimeout},
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// GetMe fetches the admin identity bound to the chat.
func (c *Client) GetMe(ctx context.Context, chatID int64) Result {
	return c.do(ctx, http.MethodGet, "/telegram/me", chatPayload(chatID))
}

// ListUsers fetches all users visible to the chat's identity.
func (c *Client) ListUsers(ctx context.Context, chatID int64) Result {
	return c.do(ctx, http.MethodGet, "/telegram/users", chatPayload(chatID))
}

// GetUser fetches a single user by username.
func (c *Client) GetUser(ctx context.Context, chatID int64, username string) Result {
	return c.do(ctx, http.MethodGet, "/telegram/user/"+url.PathEscape(username), chatPayload(chatID))
}

// GenerateVoucher creates a voucher for the given amount.
func (c *Client) GenerateVoucher(ctx context.Context, chatID int64, amount float64) Result {
	payload := chatPayload(chatID)
	payload["amount"] = amount
	return c.do(ctx, http.MethodPost, "/telegram/generate-voucher", payload)
}

// RechargeUser adds the given amount to a user's balance.
func (c *Client) RechargeUser(ctx context.Context, chatID int64, username string, amount float64) Result {
	payload := chatPayload(chatID)
	payload["username"] = username
	payload["amount"] = amount
	return c.do(ctx, http.MethodPatch, "/telegram/recharge", payload)
}

// AdjustBalance sets a user's balance to an absolute amount.
func (c *Client) AdjustBalance(ctx context.Context, chatID int64, username string, amount float64) Result {
	payload := chatPayload(chatID)
	payload["username"] = username
	payload["amount"] = amount
	return c.do(ctx, http.MethodPatch, "/telegram/balance-adjust", payload)
}

// Ping issues a single non-retried request to the backend and reports
// reachability. Any HTTP response, regardless of status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/telegram/me", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	drainBody(resp)

	return nil
}

func chatPayload(chatID int64) Body {
	return Body{"chat_id": strconv.FormatInt(chatID, 10)}
}

// do runs one API call with the retry policy: transport errors and transient
// server statuses are retried up to the configured bound with exponential
// backoff, then surfaced as a synthesized 503. Retry applies uniformly to
// reads and the mutating verbs this bot uses; a retried voucher creation whose
// first attempt actually landed can produce a duplicate voucher, which is an
// accepted trade-off.
func (c *Client) do(ctx context.Context, method, path string, payload Body) Result {
	fullURL := c.baseURL + path

	encoded, err := json.Marshal(payload)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":  "api_encode_error",
			"method": method,
			"url":    fullURL,
		}).WithError(err).Error("failed to encode request payload")
		return unreachableResult()
	}

	attempts := c.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(encoded))
		if reqErr != nil {
			c.logger.WithFields(logging.Fields{
				"event":  "api_request_error",
				"method": method,
				"url":    fullURL,
			}).WithError(reqErr).Error("failed to build request")
			return unreachableResult()
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			c.logger.WithFields(logging.Fields{
				"event":   "api_transport_error",
				"method":  method,
				"url":     fullURL,
				"attempt": attempt,
			}).WithError(doErr).Error("request failed")

			if attempt < attempts {
				c.sleep(c.backoffDelay(attempt))
				continue
			}
			return unreachableResult()
		}

		if retryStatuses[resp.StatusCode] {
			drainBody(resp)
			c.logger.WithFields(logging.Fields{
				"event":   "api_transient_status",
				"method":  method,
				"url":     fullURL,
				"status":  resp.StatusCode,
				"attempt": attempt,
			}).Warn("transient server status")

			if attempt < attempts {
				c.sleep(c.backoffDelay(attempt))
				continue
			}
			return unreachableResult()
		}

		return decodeResult(resp, method)
	}

	return unreachableResult()
}

// backoffDelay returns backoff * 2^(attempt-1).
func (c *Client) backoffDelay(attempt int) time.Duration {
	return c.backoff << (attempt - 1)
}

func decodeResult(resp *http.Response, method string) Result {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{
			Status: resp.StatusCode,
			Body:   Body{"detail": "Invalid response from server"},
		}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		if method == http.MethodPatch {
			return Result{Status: resp.StatusCode, Body: Body{}}
		}
		return Result{Status: resp.StatusCode, Body: Body{"detail": ""}}
	}

	var object Body
	if err := json.Unmarshal(raw, &object); err == nil {
		return Result{Status: resp.StatusCode, Body: object}
	}

	var items []Body
	if err := json.Unmarshal(raw, &items); err == nil {
		return Result{Status: resp.StatusCode, Items: items}
	}

	return Result{
		Status: resp.StatusCode,
		Body:   Body{"detail": string(raw)},
	}
}

func unreachableResult() Result {
	return Result{
		Status: http.StatusServiceUnavailable,
		Body:   Body{"detail": unreachableDetail},
	}
}

func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
