// Package apiclient is the task repository client: it translates filter
// criteria and mutations into calls against the task REST API.
//
// Every method is a single round trip. Nothing is retried here; retry policy
// belongs to the caller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"taskboard/internal/logging"
	"taskboard/internal/models"
)

const (
	tasksPath    = "/api/tasks"
	summaryPath  = "/api/tasks/summary"
	maxBodyBytes = 8 << 20
)

// Client talks to a task API rooted at a base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *zap.Logger
	breaker *gobreaker.CircuitBreaker
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// BreakerConfig controls the optional fail-fast circuit breaker. While open,
// calls fail immediately with a NetworkError instead of reaching the server.
type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout"`
}

// WithBreaker wraps every round trip in a circuit breaker.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		if !cfg.Enabled {
			return
		}
		if cfg.MinRequests == 0 {
			cfg.MinRequests = 3
		}
		if cfg.FailureRatio <= 0 {
			cfg.FailureRatio = 0.6
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "task-api",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.Warn("[api][breaker] state change",
					zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
}

// New builds a client for the API at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse api url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns the tasks matching filter. Unset filter fields are not sent.
func (c *Client) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	q, err := EncodeFilter(filter)
	if err != nil {
		return nil, &ValidationError{Field: "filter", Message: err.Error()}
	}
	var tasks []models.Task
	if err := c.do(ctx, "list", http.MethodGet, tasksPath, q, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// Create validates the input locally and posts a new task.
func (c *Client) Create(ctx context.Context, title, description string, dueDate *time.Time) (*models.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &ValidationError{Field: "title", Message: "please enter the task title"}
	}
	if strings.TrimSpace(description) == "" {
		return nil, &ValidationError{Field: "description", Message: "please enter the task description"}
	}
	body := models.CreateTaskRequest{Title: title, Description: description, DueDate: dueDate}

	var created models.Task
	if err := c.do(ctx, "create", http.MethodPost, tasksPath, nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Complete marks the task as completed.
func (c *Client) Complete(ctx context.Context, id int64) error {
	path := tasksPath + "/" + strconv.FormatInt(id, 10) + "/complete"
	return notFound("complete", id, c.do(ctx, "complete", http.MethodPatch, path, nil, nil, nil))
}

// Delete removes the task.
func (c *Client) Delete(ctx context.Context, id int64) error {
	path := tasksPath + "/" + strconv.FormatInt(id, 10)
	return notFound("delete", id, c.do(ctx, "delete", http.MethodDelete, path, nil, nil, nil))
}

// SummaryURL is the downloadable report link. It is never fetched here.
func (c *Client) SummaryURL() string {
	return c.endpoint(summaryPath, nil)
}

// EncodeFilter turns filter into query parameters, dropping nil fields.
// Timestamps are sent in UTC so equal instants encode identically.
func EncodeFilter(filter models.TaskFilter) (url.Values, error) {
	if filter.FromDate != nil {
		filter.FromDate = models.TimePtr(filter.FromDate.UTC())
	}
	if filter.ToDate != nil {
		filter.ToDate = models.TimePtr(filter.ToDate.UTC())
	}
	return query.Values(filter)
}

func notFound(op string, id int64, err error) error {
	var srvErr *ServerError
	if errors.As(err, &srvErr) && srvErr.StatusCode == http.StatusNotFound {
		return &NotFoundError{Op: op, ID: id}
	}
	return err
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

type rawResponse struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body, out any) error {
	target := c.endpoint(path, q)

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reqBody = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := logging.RequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(logging.RequestIDHeader, reqID)

	start := time.Now()
	raw, err := c.execute(op, req)
	fields := []zap.Field{
		zap.String(logging.RequestIDKey, reqID),
		zap.String("method", method),
		zap.String("url", target),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		c.log.Warn("[api]["+op+"][err]", append(fields, zap.Error(err))...)
		return err
	}
	fields = append(fields, zap.Int("status", raw.status))

	if raw.status < 200 || raw.status >= 300 {
		srvErr := newServerError(op, raw)
		c.log.Warn("[api]["+op+"][err]", append(fields, zap.Error(srvErr))...)
		return srvErr
	}
	c.log.Debug("[api]["+op+"][ok]", fields...)

	if out != nil && len(bytes.TrimSpace(raw.body)) > 0 {
		if err := json.Unmarshal(raw.body, out); err != nil {
			return &ServerError{Op: op, StatusCode: raw.status, Message: "malformed response: " + err.Error()}
		}
	}
	return nil
}

// execute performs one round trip, through the breaker when configured.
// 5xx responses come back as errors so they count against the breaker.
func (c *Client) execute(op string, req *http.Request) (*rawResponse, error) {
	if c.breaker == nil {
		return c.roundTrip(op, req)
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(op, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &NetworkError{Op: op, Err: err}
	}
	raw, _ := res.(*rawResponse)
	var srvErr *ServerError
	if errors.As(err, &srvErr) && raw != nil {
		// handed back to do() so it is reported like any other non-2xx
		return raw, nil
	}
	return raw, err
}

func (c *Client) roundTrip(op string, req *http.Request) (*rawResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	raw := &rawResponse{status: resp.StatusCode, body: body}
	if resp.StatusCode >= http.StatusInternalServerError {
		return raw, newServerError(op, raw)
	}
	return raw, nil
}

func newServerError(op string, raw *rawResponse) *ServerError {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	msg := strings.TrimSpace(string(raw.body))
	if json.Unmarshal(raw.body, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Detail != "":
			msg = payload.Detail
		}
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &ServerError{Op: op, StatusCode: raw.status, Message: msg}
}
