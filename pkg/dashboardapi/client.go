package dashboardapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/quizzy-go-api/internal/models"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = 200 * time.Millisecond
	maxPayloadBytes   = 1 << 20
)

// StatusError reports a non-success response from the dashboard endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dashboard request failed with status %d", e.StatusCode)
}

// Config configures the dashboard client.
type Config struct {
	BaseURL    string
	Document   string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Registerer prometheus.Registerer
	Logger     zerolog.Logger
}

// Client fetches the dashboard snapshot document.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	validate   *validator.Validate
	metrics    *clientMetrics
	tracer     trace.Tracer
	logger     zerolog.Logger
}

type clientMetrics struct {
	duration prometheus.Histogram
	failures *prometheus.CounterVec
}

// New builds a dashboard client for the configured document.
func New(cfg Config) (*Client, error) {
	endpoint, err := documentURL(cfg.BaseURL, cfg.Document, cfg.Token)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	metrics, err := newClientMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    metrics,
		tracer:     otel.Tracer("github.com/noah-isme/quizzy-go-api/pkg/dashboardapi"),
		logger:     cfg.Logger.With().Str("component", "dashboard_client").Logger(),
	}, nil
}

// DefaultConfig returns a Config with the default timeout and retry budget.
func DefaultConfig(baseURL, document, token string) Config {
	return Config{
		BaseURL:    baseURL,
		Document:   document,
		Token:      token,
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		Backoff:    defaultBackoff,
	}
}

// FetchDashboard performs the GET and decodes the snapshot. Transport errors and 5xx
// responses are retried up to the configured budget.
func (c *Client) FetchDashboard(ctx context.Context) (models.DashboardSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "dashboard.fetch")
	defer span.End()

	start := time.Now()
	snapshot, attempts, err := c.fetchWithRetry(ctx)
	c.metrics.duration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("dashboard.attempts", attempts))

	if err != nil {
		c.metrics.failures.WithLabelValues(failureReason(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn().Err(err).Int("attempts", attempts).Msg("dashboard fetch failed")
		return models.DashboardSnapshot{}, err
	}

	return snapshot, nil
}

func (c *Client) fetchWithRetry(ctx context.Context) (models.DashboardSnapshot, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.backoff
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return models.DashboardSnapshot{}, attempt, ctx.Err()
			case <-timer.C:
			}
			c.logger.Debug().Int("attempt", attempt+1).Err(lastErr).Msg("retrying dashboard fetch")
		}

		snapshot, err := c.fetchOnce(ctx)
		if err == nil {
			return snapshot, attempt + 1, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			return models.DashboardSnapshot{}, attempt + 1, err
		}
	}
	return models.DashboardSnapshot{}, c.maxRetries + 1, lastErr
}

func (c *Client) fetchOnce(ctx context.Context) (models.DashboardSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return models.DashboardSnapshot{}, fmt.Errorf("build dashboard request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.DashboardSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return models.DashboardSnapshot{}, &StatusError{StatusCode: resp.StatusCode}
	}

	var snapshot models.DashboardSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&snapshot); err != nil {
		return models.DashboardSnapshot{}, &DecodeError{Err: err}
	}
	if err := c.validate.Struct(snapshot); err != nil {
		return models.DashboardSnapshot{}, &DecodeError{Err: err}
	}

	return snapshot, nil
}

// DecodeError reports a payload that does not match the dashboard shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "invalid dashboard payload: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	var decodeErr *DecodeError
	return !errors.As(err, &decodeErr)
}

func failureReason(err error) string {
	var statusErr *StatusError
	var decodeErr *DecodeError
	switch {
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}

func documentURL(baseURL, document, token string) (string, error) {
	baseURL = strings.TrimSpace(baseURL)
	document = strings.TrimSpace(document)
	if baseURL == "" || document == "" {
		return "", errors.New("dashboard base url and document are required")
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(document))
	if err != nil {
		return "", fmt.Errorf("parse dashboard url: %w", err)
	}

	query := parsed.Query()
	query.Set("alt", "media")
	if token != "" {
		query.Set("token", token)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func newClientMetrics(registerer prometheus.Registerer) (*clientMetrics, error) {
	metrics := &clientMetrics{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quizzy",
			Subsystem: "dashboard_client",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of dashboard fetches including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizzy",
			Subsystem: "dashboard_client",
			Name:      "fetch_failures_total",
			Help:      "Dashboard fetches that ended in an error.",
		}, []string{"reason"}),
	}

	if registerer == nil {
		return metrics, nil
	}

	if err := registerer.Register(metrics.duration); err != nil {
		existing, err := alreadyRegistered(err)
		if err != nil {
			return nil, err
		}
		metrics.duration = existing.(prometheus.Histogram)
	}
	if err := registerer.Register(metrics.failures); err != nil {
		existing, err := alreadyRegistered(err)
		if err != nil {
			return nil, err
		}
		metrics.failures = existing.(*prometheus.CounterVec)
	}
	return metrics, nil
}

func alreadyRegistered(err error) (prometheus.Collector, error) {
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return already.ExistingCollector, nil
	}
	return nil, fmt.Errorf("register dashboard metrics: %w", err)
}
