package paginate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/metal-toolbox/regiongen/internal/metrics"
)

const (
	pkgName = "internal/paginate"

	// maxBodyBytes limits the response body read for a single page.
	maxBodyBytes = 64 << 20

	// DefaultRequestTimeout is the per request timeout when none is configured.
	DefaultRequestTimeout = 30 * time.Second
)

var (
	// ErrStatus is returned for non 2xx responses.
	ErrStatus = errors.New("unexpected response code")

	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("failed to parse response")

	// ErrBodyTooLarge is returned when a response body exceeds maxBodyBytes.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrRequest is returned when a request could not be completed.
	ErrRequest = errors.New("request error")
)

// Client issues page requests against an upstream API.
//
// Requests are never retried, a failed request fails the fetch.
type Client struct {
	source  string
	timeout time.Duration
	client  *retryablehttp.Client
	logger  *logrus.Logger
}

// NewClient returns a Client for the named source, httpClient may be nil in
// which case an otel instrumented client is used.
func NewClient(source string, timeout time.Duration, httpClient *http.Client, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	if logger == nil {
		logger = logrus.New()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if httpClient != nil {
		rc.HTTPClient = httpClient
	} else {
		rc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	// disable default debug logging on the retryable client
	if logger.Level < logrus.DebugLevel {
		rc.Logger = nil
	} else {
		rc.Logger = logger
	}

	return &Client{
		source:  source,
		timeout: timeout,
		client:  rc,
		logger:  logger,
	}
}

// GetJSON requests rawURL and decodes the JSON response body into out.
//
// prepare, when not nil, is invoked on the request before it is sent.
func (c *Client) GetJSON(ctx context.Context, rawURL string, prepare func(*http.Request), out any) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "paginate.GetJSON", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(attribute.String("source", c.source))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.registerError("request")
		return requestError(err, "new request")
	}

	req.Header.Set("Accept", "application/json")

	if prepare != nil {
		prepare(req.Request)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.registerError("transport")
		span.RecordError(err)

		return requestError(err, c.source+" request")
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// read the rest of the response to allow connection reuse
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

		c.registerError("status")

		return errors.Wrap(ErrStatus, fmt.Sprintf("%q", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		c.registerError("transport")
		return requestError(err, "read body")
	}

	if len(body) > maxBodyBytes {
		c.registerError("body")
		return errors.Wrap(ErrBodyTooLarge, fmt.Sprintf("limit %d bytes", maxBodyBytes))
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.registerError("decode")
		return errors.Wrap(ErrDecode, c.source+": "+err.Error())
	}

	metrics.FetchPagesCounter.With(prometheus.Labels{"source": c.source}).Inc()

	c.logger.WithFields(logrus.Fields{
		"source": c.source,
		"bytes":  len(body),
	}).Trace("page fetched")

	return nil
}

func (c *Client) registerError(kind string) {
	metrics.FetchErrorsCounter.With(
		prometheus.Labels{
			"source": c.source,
			"kind":   kind,
		},
	).Inc()
}

// requestError returns err marked as ErrRequest, err remains in the chain so that
// context cancellation and deadline errors can be told apart by the caller.
func requestError(err error, detail string) error {
	return errors.Wrap(fmt.Errorf("%w: %w", ErrRequest, err), detail)
}
