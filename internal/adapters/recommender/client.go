package recommender

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/pkg/config"
)

const (
	maxResponseBody = 4 << 20
	// maxErrorBody caps how much of a failed reply is kept in StatusError.
	maxErrorBody = 512
)

// StatusError is a non-2xx reply from the recommendation service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recommendation service returned %d: %s", e.Code, e.Body)
}

// Client implements ports.Recommender over HTTP. It makes exactly one attempt
// per call.
type Client struct {
	http     *fasthttp.Client
	endpoint string
	format   string
	city     string
	timeout  time.Duration
}

// NewClient creates a client for the configured endpoint and payload format.
// city is sent with the coordinates payload.
func NewClient(cfg config.RecommenderConfig, city string) *Client {
	timeout := cfg.Timeout()
	return &Client{
		http: &fasthttp.Client{
			Name:                "cityplanner",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
			MaxResponseBodySize: maxResponseBody,
		},
		endpoint: cfg.Endpoint(),
		format:   cfg.PayloadFormat,
		city:     city,
		timeout:  timeout,
	}
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Recommend posts points and decodes the reply. Cancelling ctx abandons the
// exchange; the connection finishes in the background up to the deadline.
func (c *Client) Recommend(ctx context.Context, requestID string, points []domain.Coordinate) (*domain.Recommendations, error) {
	if len(points) == 0 {
		return nil, domain.ErrNoMarkers
	}
	body, err := EncodeRequest(c.format, c.city, points)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// Not pooled: an abandoned exchange may still be writing into them.
	req := &fasthttp.Request{}
	resp := &fasthttp.Response{}
	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.SetBodyRaw(body)

	errc := make(chan error, 1)
	go func() { errc <- c.http.DoDeadline(req, resp, deadline) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("recommend: %w", ctx.Err())
	case err := <-errc:
		if err != nil {
			return nil, fmt.Errorf("recommend: %w", err)
		}
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &StatusError{Code: code, Body: errorBody(resp.Body())}
	}
	return DecodeResponse(resp.Body())
}

func errorBody(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return strings.ToValidUTF8(strings.TrimSpace(string(b)), "")
}
