// Package api fetches the Joshua Project collections over HTTP.
package api

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/pkg/errors"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the root of the v1 API.
const DefaultBaseURL = "https://api.joshuaproject.net/v1"

// DefaultLimit is large enough for every collection to come back in one
// page.
const DefaultLimit = 20000

// ErrNoAPIKey is returned by NewClient when no key is configured.
var ErrNoAPIKey = errors.New("an API key is required")

// StatusError is a non-2xx response.
type StatusError struct {
	Dataset string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return "fetching " + e.Dataset + ": HTTP " + strconv.Itoa(e.Code) + ": " + e.Body
}

// Temporary reports whether retrying might help.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client fetches datasets. Requests are spaced by a rate limiter, retried
// with exponential backoff, and stop early once the circuit breaker opens.
type Client struct {
	baseURL string
	apiKey  string
	limit   int
	retries int
	backoff time.Duration

	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     jpdata.Logger
}

// ClientOption is a functional option for NewClient.
type ClientOption func(c *Client)

// OptClientBaseURL overrides DefaultBaseURL.
func OptClientBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// OptClientHTTPClient sets the http.Client used for requests.
func OptClientHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// OptClientTimeout sets the timeout of each request.
func OptClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// OptClientLimit sets the limit query parameter.
func OptClientLimit(n int) ClientOption {
	return func(c *Client) {
		c.limit = n
	}
}

// OptClientInterval sets the minimum spacing between requests.
func OptClientInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// OptClientRetries sets how many times a failed request is retried and the
// delay before the first retry. The delay doubles on each attempt.
func OptClientRetries(n int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retries, c.backoff = n, backoff
	}
}

// OptClientLogger sets the logger.
func OptClientLogger(log jpdata.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient returns a Client authenticating with apiKey.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		limit:   DefaultLimit,
		retries: 3,
		backoff: time.Second,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		log:     jpdata.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "joshua-project-api",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			serr, ok := errors.Cause(err).(*StatusError)
			return err == nil || (ok && !serr.Temporary())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return c, nil
}

// URL returns the request URL for ds with the API key replaced by "REDACTED",
// suitable for logs and errors.
func (c *Client) URL(ds Dataset) string {
	return c.url(ds, "REDACTED")
}

func (c *Client) url(ds Dataset, key string) string {
	q := url.Values{}
	q.Set("api_key", key)
	q.Set("limit", strconv.Itoa(c.limit))
	return c.baseURL + "/" + ds.Endpoint + "?" + q.Encode()
}

// FetchRaw returns the response body for ds.
func (c *Client) FetchRaw(ctx context.Context, ds Dataset) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << uint(attempt-1)
			c.log.Printf("retrying %s in %v after: %v", ds.Name, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "waiting to retry")
			case <-time.After(delay):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "waiting for rate limiter")
		}
		body, err := c.cb.Execute(func() ([]byte, error) {
			return c.get(ctx, ds)
		})
		if err == nil {
			return body, nil
		}
		lastErr = err
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests || ctx.Err() != nil {
			break
		}
		if serr, ok := errors.Cause(err).(*StatusError); ok && !serr.Temporary() {
			break
		}
	}
	return nil, errors.Wrapf(lastErr, "fetching %s", ds.Name)
}

func (c *Client) get(ctx context.Context, ds Dataset) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.url(ds, c.apiKey), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		// the url in a transport error carries the key
		if uerr, ok := err.(*url.Error); ok {
			err = uerr.Err
		}
		return nil, errors.Wrapf(err, "GET %s", c.URL(ds))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Dataset: ds.Name, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s response", ds.Name)
	}
	return body, nil
}

// Response is a decoded dataset.
type Response struct {
	Dataset   Dataset
	Records   []interface{}
	Body      []byte
	FetchedAt time.Time
}

// Decode parses body as the array of records for ds and checks its size
// against ExpectedRecords.
func Decode(ds Dataset, body []byte, log jpdata.Logger) ([]interface{}, error) {
	if log == nil {
		log = jpdata.NopLogger{}
	}
	recs, err := json.ReadAll(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", ds.Name)
	}
	if diff := len(recs) - ds.ExpectedRecords; diff > ExpectedTolerance || diff < -ExpectedTolerance {
		log.Printf("expected ~%d %s records, got %d", ds.ExpectedRecords, ds.Name, len(recs))
	}
	return recs, nil
}

// Fetch downloads and decodes ds.
func (c *Client) Fetch(ctx context.Context, ds Dataset) (*Response, error) {
	start := time.Now()
	body, err := c.FetchRaw(ctx, ds)
	if err != nil {
		return nil, err
	}
	recs, err := Decode(ds, body, c.log)
	if err != nil {
		return nil, err
	}
	c.log.Printf("downloaded %d %s records in %v", len(recs), ds.Name, time.Since(start).Round(time.Millisecond))
	return &Response{Dataset: ds, Records: recs, Body: body, FetchedAt: start}, nil
}
