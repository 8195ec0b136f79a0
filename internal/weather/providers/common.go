package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-tracker/internal/common"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// Options configures a provider. Zero values pick production defaults.
type Options struct {
	Client *http.Client
	// MaxRetries is the per-request retry budget; 0 means a failed request fails the call.
	MaxRetries int
	// BaseURL overrides the site root (used by tests).
	BaseURL string
	// Now is the clock used for CollectedAt.
	Now func() time.Time
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errNotFound      = errors.New("not found")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// browserHeaders are sent with every request; the sites serve reduced or
// blocked pages to clients that do not look like a browser.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
}

// site is the HTTP plumbing shared by every scraping provider.
type site struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func newSite(name, key, defaultBaseURL string, opts Options) site {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// A missing city is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
	})

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return site{
		name:    name,
		baseURL: strings.TrimRight(base, "/"),
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      opts.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		now:     now,
	}
}

// get performs a GET with browser headers and returns the open response.
func (s *site) get(ctx context.Context, rawURL string) (*http.Response, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range browserHeaders {
			req.Header.Set(k, v)
		}
		return req, nil
	}
	return doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
}

// document fetches rawURL and parses it as HTML.
func (s *site) document(ctx context.Context, op, rawURL string) (*goquery.Document, error) {
	resp, err := s.get(ctx, rawURL)
	if err != nil {
		return nil, s.transportError(op, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, weather.TransportError(s.name, op, fmt.Errorf("read html: %w", err))
	}
	return doc, nil
}

// json fetches rawURL and decodes a JSON body into v.
func (s *site) json(ctx context.Context, op, rawURL string, v any) error {
	resp, err := s.get(ctx, rawURL)
	if err != nil {
		return s.transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.TransportError(s.name, op, fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return weather.ExtractionError(s.name, op, fmt.Errorf("decode json: %w", err))
	}
	return nil
}

func (s *site) transportError(op string, err error) error {
	return weather.TransportError(s.name, op, err)
}

// missingPage reports that the identity element of a page was not found.
func (s *site) missingPage(op, selector string) error {
	return weather.ExtractionError(s.name, op, fmt.Errorf("%w: %s", weather.ErrPageNotFound, selector))
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			resp.Body.Close()

			// Handle rate limiting and server errors explicitly.
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode == http.StatusNotFound:
				return nil, errNotFound
			case resp.StatusCode >= 500:
				return nil, errServerError
			default:
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if errors.Is(err, errNotFound) {
			return nil, err
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// fields collects optional values from a page. A value that cannot be read
// stays nil and is remembered so the miss can be logged once per record.
type fields struct {
	provider string
	record   string
	missing  []string
}

func newFields(provider, record string) *fields {
	return &fields{provider: provider, record: record}
}

func (f *fields) miss(name string) {
	f.missing = append(f.missing, name)
}

func (f *fields) float(name, raw string) *float64 {
	v, ok := common.ParseNumber(raw)
	if !ok {
		f.miss(name)
		return nil
	}
	return &v
}

func (f *fields) int(name, raw string) *int {
	v, ok := common.ParseInt(raw)
	if !ok {
		f.miss(name)
		return nil
	}
	return &v
}

func (f *fields) text(name, raw string) *string {
	s := common.Squash(raw)
	if s == "" {
		f.miss(name)
		return nil
	}
	return &s
}

func (f *fields) wind(name, raw string) *weather.WindDirection {
	s := common.Compass(raw)
	if s == "" {
		f.miss(name)
		return nil
	}
	d := weather.WindDirection(s)
	return &d
}

// scaled multiplies a parsed value, keeping nil as nil.
func scaled(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*factor*10) / 10
	return &r
}

func (f *fields) log(city string) {
	if len(f.missing) == 0 {
		return
	}
	log.Printf("%s: %s for %s: fields not found, left empty: %s",
		f.provider, f.record, city, strings.Join(f.missing, ", "))
}

// attr returns the trimmed attribute of the first matched node.
func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.First().Attr(name)
	return strings.TrimSpace(v)
}

// text returns the squashed text of the first matched node.
func text(sel *goquery.Selection) string {
	return common.Squash(sel.First().Text())
}

// msToKmh converts a wind speed in m/s into km/h.
const msToKmh = 3.6
