package gutenberg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/providers/books"
)

const (
	DefaultBaseURL = "http://13.126.242.247/api/v1/books"
	userAgent      = "gutenberg-browse/0.1"
	maxBodyBytes   = 8 << 20
)

type Provider struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retries    int
	maxBody    int64
	logger     *zap.Logger
}

type Option func(*Provider)

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(provider *Provider) {
		if perSecond <= 0 {
			provider.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 2 {
			burst = 2
		}
		provider.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetries sets how many times a 429/5xx response is retried.
func WithRetries(retries int) Option {
	return func(provider *Provider) {
		if retries < 0 {
			retries = 0
		}
		provider.retries = retries
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(provider *Provider) {
		if logger != nil {
			provider.logger = logger
		}
	}
}

func New(httpClient *http.Client, baseURL string, options ...Option) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	provider := &Provider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "?"),
		retries:    2,
		maxBody:    maxBodyBytes,
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		option(provider)
	}
	return provider
}

func (provider *Provider) BaseURL() string { return provider.baseURL }

func (provider *Provider) PageURL(request books.Request) string {
	query := request.Query().Encode()
	if query == "" {
		return provider.baseURL
	}
	separator := "?"
	if strings.Contains(provider.baseURL, "?") {
		separator = "&"
	}
	return provider.baseURL + separator + query
}

// FetchPage issues one listing call. Transport failures and non-success
// statuses come back as *books.FetchError; a body that is not a recognizable
// listing decodes to an empty page.
func (provider *Provider) FetchPage(ctx context.Context, request books.Request) (catalog.Page, error) {
	endpoint := provider.PageURL(request)

	body, err := provider.get(ctx, endpoint)
	if err != nil {
		return catalog.Page{}, err
	}

	page := catalog.DecodePage(body)
	provider.logger.Debug("listing page fetched",
		zap.String("url", endpoint),
		zap.Int("books", len(page.Books)),
		zap.Int("total", page.Total),
	)
	return page, nil
}

func (provider *Provider) FetchCover(ctx context.Context, coverURL string) ([]byte, error) {
	if strings.TrimSpace(coverURL) == "" {
		return nil, errors.New("cover url missing")
	}
	return provider.get(ctx, strings.TrimSpace(coverURL))
}

func (provider *Provider) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= provider.retries+1; attempt++ {
		if provider.limiter != nil {
			if err := provider.limiter.Wait(ctx); err != nil {
				return nil, &books.FetchError{URL: endpoint, Err: err}
			}
		}

		body, retry, err := provider.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || attempt > provider.retries || ctx.Err() != nil {
			break
		}

		provider.logger.Debug("retrying request",
			zap.String("url", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		waitWithBackoff(ctx, attempt)
	}
	return nil, lastErr
}

func (provider *Provider) do(ctx context.Context, endpoint string) ([]byte, bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, &books.FetchError{URL: endpoint, Err: fmt.Errorf("error building request: %w", err)}
	}
	request.Header.Set("User-Agent", userAgent)
	request.Header.Set("Accept", "application/json")

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return nil, ctx.Err() == nil, &books.FetchError{URL: endpoint, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, shouldRetry(response.StatusCode), &books.FetchError{URL: endpoint, StatusCode: response.StatusCode}
	}

	// One byte past the limit tells a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(response.Body, provider.maxBody+1))
	if err != nil {
		return nil, true, &books.FetchError{URL: endpoint, Err: fmt.Errorf("error reading response: %w", err)}
	}
	if int64(len(body)) > provider.maxBody {
		return nil, false, &books.FetchError{URL: endpoint, Err: fmt.Errorf("response larger than %d bytes", provider.maxBody)}
	}

	return body, false, nil
}

func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

func waitWithBackoff(ctx context.Context, attempt int) {
	wait := time.Duration(attempt*attempt) * 250 * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < wait {
			return
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
