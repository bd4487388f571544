package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

const (
	defaultSNPediaURL       = "https://bots.snpedia.com/api.php"
	defaultSNPediaUserAgent = "snpedia-variant-pipeline/1.0"
	maxPageBytes            = 8 << 20
)

// APIError is an error object returned by the MediaWiki API
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("snpedia api error %s: %s", e.Code, e.Info)
}

// SNPediaClient fetches rendered HTML and wikitext for variant pages
type SNPediaClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries uint64
	cache      PageCache
	logger     *logrus.Logger
}

// NewSNPediaClient creates a new SNPedia API client. cache may be nil.
func NewSNPediaClient(config domain.SNPediaConfig, cache PageCache, logger *logrus.Logger) *SNPediaClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultSNPediaURL
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultSNPediaUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1 // SNPedia asks bots to stay at one request per second
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &SNPediaClient{
		baseURL:    config.BaseURL,
		userAgent:  config.UserAgent,
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    newBreaker("SNPedia", logger),
		maxRetries: uint64(config.RetryCount),
		cache:      cache,
		logger:     logger,
	}
}

// FetchPage returns both representations of a variant page.
// It returns domain.ErrPageNotFound when SNPedia has no such page.
func (c *SNPediaClient) FetchPage(ctx context.Context, variantID string) (*domain.RawPage, error) {
	id := domain.CanonicalVariantID(variantID)
	if id == "" {
		return nil, domain.NewValidationError("variant_id", "must be an rs or i identifier", variantID)
	}

	if c.cache != nil {
		page, ok, err := c.cache.Get(ctx, id)
		if err != nil {
			c.logger.WithError(err).WithField("variant_id", id).Warn("Page cache lookup failed")
		} else if ok {
			return page, nil
		}
	}

	var page *domain.RawPage
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var fetchErr error
		page, fetchErr = c.fetchOnce(ctx, id)
		if isRetryable(fetchErr) {
			c.logger.WithError(fetchErr).WithField("variant_id", id).Debug("Retrying SNPedia fetch")
			return retry.RetryableError(fetchErr)
		}
		return fetchErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrPageNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching snpedia page %s: %w", id, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, page); err != nil {
			c.logger.WithError(err).WithField("variant_id", id).Warn("Page cache store failed")
		}
	}
	return page, nil
}

func (c *SNPediaClient) fetchOnce(ctx context.Context, id string) (*domain.RawPage, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.get(ctx, pageTitle(id))
		if err != nil {
			return nil, err
		}
		return parseParseResponse(id, body)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.RawPage), nil
}

func (c *SNPediaClient) get(ctx context.Context, title string) ([]byte, error) {
	params := url.Values{
		"action":        {"parse"},
		"page":          {title},
		"prop":          {"text|wikitext"},
		"redirects":     {"1"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrPageNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "SNPedia", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// parseParseResponse reads an action=parse reply in either format version
func parseParseResponse(id string, body []byte) (*domain.RawPage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON from SNPedia for %s", id)
	}
	res := gjson.ParseBytes(body)

	if apiErr := res.Get("error"); apiErr.Exists() {
		code := apiErr.Get("code").String()
		if code == "missingtitle" || code == "invalidtitle" {
			return nil, domain.ErrPageNotFound
		}
		return nil, &APIError{Code: code, Info: apiErr.Get("info").String()}
	}

	parse := res.Get("parse")
	if !parse.Exists() {
		return nil, fmt.Errorf("snpedia response for %s has no parse result", id)
	}
	return &domain.RawPage{
		VariantID: id,
		Title:     parse.Get("title").String(),
		HTML:      contentField(parse.Get("text")),
		Wikitext:  contentField(parse.Get("wikitext")),
	}, nil
}

// contentField unwraps the legacy {"*": "..."} shape
func contentField(v gjson.Result) string {
	if v.IsObject() {
		return v.Get(`\*`).String()
	}
	return v.String()
}

// pageTitle upper-cases the first letter, as MediaWiki titles do
func pageTitle(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
