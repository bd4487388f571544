package external

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// summaryBatchSize is the most IDs NCBI accepts comfortably in one esummary GET
const summaryBatchSize = 200

// PubMedClient handles interactions with NCBI PubMed via E-utilities
type PubMedClient struct {
	baseURL    string
	apiKey     string
	email      string // Required by NCBI for large-scale queries
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewPubMedClient creates a new PubMed API client
func NewPubMedClient(config domain.PubMedConfig, logger *logrus.Logger) *PubMedClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	if !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 3 // 3 requests per second without an API key
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &PubMedClient{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		email:      config.Email,
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    newBreaker("PubMed", logger),
		logger:     logger,
	}
}

// PubMedSummaryResponse represents the XML response from PubMed summary
type PubMedSummaryResponse struct {
	XMLName         xml.Name          `xml:"eSummaryResult"`
	DocumentSummary []DocumentSummary `xml:"DocSum"`
}

// DocumentSummary represents a single publication summary from PubMed
type DocumentSummary struct {
	UID   string `xml:"Id"`
	Items []Item `xml:"Item"`
}

// Item represents individual fields in the document summary
type Item struct {
	Name  string `xml:"Name,attr"`
	Type  string `xml:"Type,attr"`
	Value string `xml:",innerxml"`
}

// Title returns the article title of a summary, or ""
func (d DocumentSummary) Title() string {
	for _, item := range d.Items {
		if item.Name == "Title" {
			return strings.TrimSpace(html.UnescapeString(item.Value))
		}
	}
	return ""
}

// FetchTitles returns article titles keyed by PubMed ID. IDs that PubMed does
// not know are absent from the result.
func (p *PubMedClient) FetchTitles(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	unique := uniqueNumericIDs(ids)

	for start := 0; start < len(unique); start += summaryBatchSize {
		end := start + summaryBatchSize
		if end > len(unique) {
			end = len(unique)
		}
		summaries, err := p.getArticleSummaries(ctx, unique[start:end])
		if err != nil {
			return titles, err
		}
		for _, summary := range summaries {
			if title := summary.Title(); title != "" {
				titles[summary.UID] = title
			}
		}
	}

	p.logger.WithFields(logrus.Fields{
		"requested": len(unique),
		"resolved":  len(titles),
	}).Debug("Fetched PubMed titles")
	return titles, nil
}

// getArticleSummaries retrieves summaries for one batch of PMIDs
func (p *PubMedClient) getArticleSummaries(ctx context.Context, pmids []string) ([]DocumentSummary, error) {
	if err := p.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.summaryRequest(ctx, pmids)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get article summaries: %w", err)
	}
	return result.([]DocumentSummary), nil
}

func (p *PubMedClient) summaryRequest(ctx context.Context, pmids []string) ([]DocumentSummary, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.email != "" {
		params.Set("email", p.email)
	}

	fullURL := fmt.Sprintf("%sesummary.fcgi?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute summary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "PubMed", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary response: %w", err)
	}

	var summaryResp PubMedSummaryResponse
	if err := xml.Unmarshal(body, &summaryResp); err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	return summaryResp.DocumentSummary, nil
}

func uniqueNumericIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] || strings.TrimLeft(id, "0123456789") != "" {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
