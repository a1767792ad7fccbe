package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const (
	defaultSearchBaseURL = "https://www.googleapis.com/customsearch/v1"
	maxSearchResults     = 3
)

// WebSearchConfig holds Google Custom Search credentials. Missing credentials
// leave the tool declared but every call fails.
type WebSearchConfig struct {
	BaseURL       string
	APIKey        string
	EngineID      string
	RatePerMinute int
}

// WebSearch queries Google Custom Search
type WebSearch struct {
	config  WebSearchConfig
	limiter *rate.Limiter
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.Tool = (*WebSearch)(nil)

type customSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

func NewWebSearch(config WebSearchConfig, logger *zap.Logger) *WebSearch {
	if config.BaseURL == "" {
		config.BaseURL = defaultSearchBaseURL
	}
	if config.RatePerMinute <= 0 {
		config.RatePerMinute = 30
		logger.Info("Using default search rate", zap.Int("perMinute", config.RatePerMinute))
	}
	if config.APIKey == "" || config.EngineID == "" {
		logger.Warn("Web search credentials missing, searchWeb calls will fail")
	}
	return &WebSearch{
		config:  config,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RatePerMinute)), 1),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (s *WebSearch) Name() string { return "searchWeb" }

func (s *WebSearch) Description() string {
	return "Search the web and return the top results"
}

func (s *WebSearch) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "The search query",
		},
	}, "query")
}

func (s *WebSearch) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	if s.config.APIKey == "" || s.config.EngineID == "" {
		return nil, fmt.Errorf("web search is not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("key", s.config.APIKey)
	params.Set("cx", s.config.EngineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprint(maxSearchResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search service returned %d: %s", resp.StatusCode, string(body))
	}

	var data customSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]map[string]interface{}, 0, maxSearchResults)
	for _, item := range data.Items {
		if len(results) == maxSearchResults {
			break
		}
		results = append(results, map[string]interface{}{
			"title":   item.Title,
			"snippet": item.Snippet,
			"link":    item.Link,
		})
	}

	s.logger.Debug("Web search completed", zap.String("query", query), zap.Int("results", len(results)))

	return map[string]interface{}{
		"query":   query,
		"results": results,
	}, nil
}
