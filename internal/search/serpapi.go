package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/krish/internal/httpkit"
)

// DefaultSerpAPIURL is the SerpAPI JSON endpoint.
const DefaultSerpAPIURL = "https://serpapi.com/search.json"

// SerpAPI implements the Provider interface for SerpAPI's Google engine.
type SerpAPI struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewSerpAPI creates a SerpAPI provider. An empty endpoint uses
// DefaultSerpAPIURL.
func NewSerpAPI(apiKey, endpoint string) *SerpAPI {
	if endpoint == "" {
		endpoint = DefaultSerpAPIURL
	}
	return &SerpAPI{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15*time.Second),
			httpkit.WithRetry(1, time.Second),
		),
	}
}

func (s *SerpAPI) Name() string { return "serpapi" }

type serpResponse struct {
	Error          string       `json:"error"`
	OrganicResults []serpResult `json:"organic_results"`
}

type serpResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (s *SerpAPI) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, errors.New("serpapi: api key not set")
	}

	count := opts.count()
	params := url.Values{
		"engine":  {"google"},
		"q":       {query},
		"api_key": {s.apiKey},
		"num":     {strconv.Itoa(count)},
	}
	if opts.Language != "" {
		params.Set("hl", opts.Language)
	}

	var sr serpResponse
	if err := httpkit.DoJSON(ctx, s.httpClient, http.MethodGet, s.endpoint+"?"+params.Encode(), nil, nil, &sr); err != nil {
		return nil, fmt.Errorf("serpapi: %w", err)
	}
	if sr.Error != "" && len(sr.OrganicResults) == 0 {
		// "Google hasn't returned any results" is reported as an error.
		if strings.Contains(strings.ToLower(sr.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, fmt.Errorf("serpapi: %s", sr.Error)
	}

	results := make([]Result, 0, count)
	for _, r := range sr.OrganicResults {
		if len(results) >= count {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return results, nil
}
