// Package github implements the GraphQL search client used as the crawl
// engine's remote query executor. The client does no retrying or quota
// gating of its own; both live in the crawler package.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/crawler"
)

// Client errors.
var (
	ErrUnauthorized         = errors.New("unauthorized: bad credentials")
	ErrForbidden            = errors.New("forbidden: access denied")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrGraphQLError         = errors.New("graphql error")
	ErrNoData               = errors.New("no data in response")
)

const (
	defaultEndpoint  = "https://api.github.com/graphql"
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "starcrawl/1.0"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 10 * 1024 * 1024
)

// searchRepositoriesQuery pages through the repository search index and
// carries the rate-limit envelope on every response.
const searchRepositoriesQuery = `
query SearchRepositories($query: String!, $first: Int!, $after: String) {
  search(query: $query, type: REPOSITORY, first: $first, after: $after) {
    repositoryCount
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      ... on Repository {
        databaseId
        nameWithOwner
        stargazerCount
        updatedAt
      }
    }
  }
  rateLimit {
    limit
    remaining
    resetAt
    cost
  }
}
`

// rateLimitQuery probes the current quota without touching the search index.
const rateLimitQuery = `
query {
  rateLimit {
    limit
    remaining
    resetAt
    cost
  }
}
`

// Config holds the client's connection parameters.
type Config struct {
	Token     string
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the GitHub GraphQL API over plain HTTP POSTs.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	userAgent  string
	logger     *zap.Logger
}

var _ crawler.QueryExecutor = (*Client)(nil)

// NewClient builds a client. The token is required; everything else has
// working defaults.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("github token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}, nil
}

// graphQLRequest is the POST body for every call.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLError is one entry of a response's errors array.
type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// graphQLResponse is the generic response envelope.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// searchData mirrors the fields the search query requests.
type searchData struct {
	Search struct {
		RepositoryCount int `json:"repositoryCount"`
		PageInfo        struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Nodes []json.RawMessage `json:"nodes"`
	} `json:"search"`
	RateLimit *crawler.QuotaReport `json:"rateLimit"`
}

// Search executes one page of the repository search. cursor is the opaque
// continuation token from the previous page; empty means start.
func (c *Client) Search(ctx context.Context, query string, first int, cursor string) (crawler.SearchPage, error) {
	variables := map[string]any{
		"query": query,
		"first": first,
	}
	if cursor != "" {
		variables["after"] = cursor
	}

	raw, err := c.execute(ctx, searchRepositoriesQuery, variables)
	if err != nil {
		return crawler.SearchPage{}, err
	}

	var data searchData
	if err := json.Unmarshal(raw, &data); err != nil {
		return crawler.SearchPage{}, fmt.Errorf("decode search response: %w", err)
	}

	return crawler.SearchPage{
		Items:      data.Search.Nodes,
		TotalCount: data.Search.RepositoryCount,
		NextCursor: data.Search.PageInfo.EndCursor,
		HasMore:    data.Search.PageInfo.HasNextPage,
		Quota:      data.RateLimit,
	}, nil
}

// RateLimit fetches the current quota envelope. The probe itself costs
// nothing against the search budget.
func (c *Client) RateLimit(ctx context.Context) (crawler.QuotaReport, error) {
	raw, err := c.execute(ctx, rateLimitQuery, nil)
	if err != nil {
		return crawler.QuotaReport{}, err
	}
	var data struct {
		RateLimit *crawler.QuotaReport `json:"rateLimit"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return crawler.QuotaReport{}, fmt.Errorf("decode rate limit response: %w", err)
	}
	if data.RateLimit == nil {
		return crawler.QuotaReport{}, ErrNoData
	}
	return *data.RateLimit, nil
}

// execute posts one GraphQL request and returns the data payload. HTTP 401
// and 403 surface as credential errors so the retry policy treats them as
// fatal; every other failure reads as transient.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github.v4+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post graphql: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("close response body", zap.Error(cerr))
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, firstLine(payload))
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrForbidden, firstLine(payload))
	default:
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatusCode, resp.StatusCode, firstLine(payload))
	}

	var gql graphQLResponse
	if err := json.Unmarshal(payload, &gql); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gql.Errors) > 0 {
		first := gql.Errors[0]
		c.logger.Warn("graphql request returned errors",
			zap.String("type", first.Type),
			zap.String("message", first.Message),
			zap.Int("count", len(gql.Errors)),
		)
		return nil, fmt.Errorf("%w: %s", ErrGraphQLError, first.Message)
	}
	if gql.Data == nil {
		return nil, ErrNoData
	}
	return gql.Data, nil
}

// firstLine trims a response body down to something loggable.
func firstLine(b []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(b))
	if i := bytes.IndexByte([]byte(s), '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		s = s[:max]
	}
	return s
}
