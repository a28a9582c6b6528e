package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"booksearch/internal/models"
)

const (
	// DefaultBaseURL is the Google Books API root
	DefaultBaseURL = "https://www.googleapis.com/books/v1"

	DefaultMaxResults = 20
	// MaxResultsLimit is the largest page the API accepts
	MaxResultsLimit = 40

	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "booksearch/1.0"
)

// SearchParams describes one page of a free-text search
type SearchParams struct {
	Query      string
	MaxResults int // 0 means DefaultMaxResults
	StartIndex int
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond paces outgoing requests; 0 disables pacing
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client queries the remote book catalog. It holds no state besides its
// configuration; every call performs exactly one request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a catalog client
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		userAgent:  userAgent,
		limiter:    limiter,
		logger:     logger,
	}
}

// Search returns one page of books matching params.Query, in catalog order
func (c *Client) Search(ctx context.Context, params SearchParams) ([]models.Book, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	startIndex := max(params.StartIndex, 0)

	values := url.Values{}
	values.Set("q", query)
	values.Set("maxResults", strconv.Itoa(maxResults))
	values.Set("startIndex", strconv.Itoa(startIndex))

	var res volumesResponse
	if _, err := c.get(ctx, "search", "/volumes", values, &res); err != nil {
		c.logger.Error("Failed to search books",
			zap.Error(err),
			zap.String("query", query),
			zap.Int("start_index", startIndex),
		)
		return nil, err
	}

	c.logger.Debug("Search completed",
		zap.String("query", query),
		zap.Int("total_items", res.TotalItems),
		zap.Int("returned", len(res.Items)),
	)
	return mapVolumes(res.Items), nil
}

// GetByID returns the book with the given volume id, or nil when the catalog
// has no such volume
func (c *Client) GetByID(ctx context.Context, id string) (*models.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	var v Volume
	found, err := c.get(ctx, "get", "/volumes/"+url.PathEscape(id), url.Values{}, &v)
	if err != nil {
		c.logger.Error("Failed to fetch book details", zap.Error(err), zap.String("book_id", id))
		return nil, err
	}
	if !found {
		return nil, nil
	}

	book := MapVolume(v)
	return &book, nil
}

// get performs a single GET and decodes the JSON body into target.
// It reports found=false for 404 responses without an error.
func (c *Client) get(ctx context.Context, op, path string, values url.Values, target any) (bool, error) {
	endpoint := c.baseURL + path
	// The key is appended after endpoint is captured so it never shows up in errors
	if c.apiKey != "" {
		values.Set("key", c.apiKey)
	}

	fail := func(status int, err error) (bool, error) {
		return false, &RemoteLookupError{Op: op, URL: endpoint, StatusCode: status, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail(0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			// url.Error carries the full URL including the key
			err = urlErr.Err
		}
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && op == "get" {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fail(resp.StatusCode, errors.New(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return true, nil
}
