package eboekhouden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultAPIURL is the production REST endpoint.
	DefaultAPIURL = "https://api.e-boekhouden.nl"

	// PageSize is the page size used when fetching all mutations.
	PageSize = 500

	// sessionSkew renews the session slightly before it expires.
	sessionSkew = 30 * time.Second
)

// ClientConfig represents the configuration for the e-Boekhouden API client.
type ClientConfig struct {
	APIURL   string
	APIToken string
	Source   string        // application identifier sent with the session request
	Timeout  time.Duration // Default: 30 seconds
}

// Client is an e-Boekhouden REST API client.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	source     string

	mu           sync.Mutex
	sessionToken string
	expiresAt    time.Time
	now          func() time.Time
}

// NewClient creates a new e-Boekhouden API client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := config.APIURL
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	source := config.Source
	if source == "" {
		source = "eboekhouden-sync"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		apiToken: config.APIToken,
		source:   source,
		now:      time.Now,
	}
}

// Login opens an API session and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	body, err := json.Marshal(SessionRequest{AccessToken: c.apiToken, Source: c.source})
	if err != nil {
		return fmt.Errorf("failed to encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	var session SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if session.Token == "" {
		return fmt.Errorf("e-Boekhouden API returned an empty session token")
	}

	c.sessionToken = session.Token
	c.expiresAt = c.now().Add(time.Duration(session.ExpiresIn) * time.Second)
	return nil
}

// Logout closes the current API session, if any.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	token := c.sessionToken
	c.sessionToken = ""
	c.mu.Unlock()

	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/session", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.parseError(resp)
	}
	return nil
}

// token returns a valid session token, logging in when needed.
func (c *Client) token(ctx context.Context, forceRenew bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if forceRenew || c.sessionToken == "" || c.now().Add(sessionSkew).After(c.expiresAt) {
		if err := c.loginLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.sessionToken, nil
}

// get performs an authenticated GET and decodes the JSON response into out.
// An expired session (401) is renewed once.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.token(ctx, attempt > 0)
		if err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			continue
		}

		err = func() error {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return c.parseError(resp)
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}()
		return err
	}

	return &APIError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "session rejected after renewal"}
}

// MutationFilter narrows a mutation listing.
type MutationFilter struct {
	DateFrom string // YYYY-MM-DD, inclusive
	DateTo   string // YYYY-MM-DD, inclusive
	Type     *MutationType
	Offset   int
	Limit    int
}

func (f MutationFilter) values() url.Values {
	q := url.Values{}
	if f.DateFrom != "" {
		q.Set("date[gte]", f.DateFrom)
	}
	if f.DateTo != "" {
		q.Set("date[lte]", f.DateTo)
	}
	if f.Type != nil {
		q.Set("type", strconv.Itoa(int(*f.Type)))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// ListMutations lists one page of mutations.
func (c *Client) ListMutations(ctx context.Context, filter MutationFilter) (*MutationsResponse, error) {
	var page MutationsResponse
	if err := c.get(ctx, "/v1/mutation", filter.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchAllMutations fetches all mutations in a date range with pagination.
func (c *Client) FetchAllMutations(ctx context.Context, dateFrom, dateTo string) ([]Mutation, error) {
	var all []Mutation
	offset := 0

	for {
		page, err := c.ListMutations(ctx, MutationFilter{
			DateFrom: dateFrom,
			DateTo:   dateTo,
			Offset:   offset,
			Limit:    PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list mutations (offset=%d): %w", offset, err)
		}

		all = append(all, page.Items...)

		if len(page.Items) < PageSize || (page.Count > 0 && len(all) >= page.Count) {
			break
		}

		offset += PageSize
	}

	return all, nil
}

// GetMutation fetches a single mutation including its rows.
func (c *Client) GetMutation(ctx context.Context, id int64) (*Mutation, error) {
	var m Mutation
	if err := c.get(ctx, fmt.Sprintf("/v1/mutation/%d", id), nil, &m); err != nil {
		return nil, fmt.Errorf("failed to get mutation %d: %w", id, err)
	}
	return &m, nil
}

// ListLedgers fetches the full chart of accounts.
func (c *Client) ListLedgers(ctx context.Context) ([]Ledger, error) {
	var all []Ledger
	offset := 0

	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(PageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page LedgersResponse
		if err := c.get(ctx, "/v1/ledger", q, &page); err != nil {
			return nil, fmt.Errorf("failed to list ledgers (offset=%d): %w", offset, err)
		}

		all = append(all, page.Items...)
		if len(page.Items) < PageSize {
			break
		}
		offset += PageSize
	}

	return all, nil
}

// GetRelation fetches a customer/supplier relation.
func (c *Client) GetRelation(ctx context.Context, id int64) (*Relation, error) {
	var r Relation
	if err := c.get(ctx, fmt.Sprintf("/v1/relation/%d", id), nil, &r); err != nil {
		return nil, fmt.Errorf("failed to get relation %d: %w", id, err)
	}
	return &r, nil
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// parseError parses an error response from the e-Boekhouden API.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode, Code: "UNREADABLE", Message: "failed to read error response"}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: string(bytes.TrimSpace(body))}
	}

	message := errResp.Message
	if message == "" {
		message = errResp.Title
	}
	return &APIError{Status: resp.StatusCode, Code: errResp.Code, Message: message}
}
