// Package pocketbase is the adapter for the remote record store. The engine
// consumes it strictly through Find, Create and Update over named collections.
package pocketbase

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
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable marks transient store failures; callers may retry the whole
// operation since no partial state is exposed on failure.
var ErrUnavailable = errors.New("pocketbase: store unavailable")

// ErrRecordNotFound indicates an update target that no longer exists.
var ErrRecordNotFound = errors.New("pocketbase: record not found")

// Clause is a single exact-equality filter term.
type Clause struct {
	Field string
	Value string
}

// Eq builds an equality clause.
func Eq(field, value string) Clause {
	return Clause{Field: field, Value: value}
}

// Query describes a Find call. Clauses are combined as a conjunction; the
// store contract needs no range or partial-match operators.
type Query struct {
	Clauses []Clause
	Expand  []string
	Sort    string
	PerPage int
}

const fullListBatch = 200

// Client talks to the record store over HTTP. All calls carry the caller's
// context plus the configured per-request timeout, and run behind a circuit
// breaker so a dead store fails fast instead of piling up requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *TokenProvider
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient constructs a store client.
func NewClient(baseURL string, auth *TokenProvider, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name: "pocketbase",
		}),
	}
}

// BaseURL exposes the store base for file URL synthesis.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks the store health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil, nil)
	return err
}

// Find returns every record of collection matching q. Unless q.PerPage caps
// the result, all pages are fetched so callers see one consistent snapshot
// shape regardless of store paging.
func (c *Client) Find(ctx context.Context, collection string, q Query) ([]Record, error) {
	perPage := q.PerPage
	capped := perPage > 0
	if !capped {
		perPage = fullListBatch
	}

	var records []Record
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("perPage", strconv.Itoa(perPage))
		if f := buildFilter(q.Clauses); f != "" {
			params.Set("filter", f)
		}
		if len(q.Expand) > 0 {
			params.Set("expand", strings.Join(q.Expand, ","))
		}
		if q.Sort != "" {
			params.Set("sort", q.Sort)
		}

		body, err := c.do(ctx, http.MethodGet, "/api/collections/"+collection+"/records", params, nil)
		if err != nil {
			return nil, err
		}
		var list struct {
			Page       int      `json:"page"`
			TotalPages int      `json:"totalPages"`
			Items      []Record `json:"items"`
		}
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("pocketbase: decode %s list: %w", collection, err)
		}
		records = append(records, list.Items...)
		if capped || list.Page >= list.TotalPages || len(list.Items) == 0 {
			return records, nil
		}
	}
}

// Create inserts a record into collection.
func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (Record, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/collections/"+collection+"/records", nil, fields)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("pocketbase: decode created %s record: %w", collection, err)
	}
	return rec, nil
}

// Update patches the identified record's fields.
func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) (Record, error) {
	body, err := c.do(ctx, http.MethodPatch, "/api/collections/"+collection+"/records/"+id, nil, fields)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("pocketbase: decode updated %s record: %w", collection, err)
	}
	return rec, nil
}

// FileURL synthesises the retrieval URL for a stored file reference.
func (c *Client) FileURL(collection, recordID, filename string) string {
	return fmt.Sprintf("%s/api/files/%s/%s/%s", c.baseURL, collection, recordID, filename)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	body, err := c.roundTrip(ctx, method, path, params, payload, false)
	if err == nil {
		return body, nil
	}
	// An invalid token is refreshed once; every other failure surfaces as-is.
	if errors.Is(err, errTokenRejected) {
		if c.auth != nil {
			c.auth.Invalidate()
		}
		return c.roundTrip(ctx, method, path, params, payload, true)
	}
	return nil, err
}

var errTokenRejected = errors.New("pocketbase: token rejected")

func (c *Client) roundTrip(ctx context.Context, method, path string, params url.Values, payload any, retried bool) ([]byte, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		token, err := c.auth.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
		}
		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			if retried {
				return nil, fmt.Errorf("pocketbase: request rejected with status %d", resp.StatusCode)
			}
			return nil, errTokenRejected
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrRecordNotFound
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("pocketbase: %s %s returned status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, err
	}
	return body, nil
}

func buildFilter(clauses []Clause) string {
	if len(clauses) == 0 {
		return ""
	}
	terms := make([]string, 0, len(clauses))
	for _, cl := range clauses {
		terms = append(terms, fmt.Sprintf("%s='%s'", cl.Field, escapeValue(cl.Value)))
	}
	return strings.Join(terms, " && ")
}

func escapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
