package clickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient wraps HTTP communication with ClickHouse
type HTTPClient struct {
	baseURL  string
	username string
	password string
	database string
	client   *http.Client
}

// NewHTTPClient creates a new ClickHouse HTTP client
func NewHTTPClient(host string, port int, database, username, password string) *HTTPClient {
	return &HTTPClient{
		baseURL:  fmt.Sprintf("http://%s:%d", host, port),
		username: username,
		password: password,
		database: database,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping tests the connection
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, _, err := c.Query(ctx, "SELECT 1")
	return err
}

// jsonResponse is ClickHouse's FORMAT JSON envelope. The meta array keeps
// the projection's column order, which JSONEachRow would lose.
type jsonResponse struct {
	Meta []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"meta"`
	Data []map[string]any `json:"data"`
	Rows int              `json:"rows"`
}

// Query executes a query and returns ordered column names plus rows as maps
func (c *HTTPClient) Query(ctx context.Context, query string) ([]string, []map[string]any, error) {
	if !strings.Contains(strings.ToUpper(query), "FORMAT") {
		query = query + " FORMAT JSON"
	}

	body, err := c.execute(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	var resp jsonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to parse response: %w", err)
	}

	columns := make([]string, len(resp.Meta))
	for i, m := range resp.Meta {
		columns[i] = m.Name
	}

	return columns, resp.Data, nil
}

// execute sends query to ClickHouse and returns raw response
func (c *HTTPClient) execute(ctx context.Context, query string) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("database", c.database)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewBufferString(query))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-ClickHouse-User", c.username)
	req.Header.Set("X-ClickHouse-Key", c.password)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &serverError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

// serverError carries the ClickHouse error text so the adapter can read
// the exception code out of it.
type serverError struct {
	status int
	body   string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("ClickHouse error (HTTP %d): %s", e.status, e.body)
}

// Close closes the HTTP client
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
