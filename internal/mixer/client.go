package mixer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single request to the mixer.
const DefaultTimeout = 5 * time.Second

const apiPath = "/api/"

// Params are the flat string parameters of a mixer function call.
// Empty values are omitted from the request.
type Params map[string]string

// Client talks to the mixer's HTTP+XML API at the address held by a Connection.
type Client struct {
	conn *Connection
	http *http.Client
}

// NewClient returns a Client using conn for addressing. If hc is nil a client
// with DefaultTimeout is used.
func NewClient(conn *Connection, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{conn: conn, http: hc}
}

// FetchStatus downloads and parses the status document.
func (c *Client) FetchStatus(ctx context.Context) (StatusSnapshot, error) {
	body, err := c.get(ctx, c.conn.BaseURL()+apiPath)
	if err != nil {
		return StatusSnapshot{}, err
	}
	return ParseStatus(body)
}

// Call invokes function on the mixer. The response body is not interpreted.
func (c *Client) Call(ctx context.Context, function string, params Params) error {
	_, err := c.get(ctx, FunctionURL(c.conn.BaseURL(), function, params))
	return err
}

// FunctionURL builds the request URL for a function call.
func FunctionURL(baseURL, function string, params Params) string {
	q := url.Values{}
	q.Set("Function", function)
	for k, v := range params {
		if v == "" {
			continue
		}
		q.Set(k, v)
	}
	return baseURL + apiPath + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
