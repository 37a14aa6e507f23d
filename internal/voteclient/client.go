package voteclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jeromeabel/lapreuveduconcept/internal/models"
	"github.com/jeromeabel/lapreuveduconcept/internal/visitor"
)

const votePath = "/api/vote"

// APIError is a non-2xx answer from the vote endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vote api: %d: %s", e.Status, e.Message)
}

// Client talks to the vote endpoint. It carries the visitor token itself
// instead of relying on a cookie jar, so the identity survives plain-HTTP
// development servers and can be persisted between runs.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
}

func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

// VisitorToken returns the token last issued by the server, if any.
func (c *Client) VisitorToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) SetVisitorToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// FetchVotes loads the tallies of every comic in a single request.
func (c *Client) FetchVotes(ctx context.Context, comicIDs []string) ([]models.VoteTally, error) {
	q := url.Values{"comic": {strings.Join(comicIDs, ",")}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+votePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp models.GetVotesResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Toggle flips the current visitor's vote on a comic.
func (c *Client) Toggle(ctx context.Context, comicID string) (models.ToggleVoteResponse, error) {
	body, err := json.Marshal(models.ToggleVoteRequest{ComicID: comicID})
	if err != nil {
		return models.ToggleVoteResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+votePath, bytes.NewReader(body))
	if err != nil {
		return models.ToggleVoteResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.ToggleVoteResponse
	if err := c.do(req, &resp); err != nil {
		return models.ToggleVoteResponse{}, err
	}
	return resp, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if token := c.VisitorToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: visitor.CookieName, Value: token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vote api: %w", err)
	}
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.Name == visitor.CookieName && ck.Value != "" {
			c.SetVisitorToken(ck.Value)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vote api: decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body models.ErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
