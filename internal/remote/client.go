// Package remote is the HTTP client for the remote learning store. Only the
// request/response contract is implemented here; the server lives elsewhere.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/performance"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 3 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to the remote learning store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ API = (*Client)(nil)

func (c *Client) GetPerformance(ctx context.Context, studentID, gameID string) (performance.Record, error) {
	endpoint := "GET /performance"
	var resp performanceResponse
	if err := c.do(ctx, endpoint, http.MethodGet, c.path("performance", studentID, gameID), nil, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return performance.Record{}, fmt.Errorf("%w: %w", err, performance.ErrNotFound)
		}
		return performance.Record{}, err
	}
	if resp.CurrentDifficulty == nil {
		return performance.Record{}, &ErrMalformedResponse{Endpoint: endpoint, Err: errors.New("missing currentDifficulty")}
	}
	if resp.Interactions == nil {
		resp.Interactions = []performance.Interaction{}
	}
	return performance.Record{
		Interactions:      resp.Interactions,
		CurrentDifficulty: difficulty.Clamp(*resp.CurrentDifficulty),
	}, nil
}

func (c *Client) PutDifficulty(ctx context.Context, studentID, gameID string, value float64) (float64, error) {
	endpoint := "PUT /performance/difficulty"
	var resp difficultyResponse
	path := c.path("performance", studentID, gameID, "difficulty")
	if err := c.do(ctx, endpoint, http.MethodPut, path, difficultyRequest{Difficulty: value}, &resp); err != nil {
		return 0, err
	}
	if resp.Success != nil && !*resp.Success {
		return 0, &ErrUnavailable{Endpoint: endpoint, Err: errors.New("server reported failure")}
	}
	switch {
	case resp.NewDifficulty != nil:
		return difficulty.Clamp(*resp.NewDifficulty), nil
	case resp.Difficulty != nil:
		return difficulty.Clamp(*resp.Difficulty), nil
	}
	return value, nil
}

func (c *Client) PostInteraction(ctx context.Context, in InteractionPayload) (*float64, error) {
	endpoint := "POST /game-interaction"
	var resp interactionResponse
	if err := c.do(ctx, endpoint, http.MethodPost, c.path("game-interaction"), in, &resp); err != nil {
		return nil, err
	}
	return resp.NewDifficulty, nil
}

func (c *Client) GetKnowledgeState(ctx context.Context, studentID, skillID string) (bkt.KnowledgeState, error) {
	endpoint := "GET /knowledge-state"
	var state bkt.KnowledgeState
	if err := c.do(ctx, endpoint, http.MethodGet, c.path("knowledge-state", studentID, skillID), nil, &state); err != nil {
		return bkt.KnowledgeState{}, err
	}
	if !state.Valid() || state.StudentID != studentID || state.SkillID != skillID {
		return bkt.KnowledgeState{}, &ErrMalformedResponse{Endpoint: endpoint, Err: errors.New("incomplete knowledge state")}
	}
	if state.Observations == nil {
		state.Observations = []bkt.Observation{}
	}
	return state, nil
}

func (c *Client) SaveKnowledgeState(ctx context.Context, state bkt.KnowledgeState) error {
	return c.do(ctx, "POST /knowledge-state", http.MethodPost, c.path("knowledge-state"), state, nil)
}

func (c *Client) PostObservation(ctx context.Context, obs ObservationPayload) error {
	return c.do(ctx, "POST /knowledge-state/observation", http.MethodPost, c.path("knowledge-state", "observation"), obs, nil)
}

// path joins escaped segments onto the base URL.
func (c *Client) path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// do performs one request with the client timeout. A nil out discards the
// response body.
func (c *Client) do(ctx context.Context, endpoint, method, target string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ErrUnavailable{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &ErrUnavailable{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ErrUnavailable{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(raw))),
		}
	}

	// Callers validate required fields, so an empty body decodes to zero.
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ErrMalformedResponse{Endpoint: endpoint, Err: err}
	}
	return nil
}
