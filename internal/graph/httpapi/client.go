// Package httpapi talks to a graph database exposed over an HTTP API
// server (Kuzu-style): POST /cypher executes a statement, GET /schema
// describes the store.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askgraph/askgraph/internal/graph"
	"github.com/askgraph/askgraph/internal/schema"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("graph api base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type statementRequest struct {
	Query string `json:"query"`
}

type statementResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   string   `json:"error,omitempty"`
}

// Execute runs the query and returns its rows.
func (c *Client) Execute(ctx context.Context, query string) (graph.Result, error) {
	start := time.Now()
	response, err := c.post(ctx, query)
	if err != nil {
		return graph.Result{}, err
	}
	return graph.Result{
		Columns:  response.Columns,
		Rows:     response.Rows,
		Duration: time.Since(start),
	}, nil
}

// DryRun checks the query with EXPLAIN, which parses and plans without
// touching data. Any server-side rejection is returned as the validation
// error detail.
func (c *Client) DryRun(ctx context.Context, query string) error {
	trimmed := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return fmt.Errorf("query is required")
	}
	_, err := c.post(ctx, "EXPLAIN "+trimmed)
	return err
}

// Schema fetches the full graph schema from the API server.
func (c *Client) Schema(ctx context.Context) (schema.Graph, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/schema", nil)
	if err != nil {
		return schema.Graph{}, fmt.Errorf("build schema request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return schema.Graph{}, fmt.Errorf("request schema: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.Graph{}, fmt.Errorf("read schema response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return schema.Graph{}, fmt.Errorf("schema fetch failed status=%d body=%s", resp.StatusCode, string(body))
	}

	var full schema.Graph
	if err := json.Unmarshal(body, &full); err != nil {
		return schema.Graph{}, fmt.Errorf("decode schema response: %w", err)
	}
	return full, nil
}

func (c *Client) post(ctx context.Context, query string) (statementResponse, error) {
	payload, err := json.Marshal(statementRequest{Query: query})
	if err != nil {
		return statementResponse{}, fmt.Errorf("marshal statement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cypher", bytes.NewReader(payload))
	if err != nil {
		return statementResponse{}, fmt.Errorf("build statement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return statementResponse{}, fmt.Errorf("request statement: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return statementResponse{}, fmt.Errorf("read statement response: %w", err)
	}

	var parsed statementResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil && resp.StatusCode < 400 {
			return statementResponse{}, fmt.Errorf("decode statement response: %w", err)
		}
	}
	if resp.StatusCode >= 400 {
		detail := parsed.Error
		if detail == "" {
			detail = strings.TrimSpace(string(body))
		}
		return statementResponse{}, fmt.Errorf("statement failed status=%d: %s", resp.StatusCode, detail)
	}
	if parsed.Error != "" {
		return statementResponse{}, fmt.Errorf("statement rejected: %s", parsed.Error)
	}
	return parsed, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
