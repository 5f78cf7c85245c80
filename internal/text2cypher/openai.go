package text2cypher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askgraph/askgraph/internal/exemplar"
	"github.com/askgraph/askgraph/internal/graph"
	"github.com/askgraph/askgraph/internal/schema"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Dialect     Dialect
}

// Client calls an OpenAI-compatible /v1/chat/completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	dialect     Dialect
	client      *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	dialect := cfg.Dialect
	if dialect == "" {
		dialect = DialectCypher
	}
	if dialect != DialectCypher && dialect != DialectSQL {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		dialect:     dialect,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Generate(ctx context.Context, question, schemaJSON string, exemplars []exemplar.Exemplar) (string, error) {
	content, err := c.chat(ctx, generateSystemPrompt(c.dialect), generateUserPrompt(question, schemaJSON, exemplars))
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	query := stripMarkdownFence(content)
	if query == "" {
		return "", fmt.Errorf("model returned an empty query")
	}
	return query, nil
}

func (c *Client) Repair(ctx context.Context, question, failedQuery, errorDetail, schemaJSON string) (string, error) {
	content, err := c.chat(ctx, repairSystemPrompt(c.dialect), repairUserPrompt(question, failedQuery, errorDetail, schemaJSON))
	if err != nil {
		return "", fmt.Errorf("repair query: %w", err)
	}
	query := stripMarkdownFence(content)
	if query == "" {
		return "", fmt.Errorf("model returned an empty repaired query")
	}
	return query, nil
}

// Reduce asks the model for the subset of the schema relevant to the
// question. A malformed or empty reply falls back to the full schema
// rather than failing the request.
func (c *Client) Reduce(ctx context.Context, question string, full schema.Graph) (schema.Graph, error) {
	fullJSON, err := full.JSON()
	if err != nil {
		return schema.Graph{}, err
	}
	content, err := c.chat(ctx, reduceSystemPrompt, reduceUserPrompt(question, fullJSON))
	if err != nil {
		return schema.Graph{}, fmt.Errorf("reduce schema: %w", err)
	}

	var reduced schema.Graph
	if err := json.Unmarshal([]byte(stripMarkdownFence(content)), &reduced); err != nil {
		return full, nil
	}
	if reduced.IsEmpty() {
		return full, nil
	}
	return reduced, nil
}

func (c *Client) Compose(ctx context.Context, question, query string, result graph.Result) (string, error) {
	content, err := c.chat(ctx, composeSystemPrompt, composeUserPrompt(question, query, result))
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}
	answer := strings.TrimSpace(content)
	if answer == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return answer, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

func (c *Client) chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func stripMarkdownFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// Drop the language tag line (```cypher, ```sql, ```json).
		if tag := strings.TrimSpace(trimmed[:newline]); isFenceTag(tag) {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isFenceTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "", "cypher", "sql", "json":
		return true
	}
	return false
}

var (
	_ Translator = (*Client)(nil)
	_ Composer   = (*Client)(nil)
)

// rowsForPrompt renders result rows compactly for the answer prompt.
func rowsForPrompt(result graph.Result) string {
	data, err := json.Marshal(result.Rows)
	if err != nil {
		return fmt.Sprintf("%v", result.Rows)
	}
	return string(data)
}
