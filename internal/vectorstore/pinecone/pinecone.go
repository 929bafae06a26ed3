package pinecone

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

	"github.com/reviewpulse/reviewpulse/config"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

// Client talks to a Pinecone index with integrated embedding through the
// records API. It implements vectorstore.Index.
type Client struct {
	apiKey     string
	host       string
	apiVersion string
	maxRetries int
	httpClient *http.Client
}

type searchRequest struct {
	Query struct {
		Inputs struct {
			Text string `json:"text"`
		} `json:"inputs"`
		TopK int `json:"top_k"`
	} `json:"query"`
	Fields []string `json:"fields"`
}

type searchResponse struct {
	Result struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Fields struct {
				ChunkText string `json:"chunk_text"`
				Source    string `json:"source"`
			} `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// New creates a records API client from config.
func New(cfg config.VectorStoreConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	host := strings.TrimRight(cfg.IndexHost, "/")
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &Client{
		apiKey:     cfg.APIKey,
		host:       host,
		apiVersion: cfg.APIVersion,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search runs a semantic text query against one namespace. Retrieval is an
// idempotent read, so transient failures are retried with backoff; the
// write paths are not.
func (c *Client) Search(ctx context.Context, namespace, query string, topK int) ([]vectorstore.Hit, error) {
	reqBody := searchRequest{Fields: []string{"chunk_text", "source"}}
	reqBody.Query.Inputs.Text = query
	reqBody.Query.TopK = topK

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/records/namespaces/%s/search", c.host, url.PathEscape(namespace))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 250 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, status, err := c.do(ctx, http.MethodPost, endpoint, "application/json", jsonData)
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 500 {
			lastErr = fmt.Errorf("search returned status: %d", status)
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("search returned status %d: %s", status, truncate(string(body), 200))
		}

		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse search response: %w", err)
		}
		hits := make([]vectorstore.Hit, 0, len(resp.Result.Hits))
		for _, h := range resp.Result.Hits {
			hits = append(hits, vectorstore.Hit{
				ID:        h.ID,
				Score:     h.Score,
				Source:    h.Fields.Source,
				ChunkText: h.Fields.ChunkText,
			})
		}
		return hits, nil
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Upsert writes records into a namespace as NDJSON. Record ids are
// deterministic (source + sequence index), so re-upserting identical
// content overwrites identical ids.
func (c *Client) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", r.ID, err)
		}
	}

	endpoint := fmt.Sprintf("%s/records/namespaces/%s/upsert", c.host, url.PathEscape(namespace))
	body, status, err := c.do(ctx, http.MethodPost, endpoint, "application/x-ndjson", buf.Bytes())
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return fmt.Errorf("upsert returned status %d: %s", status, truncate(string(body), 200))
	}
	return nil
}

// DeleteNamespace clears every record in one namespace.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	endpoint := fmt.Sprintf("%s/namespaces/%s", c.host, url.PathEscape(namespace))
	body, status, err := c.do(ctx, http.MethodDelete, endpoint, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("delete namespace returned status %d: %s", status, truncate(string(body), 200))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", c.apiVersion)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
