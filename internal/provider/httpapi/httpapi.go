// Package httpapi is the JSON-over-HTTP transport shared by the provider
// clients. Every call is recorded in the request log and every failure is
// mapped onto the models error taxonomy.
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

	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/internal/security"
	"github.com/manash/nogologo/pkg/models"
)

const (
	DefaultTimeout = 60 * time.Second

	maxBodyBytes   = 64 << 20
	maxPreviewLen  = 2000
	truncateFields = 100
)

type Client struct {
	provider models.ProviderID
	http     *http.Client
	log      *requestlog.Log
	urls     security.URLPolicy
}

// New returns a client for one provider. A nil httpClient gets the default
// 60 second timeout.
func New(provider models.ProviderID, httpClient *http.Client, log *requestlog.Log, urls security.URLPolicy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		provider: provider,
		http:     httpClient,
		log:      log,
		urls:     urls,
	}
}

type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Elapsed time.Duration
}

func BearerAuth(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

// PostJSON encodes payload, sends it and returns the response of a 2xx call.
// Non-2xx statuses come back as an HTTP error together with the response.
func (c *Client) PostJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.log.Appendf(requestlog.CategoryError, "[%s] failed to encode request: %v", c.provider, err)
		return nil, models.NewSerializationError(c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.log.Appendf(requestlog.CategoryError, "[%s] failed to create request: %v", c.provider, err)
		return nil, models.NewNetworkError(c.provider, err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.log.Appendf(requestlog.CategoryRequest, "[%s] POST %s %s", c.provider, endpoint, preview(body))
	return c.do(req)
}

// Download fetches an image URL returned by a provider after checking it
// against the URL policy.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.urls.Check(rawURL); err != nil {
		c.log.Appendf(requestlog.CategoryError, "[%s] refusing to download %s: %v", c.provider, rawURL, err)
		return nil, models.NewNetworkError(c.provider, fmt.Errorf("refusing to download %s: %w", rawURL, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, models.NewNetworkError(c.provider, err)
	}

	c.log.Appendf(requestlog.CategoryRequest, "[%s] GET %s", c.provider, rawURL)
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Appendf(requestlog.CategoryError, "[%s] %s %s failed after %s: %v",
			c.provider, req.Method, req.URL, since(start), err)
		return nil, models.NewNetworkError(c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	if err != nil {
		c.log.Appendf(requestlog.CategoryError, "[%s] failed to read response: %v", c.provider, err)
		return nil, models.NewNetworkError(c.provider, fmt.Errorf("failed to read response: %w", err))
	}

	c.log.Appendf(requestlog.CategoryResponse, "[%s] HTTP %d in %s (%s, %d bytes) %s",
		c.provider, resp.StatusCode, elapsed.Round(time.Millisecond), resp.Header.Get("Content-Type"), len(body), preview(body))

	out := &Response{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Body:    body,
		Elapsed: elapsed,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorMessage(body)
		c.log.Appendf(requestlog.CategoryError, "[%s] HTTP %d: %s", c.provider, resp.StatusCode, detail)
		return out, models.NewHTTPError(c.provider, resp.StatusCode, detail)
	}

	return out, nil
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}

// errorMessage pulls a human readable message out of a provider error body.
// OpenAI and Gemini nest it under error.message, xAI returns error as a string.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(envelope.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

// preview renders a body for the log with base64 payloads shortened.
func preview(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	out := string(truncateBase64InJSON(body))
	if len(out) > maxPreviewLen {
		out = out[:maxPreviewLen] + "... [truncated]"
	}
	return out
}

func truncateBase64InJSON(body []byte) []byte {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	truncateBase64Fields(data)

	result, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return result
}

func truncateBase64Fields(value any) {
	switch v := value.(type) {
	case map[string]any:
		for key, inner := range v {
			if s, ok := inner.(string); ok {
				if (key == "b64_json" || key == "data") && len(s) > truncateFields {
					v[key] = s[:truncateFields] + "... [truncated]"
				}
				continue
			}
			truncateBase64Fields(inner)
		}
	case []any:
		for _, item := range v {
			truncateBase64Fields(item)
		}
	}
}
