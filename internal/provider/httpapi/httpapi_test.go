package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/internal/security"
	"github.com/manash/nogologo/pkg/models"
)

func newTestClient(t *testing.T) (*Client, *requestlog.Log) {
	t.Helper()
	log := requestlog.New(zerolog.Nop())
	return New(models.ProviderXAI, nil, log, security.URLPolicy{AllowInsecure: true}), log
}

func countCategory(entries []requestlog.Entry, c requestlog.Category) int {
	n := 0
	for _, e := range entries {
		if e.Category == c {
			n++
		}
	}
	return n
}

func TestPostJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["prompt"] != "a cat" {
			t.Errorf("prompt = %v", body["prompt"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c, log := newTestClient(t)
	resp, err := c.PostJSON(context.Background(), server.URL, BearerAuth("secret"), map[string]string{"prompt": "a cat"})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}

	entries := log.All()
	if countCategory(entries, requestlog.CategoryRequest) != 1 || countCategory(entries, requestlog.CategoryResponse) != 1 {
		t.Errorf("want one request/response pair, got %v", entries)
	}
	for _, e := range entries {
		if strings.Contains(e.Message, "secret") {
			t.Errorf("credential leaked into log: %q", e.Message)
		}
	}
}

func TestPostJSON_HTTPError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"openai style", http.StatusBadRequest, `{"error":{"message":"Invalid size","type":"invalid_request_error"}}`, "Invalid size"},
		{"xai style", http.StatusUnauthorized, `{"code":"unauthorized","error":"Incorrect API key provided"}`, "Incorrect API key provided"},
		{"plain text", http.StatusInternalServerError, "upstream exploded", "upstream exploded"},
		{"redirect status", http.StatusMultipleChoices, `{}`, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, log := newTestClient(t)
			_, err := c.PostJSON(context.Background(), server.URL, nil, map[string]string{})
			if !errors.Is(err, models.ErrHTTP) {
				t.Fatalf("PostJSON() error = %v, want ErrHTTP", err)
			}
			if status, _ := models.HTTPStatus(err); status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if !strings.Contains(err.Error(), tt.wantDetail) {
				t.Errorf("error %q does not contain %q", err, tt.wantDetail)
			}
			if countCategory(log.All(), requestlog.CategoryError) != 1 {
				t.Errorf("want one error entry, got %v", log.All())
			}
		})
	}
}

func TestPostJSON_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, _ := newTestClient(t)
	_, err := c.PostJSON(context.Background(), url, nil, map[string]string{})
	if !errors.Is(err, models.ErrNetwork) {
		t.Errorf("PostJSON() error = %v, want ErrNetwork", err)
	}
}

func TestPostJSON_SerializationError(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.PostJSON(context.Background(), "http://127.0.0.1", nil, map[string]any{"bad": make(chan int)})
	if !errors.Is(err, models.ErrSerialization) {
		t.Errorf("PostJSON() error = %v, want ErrSerialization", err)
	}
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("image bytes"))
	}))
	defer server.Close()

	c, _ := newTestClient(t)
	data, err := c.Download(context.Background(), server.URL+"/img.png")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("Download() = %q", data)
	}

	if _, err := c.Download(context.Background(), server.URL+"/missing"); !errors.Is(err, models.ErrHTTP) {
		t.Errorf("Download(missing) error = %v, want ErrHTTP", err)
	}
}

func TestDownload_RejectedByPolicy(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"plain http", "http://127.0.0.1/img.png", security.ErrInvalidScheme},
		{"host outside the CDNs", "https://example.com/img.png", security.ErrUntrustedHost},
		{"bare IP", "https://8.8.8.8/img.png", security.ErrUntrustedHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := requestlog.New(zerolog.Nop())
			c := New(models.ProviderOpenAI, nil, log, security.DefaultURLPolicy())

			_, err := c.Download(context.Background(), tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Download() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, models.ErrNetwork) {
				t.Errorf("Download() error = %v, want a network error", err)
			}
			if countCategory(log.All(), requestlog.CategoryRequest) != 0 {
				t.Error("rejected download should not be sent")
			}
		})
	}
}

func TestPreview_TruncatesBase64(t *testing.T) {
	long := strings.Repeat("A", 500)
	body := []byte(`{"data":[{"b64_json":"` + long + `"}],"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"` + long + `"}}]}}]}`)

	got := preview(body)
	if strings.Contains(got, long) {
		t.Error("preview() kept full base64 payload")
	}
	if !strings.Contains(got, "image/png") {
		t.Errorf("preview() dropped non-base64 fields: %s", got)
	}
	if strings.Count(got, "[truncated]") != 2 {
		t.Errorf("preview() = %s, want two truncated fields", got)
	}
}

func TestPreview_NonJSON(t *testing.T) {
	if got := preview([]byte("not json")); got != "not json" {
		t.Errorf("preview() = %q", got)
	}
	if got := preview(nil); got != "" {
		t.Errorf("preview(nil) = %q", got)
	}
}
