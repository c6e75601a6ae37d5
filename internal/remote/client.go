// Package remote is the HTTP client for the companion service. The
// service itself (memory indexing, persona replies) is an external
// collaborator; this package only speaks its request/response contract.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// UploadResult is the response to a successful transcript upload.
type UploadResult struct {
	SessionID   string `json:"session_id"`
	PersonName  string `json:"person_name"`
	MemoryCount int    `json:"memory_count"`
	Message     string `json:"message"`
}

// ChatResult is the persona's reply to one user turn.
type ChatResult struct {
	Reply    string `json:"reply"`
	IsCrisis bool   `json:"is_crisis"`
}

// Memory is one indexed transcript message.
type Memory struct {
	Sender string  `json:"sender"`
	Text   string  `json:"text"`
	Date   string  `json:"date,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// APIError is a non-2xx response. Detail carries the service's
// human-readable message when it sent one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload sends one transcript file as a multipart form and returns the
// derived session data.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("reading transcript: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("server not reachable — is the companion service running? (%w)", err)
	}

	var out UploadResult
	if err := decodeJSON(resp, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}

// Chat sends one user turn for the given session.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (ChatResult, error) {
	resp, err := c.post(ctx, "/chat", map[string]string{
		"message":    message,
		"session_id": sessionID,
	})
	if err != nil {
		return ChatResult{}, err
	}
	var out ChatResult
	if err := decodeJSON(resp, &out); err != nil {
		return ChatResult{}, err
	}
	return out, nil
}

// Memories lists indexed messages; an empty search returns the
// unfiltered set.
func (c *Client) Memories(ctx context.Context, sessionID, search string) ([]Memory, error) {
	path := "/memories/" + url.PathEscape(sessionID)
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var out struct {
		Memories []Memory `json:"memories"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Memories, nil
}

// DeleteSession asks the service to drop the session's memories. Callers
// proceed with the local clear regardless of the outcome.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/session/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, &struct{}{})
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return err
	}
	return decodeJSON(resp, &struct{}{})
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable — is the companion service running? (%w)", err)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable — is the companion service running? (%w)", err)
	}
	return resp, nil
}

// decodeJSON decodes a 2xx body into v, or turns a non-2xx response into
// an *APIError carrying the service's optional "detail" message.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if body, err := io.ReadAll(resp.Body); err == nil {
			if json.Unmarshal(body, &payload) == nil {
				apiErr.Detail = payload.Detail
			}
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
