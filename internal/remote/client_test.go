package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]struct {
	status int
	body   string
}) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		io.Copy(&body, r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			if resp.status != 0 {
				w.WriteHeader(resp.status)
			}
			w.Write([]byte(resp.body))
			return
		}
		w.WriteHeader(404)
		w.Write([]byte(`{"detail":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *Client {
	return &Client{baseURL: ts.server.URL, httpClient: ts.server.Client()}
}

var ctx = context.Background()

func TestUpload(t *testing.T) {
	ts := newTestServer(t, map[string]struct {
		status int
		body   string
	}{
		"POST /upload": {body: `{"session_id":"s1","person_name":"Nadia","memory_count":120,"message":"indexed"}`},
	})

	got, err := ts.client().Upload(ctx, "_chat.txt", strings.NewReader("1/2/24, 9:15 AM - Nadia: hello beta"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	want := UploadResult{SessionID: "s1", PersonName: "Nadia", MemoryCount: 120, Message: "indexed"}
	if got != want {
		t.Errorf("Upload = %+v, want %+v", got, want)
	}

	req := ts.requests[0]
	if !strings.HasPrefix(req.ContentType, "multipart/form-data") {
		t.Errorf("Content-Type = %q, want multipart", req.ContentType)
	}
	if !strings.Contains(req.Body, `filename="_chat.txt"`) {
		t.Errorf("multipart body missing filename: %q", req.Body)
	}
	if !strings.Contains(req.Body, "Nadia: hello beta") {
		t.Error("multipart body missing file content")
	}
}

func TestUploadErrorCarriesDetail(t *testing.T) {
	ts := newTestServer(t, map[string]struct {
		status int
		body   string
	}{
		"POST /upload": {status: 400, body: `{"detail":"No messages found. Check the file format."}`},
	})

	_, err := ts.client().Upload(ctx, "bad.txt", strings.NewReader("nothing parseable"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.Status != 400 {
		t.Errorf("Status = %d, want 400", apiErr.Status)
	}
	if apiErr.Detail != "No messages found. Check the file format." {
		t.Errorf("Detail = %q", apiErr.Detail)
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, map[string]struct {
		status int
		body   string
	}{
		"POST /chat": {body: `{"reply":"I miss you too.","is_crisis":false}`},
	})

	got, err := ts.client().Chat(ctx, "I miss you", "s1")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got.Reply != "I miss you too." || got.IsCrisis {
		t.Errorf("Chat = %+v", got)
	}

	body := ts.requests[0].Body
	if !strings.Contains(body, `"message":"I miss you"`) || !strings.Contains(body, `"session_id":"s1"`) {
		t.Errorf("request body = %q", body)
	}
}

func TestMemoriesSearchParam(t *testing.T) {
	ts := newTestServer(t, map[string]struct {
		status int
		body   string
	}{
		"GET /memories/s1": {body: `{"memories":[{"sender":"Nadia","text":"drink water","date":"1/2/24","score":0.91}]}`},
	})

	mems, err := ts.client().Memories(ctx, "s1", "water")
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	if len(mems) != 1 || mems[0].Sender != "Nadia" || mems[0].Score != 0.91 {
		t.Errorf("Memories = %+v", mems)
	}
	if got := ts.requests[0].Path; got != "/memories/s1?search=water" {
		t.Errorf("request path = %q", got)
	}

	// Absent search omits the parameter entirely.
	if _, err := ts.client().Memories(ctx, "s1", ""); err != nil {
		t.Fatalf("Memories (no search): %v", err)
	}
	if got := ts.requests[1].Path; got != "/memories/s1" {
		t.Errorf("request path = %q, want no search param", got)
	}
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, map[string]struct {
		status int
		body   string
	}{
		"DELETE /session/s1": {body: `{"deleted":true}`},
	})

	if err := ts.client().DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if ts.requests[0].Method != "DELETE" {
		t.Errorf("method = %q", ts.requests[0].Method)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, map[string]struct {
		status int
		body   string
	}{
		"GET /health": {body: `{"status":"ok"}`},
	})

	if err := ts.client().Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestNon2xxIsAlwaysAnError(t *testing.T) {
	// 300 Multiple Choices is not auto-followed by the http client; it
	// must surface as an *APIError, not decode as an empty success.
	ts := newTestServer(t, map[string]struct {
		status int
		body   string
	}{
		"GET /health": {status: 300, body: `{"detail":"ambiguous"}`},
	})

	err := ts.client().Health(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.Status != 300 || apiErr.Detail != "ambiguous" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestUnreachableServer(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // nothing listens here
	if err := c.Health(ctx); err == nil {
		t.Fatal("expected transport error")
	}
}
