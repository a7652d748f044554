package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RecordedRequest is a request captured by FakeServer
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Target        string // X-Amz-Target header
	Body          []byte
}

// Responder decides the status code and body for a captured request
type Responder func(req RecordedRequest) (status int, body string)

// FakeServer is an httptest server that records every request and answers
// through a swappable Responder.
type FakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	respond  Responder
}

// NewFakeServer starts a FakeServer closed automatically at test end
func NewFakeServer(t *testing.T, respond Responder) *FakeServer {
	t.Helper()
	fs := &FakeServer{respond: respond}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *FakeServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.EscapedPath(),
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Target:        r.Header.Get("X-Amz-Target"),
		Body:          body,
	}

	fs.mu.Lock()
	fs.requests = append(fs.requests, rec)
	respond := fs.respond
	fs.mu.Unlock()

	status, payload := http.StatusOK, "{}"
	if respond != nil {
		status, payload = respond(rec)
	}
	if payload != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, payload)
}

// Responder returns the current responder
func (fs *FakeServer) Responder() Responder {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.respond
}

// SetResponder swaps the responder for subsequent requests
func (fs *FakeServer) SetResponder(respond Responder) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.respond = respond
}

// Requests returns a copy of everything received so far
func (fs *FakeServer) Requests() []RecordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]RecordedRequest, len(fs.requests))
	copy(out, fs.requests)
	return out
}

// Count returns how many requests matched method and path. An empty method
// or path matches anything.
func (fs *FakeServer) Count(method, path string) int {
	n := 0
	for _, r := range fs.Requests() {
		if (method == "" || r.Method == method) && (path == "" || r.Path == path) {
			n++
		}
	}
	return n
}

// CountTarget returns how many identity requests carried the given X-Amz-Target
func (fs *FakeServer) CountTarget(target string) int {
	n := 0
	for _, r := range fs.Requests() {
		if r.Target == target {
			n++
		}
	}
	return n
}

// MakeIDToken builds a signed JWT carrying the given claims, shaped like a
// Cognito ID token. The signature is irrelevant to the client.
func MakeIDToken(t *testing.T, email, name string, expires time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":       "user-123",
		"email":     email,
		"token_use": "id",
		"exp":       expires.Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign ID token: %v", err)
	}
	return signed
}
