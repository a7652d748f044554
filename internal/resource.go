package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"
)

// TokenRefresher mints fresh access and ID tokens from a refresh token
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenSet, error)
}

// MultipartBody is a single-file form upload
type MultipartBody struct {
	Field    string
	Filename string
	Content  []byte
}

// attemptStep is where a request is in its one-refresh lifecycle.
// stepRetry has no transition back to stepRefresh.
type attemptStep int

const (
	stepInitial attemptStep = iota
	stepRefresh
	stepRetry
)

func (s attemptStep) String() string {
	switch s {
	case stepInitial:
		return "initial"
	case stepRefresh:
		return "refresh"
	case stepRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// ResourceClient calls the resource API with the current ID token and
// renews it once when the API answers 401.
type ResourceClient struct {
	BaseURL    string
	HTTPClient *http.Client

	store     *CredentialStore
	refresher TokenRefresher
	refreshes singleflight.Group
}

// NewResourceClient creates a ResourceClient. A nil httpClient uses http.DefaultClient.
func NewResourceClient(baseURL string, store *CredentialStore, refresher TokenRefresher, httpClient *http.Client) *ResourceClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ResourceClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
		store:      store,
		refresher:  refresher,
	}
}

// encodedBody is a request body kept in memory so it can be sent twice
type encodedBody struct {
	data        []byte
	contentType string
}

func encodeBody(body any) (encodedBody, error) {
	switch b := body.(type) {
	case nil:
		return encodedBody{}, nil
	case *MultipartBody:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		field := b.Field
		if field == "" {
			field = "file"
		}
		part, err := w.CreateFormFile(field, b.Filename)
		if err != nil {
			return encodedBody{}, fmt.Errorf("failed to build upload: %w", err)
		}
		if _, err := part.Write(b.Content); err != nil {
			return encodedBody{}, fmt.Errorf("failed to build upload: %w", err)
		}
		if err := w.Close(); err != nil {
			return encodedBody{}, fmt.Errorf("failed to build upload: %w", err)
		}
		return encodedBody{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return encodedBody{}, fmt.Errorf("failed to encode request: %w", err)
		}
		return encodedBody{data: data, contentType: "application/json"}, nil
	}
}

// Do performs an authenticated request and decodes a JSON reply into out
// (nil to discard). A 401 triggers at most one refresh and one retry.
func (c *ResourceClient) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	step := stepInitial
	var usedToken string
	for {
		switch step {
		case stepInitial, stepRetry:
			status, respBody, token, err := c.send(ctx, method, path, payload, step)
			if err != nil {
				return err
			}
			usedToken = token

			if status == http.StatusUnauthorized && step == stepInitial {
				step = stepRefresh
				continue
			}
			if status < 200 || status > 299 {
				return &APIError{Method: method, Path: path, Status: status, Detail: errorDetail(status, respBody)}
			}
			return decodeReply(respBody, out)

		case stepRefresh:
			if err := c.renew(ctx, usedToken); err != nil {
				return err
			}
			step = stepRetry
		}
	}
}

func (c *ResourceClient) send(ctx context.Context, method, path string, payload encodedBody, step attemptStep) (int, []byte, string, error) {
	var reader io.Reader
	if payload.data != nil {
		reader = bytes.NewReader(payload.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if payload.contentType != "" {
		req.Header.Set("Content-Type", payload.contentType)
	}
	token := c.store.Current().IDToken
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	LogDebug("%s %s [%s] token=%s", method, path, step, maskToken(token))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, token, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, token, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	LogDebug("%s %s [%s] -> %d", method, path, step, resp.StatusCode)
	return resp.StatusCode, data, token, nil
}

// renew runs the refresh for a request rejected while carrying staleToken.
// Concurrent callers share one refresh; a caller whose token was already
// replaced by another refresh skips straight to its retry. The refresh is
// not tied to any caller's context, so a caller that gives up returns its
// context error and the credentials stay as the refresh leaves them.
func (c *ResourceClient) renew(ctx context.Context, staleToken string) error {
	refreshCtx := context.WithoutCancel(ctx)
	result := c.refreshes.DoChan("refresh", func() (any, error) {
		current := c.store.Current()
		if current.Authenticated() && current.IDToken != staleToken {
			return nil, nil
		}
		if current.RefreshToken == "" {
			return nil, c.expire(nil)
		}

		LogInfo("Access expired, refreshing tokens")
		tokens, err := c.refresher.Refresh(refreshCtx, current.RefreshToken)
		if err != nil {
			return nil, c.expire(err)
		}
		if err := c.store.UpdateTokens(tokens.AccessToken, tokens.IDToken); err != nil {
			return nil, c.expire(err)
		}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		LogDebug("Stopped waiting for token refresh: %v", ctx.Err())
		return ctx.Err()
	case res := <-result:
		if res.Shared {
			LogDebug("Joined in-flight token refresh")
		}
		return res.Err
	}
}

// expire signs the user out after a failed refresh
func (c *ResourceClient) expire(cause error) error {
	LogWarn("Token refresh failed, signing out: %v", cause)
	if err := c.store.Clear(); err != nil {
		LogWarn("Failed to clear credentials: %v", err)
	}
	return &SessionExpiredError{Err: cause}
}

func errorDetail(status int, body []byte) string {
	var reply map[string]any
	if err := json.Unmarshal(body, &reply); err == nil {
		for _, key := range []string{"detail", "error"} {
			switch v := reply[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case nil:
			default:
				if data, err := json.Marshal(v); err == nil {
					return string(data)
				}
			}
		}
	}
	return fmt.Sprintf("Request failed (%d)", status)
}

func decodeReply(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListDocuments returns the caller's documents in server order
func (c *ResourceClient) ListDocuments(ctx context.Context) ([]Document, error) {
	var reply struct {
		Documents []Document `json:"documents"`
	}
	if err := c.Do(ctx, http.MethodGet, "/documents", nil, &reply); err != nil {
		return nil, err
	}
	return reply.Documents, nil
}

// UploadDocument sends one file as multipart field "file"
func (c *ResourceClient) UploadDocument(ctx context.Context, filename string, content []byte) (UploadResult, error) {
	var result UploadResult
	body := &MultipartBody{Field: "file", Filename: filename, Content: content}
	if err := c.Do(ctx, http.MethodPost, "/documents", body, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// DeleteDocument removes a document by id
func (c *ResourceClient) DeleteDocument(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}

// Query asks a question within an optional server-side session
func (c *ResourceClient) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	var resp QueryResponse
	if err := c.Do(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return QueryResponse{}, err
	}
	return resp, nil
}
