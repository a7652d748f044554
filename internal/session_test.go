package internal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/rag-client/testutil"
)

type sessionFixture struct {
	dataDir  string
	cfg      *Config
	identity *testutil.FakeServer
	api      *testutil.FakeServer
	idToken  string
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		dataDir: testutil.CreateTempDir(t),
		idToken: testutil.MakeIDToken(t, "ada@example.com", "Ada Lovelace", time.Now().Add(time.Hour)),
	}

	f.identity = testutil.NewFakeServer(t, func(req testutil.RecordedRequest) (int, string) {
		if req.Target == "AWSCognitoIdentityProviderService.InitiateAuth" {
			if strings.Contains(string(req.Body), `"PASSWORD":"wrong"`) {
				return http.StatusBadRequest, `{"__type":"NotAuthorizedException","message":"Incorrect username or password."}`
			}
			return http.StatusOK, `{"AuthenticationResult":{"AccessToken":"acc","IdToken":"` + f.idToken + `","RefreshToken":"ref"}}`
		}
		return http.StatusOK, `{}`
	})

	f.api = testutil.NewFakeServer(t, func(req testutil.RecordedRequest) (int, string) {
		switch req.Path {
		case "/query":
			return http.StatusOK, `{"answer":"It covers onboarding.","sources":["handbook.pdf"],"session_id":"sess-1"}`
		case "/documents":
			return http.StatusOK, `{"documents":[{"document_id":"d1","filename":"handbook.pdf"}]}`
		}
		return http.StatusNotFound, `{"detail":"Not found"}`
	})

	f.cfg = &Config{
		Region:           "us-east-1",
		ClientID:         "client-abc",
		APIURL:           f.api.URL,
		IdentityEndpoint: f.identity.URL + "/",
		Render:           RenderPlain,
		LogLevel:         "warn",
	}
	return f
}

func (f *sessionFixture) open(t *testing.T) *Session {
	t.Helper()
	s, err := OpenSession(f.dataDir, f.cfg)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_LoginPersists(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)

	creds, err := s.Login(context.Background(), " ada@example.com ", "s3cret!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if creds.DisplayName != "Ada Lovelace" || creds.Email != "ada@example.com" {
		t.Errorf("Login() = %+v", creds)
	}
	if err := s.RequireAuth(); err != nil {
		t.Errorf("RequireAuth() after login error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	again := f.open(t)
	restored := again.Store.Current()
	if !restored.Authenticated() || restored.RefreshToken != "ref" || restored.DisplayName != "Ada Lovelace" {
		t.Errorf("restored credentials = %+v", restored)
	}
}

func TestSession_LoginFailures(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)

	var vErr *ValidationError
	if _, err := s.Login(context.Background(), "ada@example.com", ""); !errors.As(err, &vErr) {
		t.Errorf("Login() with no password error = %v, want *ValidationError", err)
	}
	if got := f.identity.Count("", ""); got != 0 {
		t.Errorf("validation failure reached the provider %d times", got)
	}

	var authErr *AuthError
	if _, err := s.Login(context.Background(), "ada@example.com", "wrong"); !errors.As(err, &authErr) {
		t.Errorf("Login() with a wrong password error = %v, want *AuthError", err)
	}
	if s.Store.Authenticated() {
		t.Error("failed login should leave the store anonymous")
	}
}

func TestSession_SignUpAndConfirm(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)

	var vErr *ValidationError
	if err := s.SignUp(context.Background(), "", "ada@example.com", "Passw0rd!"); !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Errorf("SignUp() without name error = %v", err)
	}
	if err := s.SignUp(context.Background(), "Ada", "ada@example.com", "Passw0rd!"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if err := s.ConfirmSignUp(context.Background(), "ada@example.com", " 123456 "); err != nil {
		t.Fatalf("ConfirmSignUp() error = %v", err)
	}
	if err := s.ConfirmSignUp(context.Background(), "ada@example.com", ""); !errors.As(err, &vErr) {
		t.Errorf("ConfirmSignUp() without code error = %v", err)
	}

	if f.identity.CountTarget("AWSCognitoIdentityProviderService.SignUp") != 1 ||
		f.identity.CountTarget("AWSCognitoIdentityProviderService.ConfirmSignUp") != 1 {
		t.Errorf("identity requests = %+v", f.identity.Requests())
	}
	if s.Store.Authenticated() {
		t.Error("sign up must not sign the user in")
	}
}

func TestSession_AskRequiresLogin(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)

	if _, err := s.Ask(context.Background(), "hello?"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Ask() error = %v, want ErrNotAuthenticated", err)
	}
	if got := f.api.Count("", ""); got != 0 {
		t.Errorf("API requests = %d, want 0", got)
	}
}

func TestSession_AskResumesAcrossRuns(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)
	if _, err := s.Login(context.Background(), "ada@example.com", "s3cret!"); err != nil {
		t.Fatal(err)
	}

	reply, err := s.Ask(context.Background(), "What is in the handbook?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.Text != "It covers onboarding." || reply.Sources[0].Name != "handbook.pdf" {
		t.Errorf("Ask() = %+v", reply)
	}
	if msg, err := s.Ask(context.Background(), "   "); msg != nil || !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("Ask(blank) = %v, %v; want nil, ErrEmptyQuestion", msg, err)
	}
	_ = s.Close()

	again := f.open(t)
	conv := again.Conversation.Snapshot()
	if conv.SessionID != "sess-1" || len(conv.Messages) != 2 {
		t.Fatalf("resumed conversation = %+v", conv)
	}

	if _, err := again.Ask(context.Background(), "And expenses?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	reqs := f.api.Requests()
	if body := string(reqs[len(reqs)-1].Body); !strings.Contains(body, `"session_id":"sess-1"`) {
		t.Errorf("follow-up body = %s", body)
	}

	if err := again.NewConversation(); err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	if active, _ := again.Transcripts.LoadActive(); active != nil {
		t.Error("NewConversation() should clear the active pointer")
	}
	index, _ := again.Transcripts.LoadIndex()
	if len(index.Conversations) != 1 {
		t.Errorf("history should keep the finished conversation, got %d", len(index.Conversations))
	}
}

func TestSession_ExpiryDuringAsk(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)
	if _, err := s.Login(context.Background(), "ada@example.com", "s3cret!"); err != nil {
		t.Fatal(err)
	}

	f.api.SetResponder(func(req testutil.RecordedRequest) (int, string) {
		return http.StatusUnauthorized, `{"message":"Unauthorized"}`
	})
	f.identity.SetResponder(func(req testutil.RecordedRequest) (int, string) {
		return http.StatusBadRequest, `{"__type":"NotAuthorizedException","message":"Refresh Token has expired"}`
	})

	reply, err := s.Ask(context.Background(), "still there?")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Ask() error = %v, want session expired", err)
	}
	if reply == nil || !reply.Failed {
		t.Errorf("reply = %+v, want the failure message", reply)
	}
	if s.Store.Authenticated() {
		t.Error("credentials should be cleared")
	}
	if err := s.RequireAuth(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("RequireAuth() = %v", err)
	}
}

// expireAfterAsk signs in as ada, asks once, then lets the next question hit
// a rejected refresh so the session ends with ada's conversation on disk.
func (f *sessionFixture) expireAfterAsk(t *testing.T) {
	t.Helper()
	s := f.open(t)
	if _, err := s.Login(context.Background(), "ada@example.com", "s3cret!"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ask(context.Background(), "What is in the handbook?"); err != nil {
		t.Fatal(err)
	}

	api, identity := f.api.Responder(), f.identity.Responder()
	f.api.SetResponder(func(req testutil.RecordedRequest) (int, string) {
		return http.StatusUnauthorized, `{"message":"Unauthorized"}`
	})
	f.identity.SetResponder(func(req testutil.RecordedRequest) (int, string) {
		return http.StatusBadRequest, `{"__type":"NotAuthorizedException","message":"Refresh Token has expired"}`
	})
	if _, err := s.Ask(context.Background(), "still there?"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Ask() error = %v, want session expired", err)
	}
	_ = s.Close()
	f.api.SetResponder(api)
	f.identity.SetResponder(identity)
}

func TestSession_ExpiredConversationNotInheritedByOtherUser(t *testing.T) {
	f := newSessionFixture(t)
	f.expireAfterAsk(t)

	again := f.open(t)
	if again.Store.Authenticated() {
		t.Fatal("expired session should not be restored")
	}
	if _, err := again.Login(context.Background(), "bob@example.com", "hunter2"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if conv := again.Conversation.Snapshot(); len(conv.Messages) != 0 || conv.SessionID != "" {
		t.Fatalf("bob's conversation = session %q with %d messages, want a fresh one", conv.SessionID, len(conv.Messages))
	}

	if _, err := again.Ask(context.Background(), "Hello?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	reqs := f.api.Requests()
	if body := string(reqs[len(reqs)-1].Body); strings.Contains(body, "session_id") {
		t.Errorf("bob's first question should open a new server session, body = %s", body)
	}
	if owner, _ := again.Transcripts.ActiveOwner(); owner != "bob@example.com" {
		t.Errorf("ActiveOwner() = %q, want bob@example.com", owner)
	}
	index, _ := again.Transcripts.LoadIndex()
	if len(index.Conversations) != 2 {
		t.Errorf("history should keep ada's conversation too, got %d", len(index.Conversations))
	}
}

func TestSession_ExpiredConversationResumedBySameUser(t *testing.T) {
	f := newSessionFixture(t)
	f.expireAfterAsk(t)

	again := f.open(t)
	if _, err := again.Login(context.Background(), "Ada@Example.com", "s3cret!"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	conv := again.Conversation.Snapshot()
	if conv.SessionID != "sess-1" || len(conv.Messages) != 4 {
		t.Errorf("resumed conversation = session %q with %d messages, want sess-1 with 4", conv.SessionID, len(conv.Messages))
	}
}

func TestSession_OpenDropsConversationOfAnotherAccount(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)
	if _, err := s.Login(context.Background(), "ada@example.com", "s3cret!"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ask(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	// An index written before owners were recorded.
	conv := s.Conversation.Snapshot()
	if err := s.Transcripts.SetActive(conv.ID, ""); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	again := f.open(t)
	if got := again.Conversation.Snapshot(); len(got.Messages) != 0 {
		t.Errorf("conversation without an owner was resumed: %+v", got)
	}
	if active, _ := again.Transcripts.LoadActive(); active != nil {
		t.Error("active pointer should be cleared")
	}
}

func TestSession_Logout(t *testing.T) {
	f := newSessionFixture(t)
	s := f.open(t)
	if _, err := s.Login(context.Background(), "ada@example.com", "s3cret!"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ask(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Documents.List(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if s.Store.Authenticated() {
		t.Error("credentials should be cleared")
	}
	if conv := s.Conversation.Snapshot(); len(conv.Messages) != 0 || conv.SessionID != "" {
		t.Errorf("conversation after logout = %+v", conv)
	}
	if _, fetched := s.Documents.Cached(); fetched {
		t.Error("document cache should be cleared")
	}
	_ = s.Close()

	again := f.open(t)
	if again.Store.Authenticated() {
		t.Error("logout should survive a restart")
	}
	if len(again.Conversation.Snapshot().Messages) != 0 {
		t.Error("no conversation should be resumed after logout")
	}
}
