package internal

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// Session wires the credential store, both API clients, the conversation
// and the document registry together. The CLI owns exactly one per run.
type Session struct {
	Config       *Config
	Store        *CredentialStore
	Identity     *IdentityClient
	Resources    *ResourceClient
	Conversation *ConversationController
	Documents    *DocumentRegistry
	Transcripts  *TranscriptCache

	db *sql.DB
}

// DatabasePath returns the location of the local key/value database
func DatabasePath(dataDir string) string {
	return filepath.Join(dataDir, "client.db")
}

// TranscriptDir returns where past conversations are kept
func TranscriptDir(dataDir string) string {
	return filepath.Join(dataDir, "transcripts")
}

// OpenSession opens the data directory, restores saved credentials and
// resumes the active conversation.
func OpenSession(dataDir string, cfg *Config) (*Session, error) {
	db, err := OpenDatabase(DatabasePath(dataDir))
	if err != nil {
		return nil, err
	}

	s := NewSession(cfg, NewStorage(db), NewTranscriptCache(TranscriptDir(dataDir)), cfg.HTTPClient())
	s.db = db
	s.Store.Load()

	active, err := s.Transcripts.LoadActive()
	if err != nil {
		LogWarn("Failed to resume conversation: %v", err)
	} else if active != nil {
		s.Conversation.Restore(*active)
		LogDebug("Resumed conversation %s", active.ID)
	}
	if current := s.Store.Current(); current.Authenticated() && s.foreignActivity(current.Email) {
		LogDebug("Dropping conversation of another account")
		s.forgetActivity()
	}
	return s, nil
}

// NewSession assembles a Session over an explicit slot and transcript cache
func NewSession(cfg *Config, slot KeyValueStore, transcripts *TranscriptCache, httpClient *http.Client) *Session {
	store := NewCredentialStore(slot)
	identity := NewIdentityClient(cfg.IdentityEndpoint, cfg.ClientID, httpClient)
	resources := NewResourceClient(cfg.APIURL, store, identity, httpClient)
	return &Session{
		Config:       cfg,
		Store:        store,
		Identity:     identity,
		Resources:    resources,
		Conversation: NewConversationController(resources),
		Documents:    NewDocumentRegistry(resources),
		Transcripts:  transcripts,
	}
}

// Close releases the database
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RequireAuth fails with ErrNotAuthenticated when nobody is signed in
func (s *Session) RequireAuth() error {
	if !s.Store.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

func requireFields(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return &ValidationError{Field: f[0], Value: f[1], Reason: "must not be empty"}
		}
	}
	return nil
}

// Login signs in and persists the credentials. A conversation that belongs
// to another account is not carried over, even when that account's session
// already ended.
func (s *Session) Login(ctx context.Context, email, password string) (Credentials, error) {
	email = strings.TrimSpace(email)
	if err := requireFields([2]string{"email", email}, [2]string{"password", password}); err != nil {
		return Credentials{}, err
	}

	tokens, err := s.Identity.Login(ctx, email, password)
	if err != nil {
		return Credentials{}, err
	}

	foreign := s.foreignActivity(email)
	creds := Credentials{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		Email:        email,
		DisplayName:  DisplayNameFor(tokens.IDToken, email),
	}
	if err := s.Store.Save(creds); err != nil {
		return Credentials{}, err
	}
	if foreign {
		s.forgetActivity()
	}
	LogInfo("Signed in as %s", email)
	return creds, nil
}

// SignUp registers a new account awaiting email confirmation
func (s *Session) SignUp(ctx context.Context, name, email, password string) error {
	email = strings.TrimSpace(email)
	if err := requireFields([2]string{"name", name}, [2]string{"email", email}, [2]string{"password", password}); err != nil {
		return err
	}
	return s.Identity.SignUp(ctx, strings.TrimSpace(name), email, password)
}

// ConfirmSignUp activates an account with its verification code
func (s *Session) ConfirmSignUp(ctx context.Context, email, code string) error {
	email, code = strings.TrimSpace(email), strings.TrimSpace(code)
	if err := requireFields([2]string{"email", email}, [2]string{"code", code}); err != nil {
		return err
	}
	return s.Identity.ConfirmSignUp(ctx, email, code)
}

// Logout erases credentials, the active conversation and the document cache
func (s *Session) Logout() error {
	err := s.Store.Clear()
	s.forgetActivity()
	LogInfo("Signed out")
	return err
}

// foreignActivity reports whether the signed-in account or the restored
// conversation belongs to someone other than email. A conversation saved
// without an owner counts as foreign.
func (s *Session) foreignActivity(email string) bool {
	if current := s.Store.Current().Email; current != "" && !strings.EqualFold(current, email) {
		return true
	}
	owner, err := s.Transcripts.ActiveOwner()
	if err != nil {
		LogWarn("Failed to read conversation owner: %v", err)
		return true
	}
	if owner != "" {
		return !strings.EqualFold(owner, email)
	}
	return len(s.Conversation.Snapshot().Messages) > 0
}

func (s *Session) forgetActivity() {
	s.Conversation.Reset()
	s.Documents.Clear()
	if err := s.Transcripts.SetActive("", ""); err != nil {
		LogWarn("Failed to clear active conversation: %v", err)
	}
}

// Ask sends a question in the active conversation and saves the transcript
func (s *Session) Ask(ctx context.Context, question string) (*Message, error) {
	if err := s.RequireAuth(); err != nil {
		return nil, err
	}

	// Captured before sending: an expiry during Send clears the store.
	owner := s.Store.Current().Email
	reply, err := s.Conversation.Send(ctx, question)
	if errors.Is(err, ErrEmptyQuestion) || errors.Is(err, ErrSendInFlight) {
		return nil, err
	}
	if saveErr := s.saveActive(owner); saveErr != nil {
		LogWarn("Failed to save conversation: %v", saveErr)
	}
	return reply, err
}

// NewConversation starts over; the next question opens a new server session
func (s *Session) NewConversation() error {
	s.Conversation.Reset()
	return s.Transcripts.SetActive("", "")
}

// SaveActive writes the current conversation and marks it active for the
// signed-in account
func (s *Session) SaveActive() error {
	return s.saveActive(s.Store.Current().Email)
}

func (s *Session) saveActive(owner string) error {
	conv := s.Conversation.Snapshot()
	if len(conv.Messages) == 0 {
		return s.Transcripts.SetActive("", "")
	}
	if err := s.Transcripts.SaveConversation(&conv); err != nil {
		return err
	}
	return s.Transcripts.SetActive(conv.ID, owner)
}
