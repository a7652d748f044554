package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Credentials is the token triple plus the signed-in user's identity
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	Email        string `json:"email"`
	DisplayName  string `json:"name"`
}

// Authenticated reports whether all three tokens are present. Any partial
// state counts as anonymous.
func (c Credentials) Authenticated() bool {
	return c.AccessToken != "" && c.IDToken != "" && c.RefreshToken != ""
}

// TokenSet is what the identity provider hands back on login or refresh
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string // empty after a refresh
}

// Document is a user-uploaded file as listed by the resource API
type Document struct {
	ID        string `json:"id" yaml:"id"`
	Filename  string `json:"filename" yaml:"filename"`
	SizeBytes int64  `json:"size,omitempty" yaml:"size,omitempty"`
	Status    string `json:"status,omitempty" yaml:"status,omitempty"`
}

// UnmarshalJSON accepts the API's loose document shape, where the id may
// arrive as document_id or key and the name may be missing.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		DocumentID string          `json:"document_id"`
		ID         string          `json:"id"`
		Key        string          `json:"key"`
		Filename   string          `json:"filename"`
		Size       json.RawMessage `json:"size"`
		Status     string          `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.ID = firstNonEmpty(raw.DocumentID, raw.ID, raw.Key)
	d.Filename = firstNonEmpty(raw.Filename, raw.Key, "Unknown")
	d.Status = raw.Status
	d.SizeBytes = 0
	if len(raw.Size) > 0 && string(raw.Size) != "null" {
		var size float64
		if err := json.Unmarshal(raw.Size, &size); err != nil {
			return fmt.Errorf("document %s: invalid size %s: %w", d.ID, raw.Size, err)
		}
		d.SizeBytes = int64(size)
	}
	return nil
}

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a document cited by an answer
type Source struct {
	Name string `json:"name" yaml:"name"`
}

// UnmarshalJSON accepts either a bare string or an object carrying
// filename / document_id.
func (s *Source) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		s.Name = name
		return nil
	}

	var obj struct {
		Name       string `json:"name"`
		Filename   string `json:"filename"`
		DocumentID string `json:"document_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unsupported source: %s", data)
	}
	s.Name = firstNonEmpty(obj.Name, obj.Filename, obj.DocumentID, "Doc")
	return nil
}

// Message is one immutable entry of a conversation
type Message struct {
	Role      Role      `json:"role" yaml:"role"`
	Text      string    `json:"text" yaml:"text"`
	Sources   []Source  `json:"sources,omitempty" yaml:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Failed    bool      `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// SourceNames returns the cited document names in order
func (m Message) SourceNames() []string {
	names := make([]string, 0, len(m.Sources))
	for _, s := range m.Sources {
		names = append(names, s.Name)
	}
	return names
}

// Conversation is the ordered history of one question/answer thread.
// SessionID is empty until the server assigns one.
type Conversation struct {
	ID        string    `json:"id" yaml:"id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Messages  []Message `json:"messages" yaml:"messages"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Title is the first user question, shortened, for listings
func (c *Conversation) Title() string {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			title := strings.Join(strings.Fields(m.Text), " ")
			if len(title) > 60 {
				title = title[:57] + "..."
			}
			return title
		}
	}
	return "Untitled"
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the reply of POST /query
type QueryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources,omitempty"`
	SessionID string   `json:"session_id"`
}

// UploadResult is the accepted/queued indication of POST /documents
type UploadResult struct {
	Message    string `json:"message,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
