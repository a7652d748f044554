package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const transcriptCacheVersion = "1.0"

// TranscriptCache keeps past conversations on disk: a YAML index plus one
// JSON file per conversation. The index also remembers which conversation
// is active so `ask` can continue it from a later invocation.
type TranscriptCache struct {
	cacheDir string
}

// CacheMetadata stores metadata about the cache
type CacheMetadata struct {
	CacheVersion string    `yaml:"cache_version"`
	Active       string    `yaml:"active,omitempty"`
	Owner        string    `yaml:"owner,omitempty"` // email of the account the active conversation belongs to
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

// TranscriptIndexEntry is one conversation in the index
type TranscriptIndexEntry struct {
	ID           string    `yaml:"id"`
	Title        string    `yaml:"title"`
	SessionID    string    `yaml:"session_id,omitempty"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
	MessageCount int       `yaml:"message_count"`
}

// TranscriptIndex is the YAML index of all cached conversations
type TranscriptIndex struct {
	Conversations []TranscriptIndexEntry `yaml:"conversations"`
	Metadata      CacheMetadata          `yaml:"metadata"`
}

// NewTranscriptCache creates a cache rooted at cacheDir
func NewTranscriptCache(cacheDir string) *TranscriptCache {
	return &TranscriptCache{cacheDir: cacheDir}
}

// EnsureCacheDir ensures the cache directory exists
func (tc *TranscriptCache) EnsureCacheDir() error {
	return os.MkdirAll(tc.cacheDir, 0700)
}

// GetCacheDir returns the cache directory path
func (tc *TranscriptCache) GetCacheDir() string {
	return tc.cacheDir
}

// GetIndexPath returns the path to the index YAML file
func (tc *TranscriptCache) GetIndexPath() string {
	return filepath.Join(tc.cacheDir, "conversations.yaml")
}

// GetConversationPath returns the path to a conversation's cache file
func (tc *TranscriptCache) GetConversationPath(id string) string {
	return filepath.Join(tc.cacheDir, fmt.Sprintf("conversation_%s.json", id))
}

// LoadIndex loads the index. A missing index is an empty one.
func (tc *TranscriptCache) LoadIndex() (*TranscriptIndex, error) {
	data, err := os.ReadFile(tc.GetIndexPath())
	if errors.Is(err, os.ErrNotExist) {
		now := time.Now()
		return &TranscriptIndex{
			Conversations: make([]TranscriptIndexEntry, 0),
			Metadata:      CacheMetadata{CacheVersion: transcriptCacheVersion, CreatedAt: now, UpdatedAt: now},
		}, nil
	}
	if err != nil {
		return nil, &StorageError{Path: tc.GetIndexPath(), Op: "read", Err: err}
	}

	var index TranscriptIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	return &index, nil
}

// SaveIndex writes the index, newest conversation first
func (tc *TranscriptCache) SaveIndex(index *TranscriptIndex) error {
	if err := tc.EnsureCacheDir(); err != nil {
		return &StorageError{Path: tc.cacheDir, Op: "write", Err: err}
	}

	sort.SliceStable(index.Conversations, func(i, j int) bool {
		return index.Conversations[i].UpdatedAt.After(index.Conversations[j].UpdatedAt)
	})
	index.Metadata.UpdatedAt = time.Now()
	if index.Metadata.CacheVersion == "" {
		index.Metadata.CacheVersion = transcriptCacheVersion
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := os.WriteFile(tc.GetIndexPath(), data, 0600); err != nil {
		return &StorageError{Path: tc.GetIndexPath(), Op: "write", Err: err}
	}
	return nil
}

// SaveConversation writes the conversation file and upserts its index entry.
// Empty conversations are not cached.
func (tc *TranscriptCache) SaveConversation(conv *Conversation) error {
	if len(conv.Messages) == 0 {
		return nil
	}
	if err := tc.EnsureCacheDir(); err != nil {
		return &StorageError{Path: tc.cacheDir, Op: "write", Err: err}
	}

	path := tc.GetConversationPath(conv.ID)
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}

	index, err := tc.LoadIndex()
	if err != nil {
		return err
	}

	entry := TranscriptIndexEntry{
		ID:           conv.ID,
		Title:        conv.Title(),
		SessionID:    conv.SessionID,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		MessageCount: len(conv.Messages),
	}
	found := false
	for i := range index.Conversations {
		if index.Conversations[i].ID == conv.ID {
			index.Conversations[i] = entry
			found = true
			break
		}
	}
	if !found {
		index.Conversations = append(index.Conversations, entry)
	}
	return tc.SaveIndex(index)
}

// LoadConversation loads a conversation by id or unique id prefix
func (tc *TranscriptCache) LoadConversation(ref string) (*Conversation, error) {
	id, err := tc.resolve(ref)
	if err != nil {
		return nil, err
	}

	path := tc.GetConversationPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// LoadAllConversations loads every indexed conversation, newest first
func (tc *TranscriptCache) LoadAllConversations() ([]*Conversation, error) {
	index, err := tc.LoadIndex()
	if err != nil {
		return nil, err
	}

	convs := make([]*Conversation, 0, len(index.Conversations))
	for _, entry := range index.Conversations {
		conv, err := tc.LoadConversation(entry.ID)
		if err != nil {
			LogWarn("Skipping conversation %s: %v", entry.ID, err)
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (tc *TranscriptCache) resolve(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", &ValidationError{Field: "conversation id", Value: ref, Reason: "must not be empty"}
	}
	index, err := tc.LoadIndex()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, entry := range index.Conversations {
		if entry.ID == ref {
			return entry.ID, nil
		}
		if strings.HasPrefix(entry.ID, ref) {
			matches = append(matches, entry.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("conversation %q not found", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("conversation %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// SetActive marks the conversation `ask` continues on behalf of owner.
// An empty id clears both.
func (tc *TranscriptCache) SetActive(id, owner string) error {
	index, err := tc.LoadIndex()
	if err != nil {
		return err
	}
	if id == "" {
		owner = ""
	}
	if index.Metadata.Active == id && index.Metadata.Owner == owner {
		return nil
	}
	index.Metadata.Active = id
	index.Metadata.Owner = owner
	return tc.SaveIndex(index)
}

// ActiveOwner returns the email recorded with the active conversation
func (tc *TranscriptCache) ActiveOwner() (string, error) {
	index, err := tc.LoadIndex()
	if err != nil {
		return "", err
	}
	return index.Metadata.Owner, nil
}

// LoadActive returns the active conversation, or nil when there is none
func (tc *TranscriptCache) LoadActive() (*Conversation, error) {
	index, err := tc.LoadIndex()
	if err != nil {
		return nil, err
	}
	if index.Metadata.Active == "" {
		return nil, nil
	}

	conv, err := tc.LoadConversation(index.Metadata.Active)
	if err != nil {
		LogWarn("Active conversation is unreadable, starting fresh: %v", err)
		return nil, nil
	}
	return conv, nil
}

// ClearCache removes every cached conversation and the index
func (tc *TranscriptCache) ClearCache() error {
	index, err := tc.LoadIndex()
	if err == nil {
		for _, entry := range index.Conversations {
			_ = os.Remove(tc.GetConversationPath(entry.ID))
		}
	}

	if err := os.Remove(tc.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return &StorageError{Path: tc.GetIndexPath(), Op: "delete", Err: err}
	}
	return nil
}
