package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// CredentialsKey is the slot holding the serialized credential record
const CredentialsKey = "rag_session"

// CredentialStore owns the current credentials and mirrors them into a
// durable slot so a later process can pick up the same session.
type CredentialStore struct {
	mu    sync.RWMutex
	slot  KeyValueStore
	creds Credentials
}

// NewCredentialStore creates an anonymous store over slot. Call Load to restore.
func NewCredentialStore(slot KeyValueStore) *CredentialStore {
	return &CredentialStore{slot: slot}
}

// Load restores credentials from the slot. It never fails: a missing,
// unreadable, corrupt or partial record yields the anonymous state, and a
// corrupt or partial record is erased.
func (s *CredentialStore) Load() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = Credentials{}

	raw, ok, err := s.slot.Get(CredentialsKey)
	if err != nil {
		LogWarn("Failed to read saved session: %v", err)
		return s.creds
	}
	if !ok {
		LogDebug("No saved session")
		return s.creds
	}

	var saved Credentials
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		LogWarn("Saved session is corrupt, discarding it: %v", err)
		s.erase()
		return s.creds
	}
	if !saved.Authenticated() {
		LogWarn("Saved session is incomplete, discarding it")
		s.erase()
		return s.creds
	}

	if saved.DisplayName == "" {
		saved.DisplayName = DisplayNameFor(saved.IDToken, saved.Email)
	}
	s.creds = saved
	LogDebug("Restored session for %s", saved.Email)
	return s.creds
}

// Save replaces the current credentials and overwrites the slot in one write
func (s *CredentialStore) Save(creds Credentials) error {
	if !creds.Authenticated() {
		return errors.New("refusing to save incomplete credentials")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(creds); err != nil {
		return err
	}
	s.creds = creds
	return nil
}

// UpdateTokens applies a refresh: access and ID tokens change, the refresh
// token and identity are kept.
func (s *CredentialStore) UpdateTokens(accessToken, idToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.creds.Authenticated() {
		return ErrNotAuthenticated
	}

	next := s.creds
	next.AccessToken = accessToken
	next.IDToken = idToken
	if !next.Authenticated() {
		return errors.New("refresh returned incomplete tokens")
	}

	// The in-memory copy is authoritative; a failed write only costs the next restart.
	s.creds = next
	if err := s.persist(next); err != nil {
		LogWarn("Failed to persist refreshed tokens: %v", err)
	}
	return nil
}

// Clear erases the slot and resets to anonymous
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = Credentials{}
	return s.erase()
}

// Current returns a copy of the current credentials
func (s *CredentialStore) Current() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Authenticated reports whether a full token triple is held
func (s *CredentialStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Authenticated()
}

func (s *CredentialStore) persist(creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return s.slot.Put(CredentialsKey, string(data))
}

func (s *CredentialStore) erase() error {
	if err := s.slot.Delete(CredentialsKey); err != nil {
		LogWarn("Failed to erase saved session: %v", err)
		return err
	}
	return nil
}
