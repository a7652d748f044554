package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DocumentAPI is the slice of the resource API the registry needs
type DocumentAPI interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	UploadDocument(ctx context.Context, filename string, content []byte) (UploadResult, error)
	DeleteDocument(ctx context.Context, id string) error
}

// DeleteIntent is a pending, unconfirmed delete
type DeleteIntent struct {
	ID   string
	Name string
}

// DocumentRegistry keeps the last fetched document list and the pending
// delete, if any.
type DocumentRegistry struct {
	mu      sync.Mutex
	api     DocumentAPI
	docs    []Document
	fetched bool
	pending *DeleteIntent
}

// NewDocumentRegistry creates an empty registry
func NewDocumentRegistry(api DocumentAPI) *DocumentRegistry {
	return &DocumentRegistry{api: api}
}

// List fetches the document list and caches it in server order
func (r *DocumentRegistry) List(ctx context.Context) ([]Document, error) {
	docs, err := r.api.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append([]Document(nil), docs...)
	r.fetched = true
	LogDebug("Listed %d documents", len(docs))
	return append([]Document(nil), r.docs...), nil
}

// Cached returns the last fetched list and whether one was fetched
func (r *DocumentRegistry) Cached() ([]Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Document(nil), r.docs...), r.fetched
}

// Clear drops the cached list and any pending delete
func (r *DocumentRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = nil
	r.fetched = false
	r.pending = nil
}

// ValidateUploadName rejects anything that is not a PDF by extension
func ValidateUploadName(filename string) error {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return &ValidationError{Field: "file", Value: filename, Reason: "only PDF files are supported"}
	}
	return nil
}

// Upload sends a PDF and refreshes the list on success
func (r *DocumentRegistry) Upload(ctx context.Context, filename string, content []byte) (UploadResult, error) {
	if err := ValidateUploadName(filename); err != nil {
		return UploadResult{}, err
	}

	result, err := r.api.UploadDocument(ctx, filename, content)
	if err != nil {
		return UploadResult{}, err
	}
	LogInfo("Uploaded %s", filename)

	if _, err := r.List(ctx); err != nil {
		LogWarn("Failed to refresh documents after upload: %v", err)
	}
	return result, nil
}

// UploadFile reads path from disk and uploads it under its base name
func (r *DocumentRegistry) UploadFile(ctx context.Context, path string) (UploadResult, error) {
	name := filepath.Base(path)
	if err := ValidateUploadName(name); err != nil {
		return UploadResult{}, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return UploadResult{}, &StorageError{Path: path, Op: "read", Err: err}
	}
	return r.Upload(ctx, name, content)
}

// RequestDelete records the intent to delete a document; nothing is sent
func (r *DocumentRegistry) RequestDelete(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = &DeleteIntent{ID: id, Name: name}
}

// CancelDelete discards the pending delete
func (r *DocumentRegistry) CancelDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

// PendingDelete returns the pending delete, if any
func (r *DocumentRegistry) PendingDelete() (DeleteIntent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return DeleteIntent{}, false
	}
	return *r.pending, true
}

// ConfirmDelete carries out the pending delete. Without one it does nothing.
// The list is refreshed whether or not the delete succeeded.
func (r *DocumentRegistry) ConfirmDelete(ctx context.Context) error {
	r.mu.Lock()
	intent := r.pending
	r.pending = nil
	r.mu.Unlock()

	if intent == nil {
		return nil
	}

	deleteErr := r.api.DeleteDocument(ctx, intent.ID)
	if deleteErr != nil {
		deleteErr = fmt.Errorf("failed to delete %s: %w", intent.Name, deleteErr)
	} else {
		LogInfo("Deleted %s", intent.Name)
	}

	if _, err := r.List(ctx); err != nil {
		LogWarn("Failed to refresh documents after delete: %v", err)
	}
	return deleteErr
}

// Find returns the cached document whose id or filename matches ref
func (r *DocumentRegistry) Find(ref string) (Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID == ref {
			return d, true
		}
	}
	for _, d := range r.docs {
		if d.Filename == ref {
			return d, true
		}
	}
	return Document{}, false
}
