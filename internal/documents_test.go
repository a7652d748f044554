package internal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/iksnae/rag-client/testutil"
)

// documentsAPI serves a small in-memory document list
func documentsAPI(docs *[]string) testutil.Responder {
	return func(req testutil.RecordedRequest) (int, string) {
		switch {
		case req.Method == http.MethodGet && req.Path == "/documents":
			items := make([]string, len(*docs))
			for i, id := range *docs {
				items[i] = `{"document_id":"` + id + `","filename":"` + id + `.pdf"}`
			}
			return http.StatusOK, `{"documents":[` + strings.Join(items, ",") + `]}`
		case req.Method == http.MethodPost && req.Path == "/documents":
			*docs = append(*docs, "new")
			return http.StatusOK, `{"message":"Document uploaded","document_id":"new"}`
		case req.Method == http.MethodDelete:
			id := strings.TrimPrefix(req.Path, "/documents/")
			for i, d := range *docs {
				if d == id {
					*docs = append((*docs)[:i], (*docs)[i+1:]...)
					return http.StatusOK, `{}`
				}
			}
			return http.StatusNotFound, `{"detail":"Document not found"}`
		}
		return http.StatusNotFound, ``
	}
}

func newRegistryFixture(t *testing.T, docs *[]string) (*DocumentRegistry, *resourceFixture) {
	t.Helper()
	f := newResourceFixture(t, documentsAPI(docs))
	return NewDocumentRegistry(f.client), f
}

func TestDocumentRegistry_ListKeepsServerOrder(t *testing.T) {
	docs := []string{"zeta", "alpha", "mid"}
	reg, _ := newRegistryFixture(t, &docs)

	if _, fetched := reg.Cached(); fetched {
		t.Error("Cached() should report nothing fetched yet")
	}

	got, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 || got[0].ID != "zeta" || got[1].ID != "alpha" || got[2].ID != "mid" {
		t.Errorf("List() = %+v", got)
	}

	cached, fetched := reg.Cached()
	if !fetched || len(cached) != 3 {
		t.Errorf("Cached() = %v, %v", cached, fetched)
	}
	if d, ok := reg.Find("alpha.pdf"); !ok || d.ID != "alpha" {
		t.Errorf("Find(filename) = %+v, %v", d, ok)
	}
	if _, ok := reg.Find("nope"); ok {
		t.Error("Find() should miss unknown refs")
	}
}

func TestDocumentRegistry_UploadValidation(t *testing.T) {
	tests := []struct {
		filename  string
		wantValid bool
	}{
		{"report.txt", false},
		{"report", false},
		{"report.pdf.exe", false},
		{"report.pdf", true},
		{"REPORT.PDF", true},
		{"Quarterly Report.Pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			var docs []string
			reg, f := newRegistryFixture(t, &docs)

			_, err := reg.Upload(context.Background(), tt.filename, []byte("%PDF"))
			posts := f.api.Count(http.MethodPost, "/documents")

			if tt.wantValid {
				if err != nil {
					t.Fatalf("Upload() error = %v", err)
				}
				if posts != 1 {
					t.Errorf("POST requests = %d, want 1", posts)
				}
				if gets := f.api.Count(http.MethodGet, "/documents"); gets != 1 {
					t.Errorf("upload should refresh the list once, got %d", gets)
				}
				if cached, _ := reg.Cached(); len(cached) != 1 {
					t.Errorf("cached list = %+v", cached)
				}
				return
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Upload() error = %v, want *ValidationError", err)
			}
			if got := f.api.Count("", ""); got != 0 {
				t.Errorf("rejected upload made %d requests", got)
			}
		})
	}
}

func TestDocumentRegistry_UploadFailureSurfacesAPIError(t *testing.T) {
	var docs []string
	reg, f := newRegistryFixture(t, &docs)
	f.api.SetResponder(func(req testutil.RecordedRequest) (int, string) {
		return http.StatusRequestEntityTooLarge, `{"error":"File too large"}`
	})

	_, err := reg.Upload(context.Background(), "big.pdf", []byte("%PDF"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "File too large" {
		t.Fatalf("Upload() error = %v", err)
	}
	if gets := f.api.Count(http.MethodGet, ""); gets != 0 {
		t.Errorf("failed upload should not refresh, got %d GETs", gets)
	}
}

func TestDocumentRegistry_UploadFile(t *testing.T) {
	var docs []string
	reg, f := newRegistryFixture(t, &docs)
	dir := testutil.CreateTempDir(t)

	pdf := testutil.WriteFile(t, dir, "notes.PDF", []byte("%PDF-1.7"))
	if _, err := reg.UploadFile(context.Background(), pdf); err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}

	txt := testutil.WriteFile(t, dir, "notes.txt", []byte("plain"))
	var vErr *ValidationError
	if _, err := reg.UploadFile(context.Background(), txt); !errors.As(err, &vErr) {
		t.Errorf("UploadFile(txt) error = %v, want *ValidationError", err)
	}

	var sErr *StorageError
	if _, err := reg.UploadFile(context.Background(), dir+"/missing.pdf"); !errors.As(err, &sErr) {
		t.Errorf("UploadFile(missing) error = %v, want *StorageError", err)
	}
	if posts := f.api.Count(http.MethodPost, ""); posts != 1 {
		t.Errorf("POST requests = %d, want 1", posts)
	}
}

func TestDocumentRegistry_ConfirmWithoutIntentIsNoop(t *testing.T) {
	docs := []string{"d1"}
	reg, f := newRegistryFixture(t, &docs)

	if err := reg.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("ConfirmDelete() error = %v", err)
	}
	if got := f.api.Count("", ""); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestDocumentRegistry_TwoPhaseDelete(t *testing.T) {
	docs := []string{"d1", "d2"}
	reg, f := newRegistryFixture(t, &docs)

	reg.RequestDelete("d1", "a.pdf")
	if intent, ok := reg.PendingDelete(); !ok || intent.ID != "d1" || intent.Name != "a.pdf" {
		t.Errorf("PendingDelete() = %+v, %v", intent, ok)
	}
	if got := f.api.Count("", ""); got != 0 {
		t.Errorf("RequestDelete() made %d requests", got)
	}

	if err := reg.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("ConfirmDelete() error = %v", err)
	}
	if got := f.api.Count(http.MethodDelete, "/documents/d1"); got != 1 {
		t.Errorf("DELETE /documents/d1 = %d, want 1", got)
	}
	if _, ok := reg.PendingDelete(); ok {
		t.Error("intent should be cleared")
	}
	cached, _ := reg.Cached()
	if len(cached) != 1 || cached[0].ID != "d2" {
		t.Errorf("list after delete = %+v", cached)
	}

	if err := reg.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("second ConfirmDelete() error = %v", err)
	}
	if got := f.api.Count(http.MethodDelete, ""); got != 1 {
		t.Errorf("second ConfirmDelete() sent another DELETE")
	}
}

func TestDocumentRegistry_CancelDelete(t *testing.T) {
	docs := []string{"d1"}
	reg, f := newRegistryFixture(t, &docs)

	reg.RequestDelete("d1", "a.pdf")
	reg.CancelDelete()
	if err := reg.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("ConfirmDelete() error = %v", err)
	}
	if got := f.api.Count("", ""); got != 0 {
		t.Errorf("requests after cancel = %d, want 0", got)
	}
}

func TestDocumentRegistry_FailedDeleteStillRefreshes(t *testing.T) {
	docs := []string{"d1"}
	reg, f := newRegistryFixture(t, &docs)

	reg.RequestDelete("ghost", "ghost.pdf")
	err := reg.ConfirmDelete(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("ConfirmDelete() error = %v, want 404 *APIError", err)
	}
	if gets := f.api.Count(http.MethodGet, "/documents"); gets != 1 {
		t.Errorf("list refreshes = %d, want 1", gets)
	}
	if _, ok := reg.PendingDelete(); ok {
		t.Error("intent should be cleared after a failed delete")
	}
}

func TestDocumentRegistry_Clear(t *testing.T) {
	docs := []string{"d1"}
	reg, _ := newRegistryFixture(t, &docs)
	if _, err := reg.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	reg.RequestDelete("d1", "d1.pdf")

	reg.Clear()
	if cached, fetched := reg.Cached(); fetched || len(cached) != 0 {
		t.Errorf("Cached() after Clear() = %v, %v", cached, fetched)
	}
	if _, ok := reg.PendingDelete(); ok {
		t.Error("Clear() should drop the pending delete")
	}
}
