package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newStaticDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0644); err != nil {
		t.Fatalf("failed to write index.html: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi')"), 0644); err != nil {
		t.Fatalf("failed to write app.js: %v", err)
	}
	return dir
}

func TestSPAServesExistingFile(t *testing.T) {
	spa := NewSPAHandler(newStaticDir(t))

	req := httptest.NewRequest("GET", "/app.js", nil)
	rec := httptest.NewRecorder()
	spa.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "console.log('hi')" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestSPAFallsBackToIndex(t *testing.T) {
	spa := NewSPAHandler(newStaticDir(t))

	for _, path := range []string{"/", "/story/abc123"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		spa.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
		if rec.Body.String() != "<html>app</html>" {
			t.Errorf("%s: expected index.html fallback, got %q", path, rec.Body.String())
		}
	}
}

func TestSPAMissingFaviconIsNoContent(t *testing.T) {
	dir := t.TempDir() // no index.html either
	spa := NewSPAHandler(dir)

	req := httptest.NewRequest("GET", "/favicon.ico", nil)
	rec := httptest.NewRecorder()
	spa.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestSPANeverShadowsAPIRoutes(t *testing.T) {
	spa := NewSPAHandler(newStaticDir(t))

	req := httptest.NewRequest("GET", "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	spa.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSPAWithoutStaticDir(t *testing.T) {
	spa := NewSPAHandler("")

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	spa.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
