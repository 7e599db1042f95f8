package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/storage"
)

// brokenBody fails every read, like a client that drops mid-upload.
type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func newHandlerRelay(t *testing.T) (*Relay, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(dir)
	if err != nil {
		t.Fatalf("storage.New returned error: %v", err)
	}
	cfg := config.Default()
	cfg.Upload.Dir = dir
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRelay(cfg, newTestHub(HubOptions{}), store, logger), dir
}

func TestUploadFailureIsServerErrorWithoutBroadcast(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		fileName    string
	}{
		{"image", "image/png", "photo.png"},
		{"file", "application/octet-stream", "notes.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay, dir := newHandlerRelay(t)
			client := registeredClients(relay.Hub(), 1)[0]

			body := io.MultiReader(strings.NewReader("partial"), brokenBody{})
			req := httptest.NewRequest(http.MethodPost, "/upload/", body)
			req.Header.Set("Content-Type", tt.contentType)
			req.Header.Set(FileNameHeader, tt.fileName)
			rec := httptest.NewRecorder()

			SetupRoutes(relay).ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("Expected status 500, got %d", rec.Code)
			}
			expectEmpty(t, client)

			matches, _ := filepath.Glob(filepath.Join(dir, "*", tt.fileName))
			if len(matches) != 0 {
				t.Errorf("Expected no stored asset after failed upload, found %v", matches)
			}
		})
	}
}

func TestImageHandlerServesSniffedType(t *testing.T) {
	relay, dir := newHandlerRelay(t)

	imageDir := filepath.Join(dir, string(storage.CategoryImage))
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	gif := []byte("GIF89a\x01\x00\x01\x00")
	if err := os.WriteFile(filepath.Join(imageDir, "banner"), gif, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/images/banner", nil)
	rec := httptest.NewRecorder()
	SetupRoutes(relay).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("Expected image/gif, got %q", ct)
	}
	if rec.Body.String() != string(gif) {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
}
