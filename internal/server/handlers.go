package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/protocol"
	"github.com/Tyrowin/relaychat/internal/storage"
)

// FileNameHeader carries the original name of an uploaded file.
const FileNameHeader = "File-Name"

// Relay holds the dependencies shared by the HTTP handlers.
type Relay struct {
	hub           *Hub
	store         *storage.Store
	upgrader      websocket.Upgrader
	maxUploadSize int64
	logger        *slog.Logger
}

// NewRelay wires the hub and asset store into a set of HTTP handlers.
func NewRelay(cfg *config.Config, hub *Hub, store *storage.Store, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Relay{
		hub:   hub,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		maxUploadSize: cfg.Upload.MaxSize,
		logger:        logger,
	}
}

// Hub returns the relay's hub.
func (s *Relay) Hub() *Hub {
	return s.hub
}

// WebSocketHandler upgrades the request and hands the connection to the hub.
// Requests that are not WebSocket upgrades are rejected with 400.
func (s *Relay) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Bad request. This endpoint only accepts WebSocket upgrades.", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	s.hub.Serve(NewClient(conn, s.hub, r.RemoteAddr))
}

// UploadHandler persists the request body under the File-Name header and
// announces it to every connected client once the write has succeeded.
func (s *Relay) UploadHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.Header.Get(FileNameHeader))
	if name == "" {
		http.Error(w, "Missing File-Name header", http.StatusBadRequest)
		return
	}

	category := storage.CategoryFile
	if storage.IsImage(r.Header.Get("Content-Type")) {
		category = storage.CategoryImage
	}

	body := r.Body
	if s.maxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	}

	asset, err := s.store.Save(r.Context(), category, name, body)
	if err != nil {
		s.writeUploadError(w, r, name, err)
		return
	}

	s.logger.Info("upload stored", "category", asset.Category, "name", asset.Name, "bytes", asset.Size, "addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, asset.Name); err != nil {
		s.logger.Debug("error writing upload response", "error", err)
	}

	if asset.Category == storage.CategoryImage {
		s.hub.Broadcast(protocol.ImageNotice(asset.Name))
	} else {
		s.hub.Broadcast(protocol.FileNotice(asset.Name))
	}
}

func (s *Relay) writeUploadError(w http.ResponseWriter, r *http.Request, name string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		http.Error(w, "Invalid File-Name header", http.StatusBadRequest)
	case errors.As(err, &tooLarge):
		http.Error(w, "Upload exceeds maximum size", http.StatusRequestEntityTooLarge)
	default:
		s.logger.Error("upload failed", "name", name, "addr", r.RemoteAddr, "error", err)
		http.Error(w, "Upload failed", http.StatusInternalServerError)
	}
}

// ImageHandler serves a previously uploaded image by name.
func (s *Relay) ImageHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	f, info, err := s.store.Open(storage.CategoryImage, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("image lookup failed", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	ct := storage.ImageContentType(name)
	if ct == "" {
		if ct, err = storage.SniffImageType(f); err != nil {
			s.logger.Error("image read failed", "name", name, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", ct)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
