package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with all relay endpoints:
// the WebSocket endpoint, uploads, and image retrieval. Every path under
// /ws/ upgrades to the room. Unknown paths get 404 and known paths with
// the wrong method get 405.
func SetupRoutes(s *Relay) *mux.Router {
	r := mux.NewRouter()
	r.PathPrefix("/ws/").HandlerFunc(s.WebSocketHandler)
	r.HandleFunc("/upload/", s.UploadHandler).Methods(http.MethodPost)
	r.HandleFunc("/images/{name}", s.ImageHandler).Methods(http.MethodGet, http.MethodHead)
	return r
}
