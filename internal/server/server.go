package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"writebox/internal/chat"
	"writebox/internal/editor"
	"writebox/internal/library"
	"writebox/internal/transcription"
	"writebox/internal/util"
	"writebox/internal/vault"
)

// maxJSONBody caps JSON request bodies. Attachments ride inside JSON as
// base64, so this is deliberately larger than a typical API body.
const maxJSONBody = 16 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	Editor   *editor.Editor
	Library  *library.Library
	Chat     *chat.Chat
	Vault    *vault.Vault
	Recorder *transcription.Recorder
	// Hub receives recognition segments pushed by clients.
	Hub *transcription.Hub
}

// Server exposes the workspace HTTP API.
type Server struct {
	editor   *editor.Editor
	library  *library.Library
	chat     *chat.Chat
	vault    *vault.Vault
	recorder *transcription.Recorder
	hub      *transcription.Hub
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		editor:   cfg.Editor,
		library:  cfg.Library,
		chat:     cfg.Chat,
		vault:    cfg.Vault,
		recorder: cfg.Recorder,
		hub:      cfg.Hub,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/editor", s.handleEditor)
	s.mux.HandleFunc("/api/editor/save", s.handleEditorSave)

	s.mux.HandleFunc("/api/documents", s.handleDocuments)
	s.mux.HandleFunc("/api/documents/", s.handleDocumentByID)
	s.mux.HandleFunc("/api/documents/organize", s.handleOrganize)
	s.mux.HandleFunc("/api/documents/title", s.handleTitle)

	s.mux.HandleFunc("/api/files", s.handleFiles)
	s.mux.HandleFunc("/api/files/", s.handleFileByID)
	s.mux.HandleFunc("/api/files/upload", s.handleUpload)
	s.mux.HandleFunc("/api/analyze-image", s.handleAnalyzeImage)

	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/chat/history", s.handleChatHistory)
	s.mux.HandleFunc("/api/chat/archives", s.handleChatArchives)
	s.mux.HandleFunc("/api/chat/clear", s.handleChatClear)
	s.mux.HandleFunc("/api/chat/new", s.handleChatNew)

	s.mux.HandleFunc("/api/transcription", s.handleTranscriptionState)
	s.mux.HandleFunc("/api/transcription/start", s.handleTranscriptionStart)
	s.mux.HandleFunc("/api/transcription/stop", s.handleTranscriptionStop)
	s.mux.HandleFunc("/api/transcription/segment", s.handleTranscriptionSegment)
	s.mux.HandleFunc("/api/transcription/clear", s.handleTranscriptionClear)
	s.mux.HandleFunc("/api/transcription/actions", s.handleTranscriptionActions)
	s.mux.HandleFunc("/api/transcription/process", s.handleTranscriptionProcess)
	s.mux.HandleFunc("/api/transcription/enhance", s.handleTranscriptionEnhance)
	s.mux.HandleFunc("/api/transcription/chat", s.handleTranscriptionChat)
	s.mux.HandleFunc("/api/transcription/export", s.handleTranscriptionExport)
	s.mux.HandleFunc("/api/transcriptions", s.handleTranscripts)
	s.mux.HandleFunc("/api/transcriptions/", s.handleTranscriptByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// idFromPath parses the numeric id after prefix, e.g. /api/files/{id}.
func idFromPath(r *http.Request, prefix string) (int64, string, bool) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(path, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}
	return id, rest, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "internal_error"
	}
}
