package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"writebox/internal/vault"
	"writebox/pkg/ai"
	"writebox/pkg/store"
)

// maxUploadForm bounds the in-memory portion of a multipart upload.
const maxUploadForm = 32 << 20

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	files, err := s.vault.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	type fileEntry struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		Size       int64  `json:"size"`
		SizeLabel  string `json:"sizeLabel"`
		MimeType   string `json:"mimeType"`
		UploadDate string `json:"uploadDate"`
		Preview    string `json:"preview,omitempty"`
	}
	items := make([]fileEntry, 0, len(files))
	for _, f := range files {
		items = append(items, fileEntry{
			ID:         f.ID,
			Name:       f.Name,
			Size:       f.Size,
			SizeLabel:  vault.FormatSize(f.Size),
			MimeType:   f.MimeType,
			UploadDate: f.UploadDate.Format("2006-01-02T15:04:05Z07:00"),
			Preview:    f.Preview,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// handleUpload accepts one or more files under the "files" field and
// stores them in order. Per-file failures are reported alongside the
// successes.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := r.ParseMultipartForm(maxUploadForm); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	uploads := make([]vault.Upload, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		closers = append(closers, f)
		uploads = append(uploads, vault.Upload{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Reader:   f,
		})
	}

	results := s.vault.UploadBatch(r.Context(), uploads)
	type uploadEntry struct {
		Name  string `json:"name"`
		ID    int64  `json:"id,omitempty"`
		Size  string `json:"size,omitempty"`
		Error string `json:"error,omitempty"`
	}
	items := make([]uploadEntry, 0, len(results))
	failures := 0
	for i, res := range results {
		entry := uploadEntry{Name: uploads[i].Name}
		if res.Err != nil {
			failures++
			entry.Error = uploadErrorMessage(res.Err)
		} else {
			entry.ID = res.File.ID
			entry.Size = vault.FormatSize(res.File.Size)
		}
		items = append(items, entry)
	}
	status := http.StatusCreated
	if failures == len(results) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{
		"items": items,
		"count": len(items) - failures,
	})
}

func uploadErrorMessage(err error) string {
	if errors.Is(err, vault.ErrTooLarge) {
		return "file too large"
	}
	return "upload failed"
}

// /api/files/{id}, /api/files/{id}/download or /api/files/{id}/analyze
func (s *Server) handleFileByID(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := idFromPath(r, "/api/files/")
	if !ok {
		notFound(w, "not found")
		return
	}
	switch {
	case rest == "" && r.Method == http.MethodDelete:
		if err := s.vault.Delete(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case rest == "download" && r.Method == http.MethodGet:
		s.handleDownload(w, r, id)
	case rest == "analyze" && r.Method == http.MethodPost:
		s.handleAnalyzeFile(w, r, id)
	case rest != "":
		notFound(w, "not found")
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id int64) {
	file, rc, err := s.vault.Open(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "file not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request, id int64) {
	var req struct {
		Question string `json:"question"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	analysis, err := s.vault.Analyze(r.Context(), id, req.Question)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "file not found")
		return
	}
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

// handleAnalyzeImage analyzes inline base64 content without storing it.
func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
		Question string `json:"question"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MimeType == "" || req.Data == "" {
		writeError(w, http.StatusBadRequest, "mimeType and data are required")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be base64")
		return
	}
	analysis, err := s.vault.AnalyzeBytes(r.Context(), req.Name, req.MimeType, data, req.Question)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

// writeGatewayError maps generation failures onto HTTP statuses.
func writeGatewayError(w http.ResponseWriter, err error) {
	var apiErr *ai.APIError
	switch {
	case errors.Is(err, ai.ErrNoCredentials):
		writeError(w, http.StatusInternalServerError, "gateway credentials not configured")
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, "Erro: "+apiErr.Message)
	default:
		writeError(w, http.StatusBadGateway, "gateway request failed")
	}
}
