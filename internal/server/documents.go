package server

import (
	"errors"
	"net/http"

	"writebox/internal/editor"
	"writebox/pkg/domain"
	"writebox/pkg/store"
)

type editorStateResponse struct {
	Document domain.Document `json:"document"`
	State    string          `json:"state"`
	Words    int             `json:"words"`
	Chars    int             `json:"chars"`
}

func stateName(state editor.State) string {
	switch state {
	case editor.StateClean:
		return "clean"
	case editor.StateDirty:
		return "dirty"
	case editor.StateSaving:
		return "saving"
	default:
		return "empty"
	}
}

func (s *Server) editorState() editorStateResponse {
	words, chars := s.editor.Stats()
	return editorStateResponse{
		Document: s.editor.Document(),
		State:    stateName(s.editor.State()),
		Words:    words,
		Chars:    chars,
	}
}

// GET returns the live buffer; PUT applies an edit and arms the autosave.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.editorState())
	case http.MethodPut:
		var req struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		s.editor.Edit(req.Title, req.Content)
		writeJSON(w, http.StatusAccepted, s.editorState())
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEditorSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	doc, err := s.editor.Save(r.Context(), true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.library.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": entries,
			"count": len(entries),
		})
	case http.MethodPost:
		var req struct {
			ID      int64  `json:"id"`
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		doc, err := s.editor.Persist(r.Context(), domain.Document{
			ID:      req.ID,
			Title:   req.Title,
			Content: req.Content,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "save failed")
			return
		}
		status := http.StatusOK
		if req.ID == 0 {
			status = http.StatusCreated
		}
		writeJSON(w, status, doc)
	default:
		methodNotAllowed(w)
	}
}

// /api/documents/{id} or /api/documents/{id}/open
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := idFromPath(r, "/api/documents/")
	if !ok {
		notFound(w, "not found")
		return
	}
	switch {
	case rest == "" && r.Method == http.MethodGet:
		doc, err := s.library.Get(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "document not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case rest == "" && r.Method == http.MethodDelete:
		if err := s.library.Delete(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case rest == "open" && r.Method == http.MethodPost:
		if err := s.library.Open(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				notFound(w, "document not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, s.editorState())
	case rest != "":
		notFound(w, "not found")
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleOrganize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	organized, err := s.editor.OrganizeText(r.Context(), req.Content)
	if errors.Is(err, editor.ErrNoContent) {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "organize failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": organized})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	title := s.editor.SuggestTitle(r.Context(), req.Content)
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}
