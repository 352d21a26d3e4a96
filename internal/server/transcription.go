package server

import (
	"errors"
	"net/http"

	"writebox/internal/transcription"
	"writebox/pkg/store"
)

func (s *Server) handleTranscriptionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recording":  s.recorder.Recording(),
		"transcript": s.recorder.Transcript(),
		"interim":    s.recorder.Interim(),
	})
}

func (s *Server) handleTranscriptionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Language string `json:"language"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	s.recorder.SetLanguage(req.Language)
	if err := s.recorder.Start(); err != nil {
		if errors.Is(err, transcription.ErrAlreadyRecording) {
			writeError(w, http.StatusConflict, "already recording")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording"})
}

func (s *Server) handleTranscriptionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.recorder.Stop(); err != nil {
		if errors.Is(err, transcription.ErrNotRecording) {
			writeError(w, http.StatusConflict, "not recording")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "stopped",
		"transcript": s.recorder.Transcript(),
	})
}

func (s *Server) handleTranscriptionSegment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Text  string `json:"text"`
		Final bool   `json:"final"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.recorder.Recording() {
		writeError(w, http.StatusConflict, "not recording")
		return
	}
	s.hub.Push(req.Text, req.Final)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleTranscriptionClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.recorder.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleTranscriptionActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	actions := transcription.Actions()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": actions,
		"count": len(actions),
	})
}

func (s *Server) handleTranscriptionProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Action string `json:"action"`
		Text   string `json:"text"`
		transcription.ProcessOptions
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	var (
		result transcription.ActionResult
		err    error
	)
	if req.Text != "" {
		result, err = s.recorder.RunActionText(r.Context(), req.Action, req.Text, req.ProcessOptions)
	} else {
		result, err = s.recorder.RunAction(r.Context(), req.Action, req.ProcessOptions)
	}
	if errors.Is(err, transcription.ErrEmptyTranscript) {
		writeError(w, http.StatusBadRequest, "transcript is empty")
		return
	}
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTranscriptionEnhance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	enhanced, err := s.recorder.EnhanceText(r.Context(), req.Text)
	if errors.Is(err, transcription.ErrEmptyTranscript) {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": enhanced})
}

func (s *Server) handleTranscriptionChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		msgs := s.recorder.SideMessages()
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": msgs,
			"count":    len(msgs),
		})
	case http.MethodPost:
		var req struct {
			Question string `json:"question"`
			transcription.ProcessOptions
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		reply, err := s.recorder.Ask(r.Context(), req.Question, req.ProcessOptions)
		if errors.Is(err, transcription.ErrEmptyTranscript) {
			writeError(w, http.StatusBadRequest, "transcript is empty")
			return
		}
		if err != nil {
			writeGatewayError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	case http.MethodDelete:
		s.recorder.ClearSideChat()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleTranscriptionExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	doc, err := s.recorder.ExportToDocument(r.Context(), req.Title)
	if errors.Is(err, transcription.ErrEmptyTranscript) {
		writeError(w, http.StatusBadRequest, "transcript is empty")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snaps, err := s.recorder.ListSnapshots(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": snaps,
			"count": len(snaps),
		})
	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		snap, err := s.recorder.SaveSnapshot(r.Context(), req.Title)
		if errors.Is(err, transcription.ErrEmptyTranscript) {
			writeError(w, http.StatusBadRequest, "transcript is empty")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	default:
		methodNotAllowed(w)
	}
}

// /api/transcriptions/{id} or /api/transcriptions/{id}/load
func (s *Server) handleTranscriptByID(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := idFromPath(r, "/api/transcriptions/")
	if !ok {
		notFound(w, "not found")
		return
	}
	switch {
	case rest == "" && r.Method == http.MethodDelete:
		if err := s.recorder.DeleteSnapshot(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case rest == "load" && r.Method == http.MethodPost:
		snap, err := s.recorder.LoadSnapshot(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "transcript not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	case rest != "":
		notFound(w, "not found")
	default:
		methodNotAllowed(w)
	}
}
