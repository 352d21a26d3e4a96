package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"writebox/internal/chat"
	"writebox/internal/editor"
	"writebox/internal/library"
	"writebox/internal/transcription"
	"writebox/internal/vault"
	"writebox/pkg/ai"
	"writebox/pkg/storage"
	"writebox/pkg/store"
)

type stubGenerator struct {
	resp ai.Response
	err  error
}

func (s *stubGenerator) Generate(_ context.Context, _ ai.Request) (ai.Response, error) {
	return s.resp, s.err
}

func newTestServer(t *testing.T, gen ai.Generator) (*Server, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	ed := editor.New(editor.Config{Store: ms, Generator: gen, Debounce: time.Hour})
	hub := transcription.NewHub()
	rec := transcription.New(transcription.Config{
		Store:     ms,
		Generator: gen,
		Sources:   hub.Factory(),
	})
	srv := New(Config{
		Editor:   ed,
		Library:  library.New(ms, ed, nil),
		Chat:     chat.New(ms, gen, nil),
		Vault:    vault.New(vault.Config{Store: ms, Blobs: blobs, Generator: gen}),
		Recorder: rec,
		Hub:      hub,
	})
	return srv, ms
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv.Router(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	h := srv.Router()

	// Create.
	rec := doJSON(t, h, http.MethodPost, "/api/documents", map[string]any{
		"title": "Notas", "content": "primeira versão",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &created)
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	// Update keeps the id.
	rec = doJSON(t, h, http.MethodPost, "/api/documents", map[string]any{
		"id": created.ID, "title": "Notas", "content": "segunda versão",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d", rec.Code)
	}

	// Search finds it.
	rec = doJSON(t, h, http.MethodGet, "/api/documents?q=segunda", nil)
	var listing struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &listing)
	if listing.Count != 1 {
		t.Fatalf("expected 1 match, got %d", listing.Count)
	}

	// Open loads it into the editor.
	rec = doJSON(t, h, http.MethodPost, "/api/documents/1/open", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("open status %d: %s", rec.Code, rec.Body.String())
	}
	var state struct {
		Document struct {
			Title string `json:"title"`
		} `json:"document"`
		State string `json:"state"`
	}
	decodeBody(t, rec, &state)
	if state.Document.Title != "Notas" || state.State != "clean" {
		t.Fatalf("unexpected editor state: %+v", state)
	}

	// Delete, then the record is gone.
	rec = doJSON(t, h, http.MethodDelete, "/api/documents/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/documents/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestEditorBufferOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPut, "/api/editor", map[string]string{
		"title": "", "content": "Hello world",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("edit status %d", rec.Code)
	}
	var state struct {
		State string `json:"state"`
		Words int    `json:"words"`
	}
	decodeBody(t, rec, &state)
	if state.State != "dirty" || state.Words != 2 {
		t.Fatalf("unexpected state: %+v", state)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/editor/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status %d", rec.Code)
	}
	var doc struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	decodeBody(t, rec, &doc)
	if doc.ID == 0 || doc.Title != editor.PlaceholderTitle {
		t.Fatalf("unexpected saved document: %+v", doc)
	}
}

func TestOrganizeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{resp: ai.Response{Text: "Organizado.\nPronto."}})
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/documents/organize", map[string]string{
		"content": "texto bagunçado",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("organize status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Content string `json:"content"`
	}
	decodeBody(t, rec, &resp)
	if resp.Content != "Organizado.<br>Pronto." {
		t.Fatalf("unexpected content: %q", resp.Content)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/documents/organize", map[string]string{"content": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty content, got %d", rec.Code)
	}
}

func TestFileUploadDownloadDelete(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	h := srv.Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "nota.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("conteúdo do arquivo")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
		Count int `json:"count"`
	}
	decodeBody(t, rec, &uploaded)
	if uploaded.Count != 1 || uploaded.Items[0].ID == 0 {
		t.Fatalf("unexpected upload response: %+v", uploaded)
	}
	id := uploaded.Items[0].ID

	rec = doJSON(t, h, http.MethodGet, "/api/files", nil)
	var listing struct {
		Items []struct {
			SizeLabel string `json:"sizeLabel"`
		} `json:"items"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Items) != 1 || !strings.HasSuffix(listing.Items[0].SizeLabel, " B") {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/files/1/download", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status %d", rec.Code)
	}
	if got := rec.Body.String(); got != "conteúdo do arquivo" {
		t.Fatalf("unexpected download body: %q", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "nota.txt") {
		t.Fatalf("unexpected disposition: %q", cd)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/files/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	_ = id
}

func TestChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{resp: ai.Response{Text: "Olá!"}})
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]any{"message": "Oi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status %d: %s", rec.Code, rec.Body.String())
	}
	var reply struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	decodeBody(t, rec, &reply)
	if reply.Role != "assistant" || reply.Content != "Olá!" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/chat", map[string]any{"message": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/chat/history", nil)
	var hist struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &hist)
	if hist.Count != 2 {
		t.Fatalf("expected 2 messages, got %d", hist.Count)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/chat/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/chat/history", nil)
	decodeBody(t, rec, &hist)
	if hist.Count != 0 {
		t.Fatalf("expected empty history after clear, got %d", hist.Count)
	}
}

func TestTranscriptionFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{resp: ai.Response{Text: "Resumo."}})
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/transcription/start", map[string]string{"language": "pt-BR"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPost, "/api/transcription/start", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start must conflict, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/transcription/segment", map[string]any{
		"text": "olá mundo", "final": true,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("segment status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/transcription/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status %d", rec.Code)
	}
	var stopped struct {
		Transcript string `json:"transcript"`
	}
	decodeBody(t, rec, &stopped)
	if stopped.Transcript != "olá mundo " {
		t.Fatalf("unexpected transcript: %q", stopped.Transcript)
	}

	// Segments after stop are rejected.
	rec = doJSON(t, h, http.MethodPost, "/api/transcription/segment", map[string]any{
		"text": "tarde demais", "final": true,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict after stop, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/transcription/process", map[string]string{"action": "summarize"})
	if rec.Code != http.StatusOK {
		t.Fatalf("process status %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Output string `json:"output"`
	}
	decodeBody(t, rec, &result)
	if result.Output != "Resumo." {
		t.Fatalf("unexpected output: %q", result.Output)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/transcription/export", map[string]string{"title": "Gravação"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("export status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/transcription/actions", nil)
	var actions struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &actions)
	if actions.Count != 10 {
		t.Fatalf("expected 10 actions, got %d", actions.Count)
	}
}

func TestAnalyzeImageEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{resp: ai.Response{Text: "Uma paisagem."}})
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/analyze-image", map[string]string{
		"mimeType": "image/png",
		"data":     "aW1hZ2VieXRlcw==",
		"question": "O que há na imagem?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Analysis string `json:"analysis"`
	}
	decodeBody(t, rec, &resp)
	if resp.Analysis != "Uma paisagem." {
		t.Fatalf("unexpected analysis: %q", resp.Analysis)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/analyze-image", map[string]string{"mimeType": "image/png"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without data, got %d", rec.Code)
	}
}

func TestMethodChecks(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	h := srv.Router()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/chat"},
		{http.MethodGet, "/api/files/upload"},
		{http.MethodPut, "/api/documents"},
		{http.MethodPost, "/api/transcription"},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, tc.method, tc.path, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", tc.method, tc.path, rec.Code)
		}
	}
}
