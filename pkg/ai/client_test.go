package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateWithoutKeyReturnsNoCredentials(t *testing.T) {
	c := NewClient("", "gemini-2.5-flash")
	_, err := c.Generate(context.Background(), Request{Turns: UserText("hi")})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestGenerateSeparatesThinkingFromText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ThinkingConfig != nil {
			t.Fatalf("expected thinking enabled, got %+v", req.GenerationConfig)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{
						{"text": "pondering", "thought": true},
						{"text": "the answer"},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.5-flash").WithBaseURL(srv.URL)
	resp, err := c.Generate(context.Background(), Request{
		Turns:         UserText("question"),
		DeepReasoning: true,
		Temperature:   0.9,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "the answer" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.Thinking != "pondering" {
		t.Fatalf("unexpected thinking: %q", resp.Thinking)
	}
}

func TestGenerateDisablesThinkingByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ThinkingConfig == nil ||
			req.GenerationConfig.ThinkingConfig.ThinkingBudget != 0 {
			t.Fatalf("expected zero thinking budget, got %+v", req.GenerationConfig)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "ok"}},
				},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.5-flash").WithBaseURL(srv.URL)
	if _, err := c.Generate(context.Background(), Request{Turns: UserText("hi")}); err != nil {
		t.Fatalf("generate: %v", err)
	}
}

func TestGenerateAPIErrorPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "quota exceeded"},
		})
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.5-flash").WithBaseURL(srv.URL)
	_, err := c.Generate(context.Background(), Request{Turns: UserText("hi")})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "quota exceeded" {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.5-flash").WithBaseURL(srv.URL)
	_, err := c.Generate(context.Background(), Request{Turns: UserText("hi")})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestTurnsToContentsDropsEmptyParts(t *testing.T) {
	contents := turnsToContents([]Turn{
		{Role: "user", Parts: []Part{{Text: "  "}}},
		{Role: "user", Parts: []Part{
			{InlineData: &Blob{MimeType: "image/png", Data: "aGk="}},
			{Text: "describe"},
		}},
	})
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	if len(contents[0].Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(contents[0].Parts))
	}
	if contents[0].Parts[0].InlineData == nil {
		t.Fatalf("expected inline data part first")
	}
}
