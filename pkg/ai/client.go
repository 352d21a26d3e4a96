package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const (
	defaultTopP = 0.95
	defaultTopK = 40
)

// Client calls the hosted generative-language API. A Client built without
// an API key is still usable: every call returns ErrNoCredentials, which
// callers surface as an inline "feature unavailable" message.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client for one feature's API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		model:      normalizeModel(model),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Generate performs one completion call.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrNoCredentials
	}
	body := generateRequest{
		Contents: turnsToContents(req.Turns),
		GenerationConfig: &generationConfig{
			Temperature: req.Temperature,
			TopP:        defaultTopP,
			TopK:        defaultTopK,
		},
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	if !req.DeepReasoning {
		body.GenerationConfig.ThinkingConfig = &thinkingConfig{ThinkingBudget: 0}
	}
	if req.WebSearch {
		body.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}

	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	if err := c.doJSON(ctx, url, body, &resp); err != nil {
		return Response{}, err
	}
	if len(resp.Candidates) == 0 {
		return Response{}, ErrEmptyResponse
	}
	var out Response
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Thought {
			if out.Thinking != "" {
				out.Thinking += "\n"
			}
			out.Thinking += p.Text
			continue
		}
		out.Text += p.Text
	}
	if strings.TrimSpace(out.Text) == "" {
		return Response{}, ErrEmptyResponse
	}
	return out, nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	return strings.TrimPrefix(model, "models/")
}

func turnsToContents(turns []Turn) []content {
	contents := make([]content, 0, len(turns))
	for _, turn := range turns {
		parts := make([]part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			if p.InlineData != nil && strings.TrimSpace(p.InlineData.Data) != "" {
				parts = append(parts, part{InlineData: &inlineData{
					MimeType: p.InlineData.MimeType,
					Data:     p.InlineData.Data,
				}})
			}
			if strings.TrimSpace(p.Text) != "" {
				parts = append(parts, part{Text: p.Text})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, content{Role: turn.Role, Parts: parts})
	}
	return contents
}

func (c *Client) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return &APIError{Message: errResp.Error.Message}
		}
		return &APIError{Message: resp.Status}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type part struct {
	Text       string      `json:"text,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generationConfig struct {
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"topP"`
	TopK           int             `json:"topK"`
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
