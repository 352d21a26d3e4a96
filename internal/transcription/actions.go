package transcription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"writebox/pkg/ai"
)

// Action is one transformation the gateway can apply to the transcript.
type Action struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	prompt string
}

// ActionResult is what gets pushed to the results log after a run. Thinking
// carries the reasoning trace when deep reasoning was requested.
type ActionResult struct {
	Action    string    `json:"action"`
	Label     string    `json:"label"`
	Output    string    `json:"output"`
	Thinking  string    `json:"thinking,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProcessOptions are per-call gateway toggles shared by the actions and the
// transcript side chat.
type ProcessOptions struct {
	DeepReasoning bool `json:"useThinking"`
	WebSearch     bool `json:"useSearch"`
}

var actions = []Action{
	{
		ID:     "improve",
		Label:  "Melhorar escrita",
		prompt: "Melhore a redação desta transcrição, corrigindo erros e deixando o texto mais claro, sem alterar o significado:",
	},
	{
		ID:     "summarize",
		Label:  "Resumir",
		prompt: "Faça um resumo conciso desta transcrição, destacando as informações mais importantes:",
	},
	{
		ID:     "keywords",
		Label:  "Palavras-chave",
		prompt: "Extraia as palavras-chave mais importantes desta transcrição, em formato de lista:",
	},
	{
		ID:     "questions",
		Label:  "Gerar perguntas",
		prompt: "Gere perguntas relevantes que podem ser feitas com base no conteúdo desta transcrição:",
	},
	{
		ID:     "translate-en",
		Label:  "Traduzir para inglês",
		prompt: "Traduza esta transcrição para o inglês:",
	},
	{
		ID:     "topics",
		Label:  "Tópicos principais",
		prompt: "Liste os tópicos principais abordados nesta transcrição, em formato de lista:",
	},
	{
		ID:     "sentiment",
		Label:  "Análise de sentimento",
		prompt: "Analise o sentimento geral desta transcrição, indicando o tom e as emoções predominantes:",
	},
	{
		ID:     "entities",
		Label:  "Identificar entidades",
		prompt: "Identifique as pessoas, lugares, organizações e datas mencionadas nesta transcrição:",
	},
	{
		ID:     "action-items",
		Label:  "Itens de ação",
		prompt: "Extraia os itens de ação e compromissos mencionados nesta transcrição, com responsáveis quando citados:",
	},
	{
		ID:     "minutes",
		Label:  "Ata de reunião",
		prompt: "Transforme esta transcrição em uma ata de reunião estruturada, com participantes, pauta e decisões:",
	},
}

// Actions lists the available transcript transformations.
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

func findAction(id string) (Action, bool) {
	for _, a := range actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// languageNames maps recognition language tags to the names used in
// prompts.
var languageNames = map[string]string{
	"pt-BR": "português",
	"en-US": "inglês",
	"es-ES": "espanhol",
}

// RunAction applies a named transformation to the current transcript and
// records the output in the results log.
func (r *Recorder) RunAction(ctx context.Context, id string, opts ProcessOptions) (ActionResult, error) {
	r.mu.Lock()
	transcript := strings.TrimSpace(r.transcript)
	r.mu.Unlock()
	return r.RunActionText(ctx, id, transcript, opts)
}

// RunActionText applies a named transformation to arbitrary text.
func (r *Recorder) RunActionText(ctx context.Context, id, text string, opts ProcessOptions) (ActionResult, error) {
	action, ok := findAction(id)
	if !ok {
		return ActionResult{}, fmt.Errorf("transcription: unknown action %q", id)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ActionResult{}, ErrEmptyTranscript
	}

	r.mu.Lock()
	language := languageNames[r.language]
	r.mu.Unlock()
	if language == "" {
		language = languageNames[DefaultLanguage]
	}

	prompt := fmt.Sprintf("%s\n\n%s\n\nResponda em %s.", action.prompt, text, language)
	if action.ID == "translate-en" {
		prompt = action.prompt + "\n\n" + text
	}
	resp, err := r.gen.Generate(ctx, ai.Request{
		Turns:         ai.UserText(prompt),
		Temperature:   0.7,
		DeepReasoning: opts.DeepReasoning,
		WebSearch:     opts.WebSearch,
	})
	if err != nil {
		return ActionResult{}, fmt.Errorf("run action %q: %w", id, err)
	}

	result := ActionResult{
		Action:    action.ID,
		Label:     action.Label,
		Output:    resp.Text,
		Thinking:  resp.Thinking,
		CreatedAt: r.now(),
	}
	if r.results != nil {
		if err := r.results.Push(ctx, result); err != nil {
			return result, fmt.Errorf("record action result: %w", err)
		}
	}
	return result, nil
}
