package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"writebox/pkg/ai"
	"writebox/pkg/domain"
	"writebox/pkg/history"
	"writebox/pkg/store"
)

const (
	systemInstruction = "Você é um assistente de escrita útil e amigável. Responda em português do Brasil."

	// apologyMessage is shown for transport and unexpected failures, where
	// no gateway message is available.
	apologyMessage = "Desculpe, ocorreu um erro. Tente novamente."
)

var (
	// ErrBusy is returned while a previous send is still in flight.
	ErrBusy = errors.New("chat: request already in flight")

	// ErrEmptyMessage is returned for blank input. The session is untouched.
	ErrEmptyMessage = errors.New("chat: empty message")
)

// Options are per-message toggles and payloads.
type Options struct {
	DeepReasoning bool `json:"deepReasoning"`
	WebSearch     bool `json:"webSearch"`
	// Attachments ride along with the user turn as inline base64 data.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file sent with a message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	// Data is standard base64, without a data URL prefix.
	Data string `json:"data"`
}

// Archive is a snapshot of a finished conversation.
type Archive struct {
	Messages   []domain.Message `json:"messages"`
	ArchivedAt time.Time        `json:"archivedAt"`
}

// Chat drives the single active conversation. The transcript lives in the
// store's session slot; finished conversations are pushed to a capped
// archive log.
type Chat struct {
	store   store.Store
	gen     ai.Generator
	archive *history.Log
	now     func() time.Time

	mu         sync.Mutex
	messages   []domain.Message
	loaded     bool
	inFlight   bool
	generation uint64
}

// New builds a chat over the given store and gateway. archive may be nil,
// in which case cleared conversations are simply dropped.
func New(st store.Store, gen ai.Generator, archive *history.Log) *Chat {
	return &Chat{store: st, gen: gen, archive: archive, now: time.Now}
}

// ensureLoaded pulls the persisted session into memory once. Callers must
// hold the lock.
func (c *Chat) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	session, err := c.store.LoadSession(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load session: %w", err)
	}
	c.messages = session.Messages
	c.loaded = true
	return nil
}

// Messages returns a copy of the current transcript.
func (c *Chat) Messages(ctx context.Context) ([]domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out, nil
}

// Send appends the user turn, asks the gateway for a reply, and appends it.
// Gateway errors become visible assistant turns rather than failing the
// call, so the transcript always shows what happened. Only one send may be
// in flight at a time.
func (c *Chat) Send(ctx context.Context, text string, opts Options) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(opts.Attachments) == 0 {
		return domain.Message{}, ErrEmptyMessage
	}

	userTurn := domain.Message{Role: domain.RoleUser, Content: text}
	for _, att := range opts.Attachments {
		if userTurn.Content != "" {
			userTurn.Content += "\n"
		}
		userTurn.Content += "[arquivo: " + att.Name + "]"
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return domain.Message{}, ErrBusy
	}
	if err := c.ensureLoaded(ctx); err != nil {
		c.mu.Unlock()
		return domain.Message{}, err
	}
	c.inFlight = true
	gen := c.generation
	c.messages = append(c.messages, userTurn)
	turns := gatewayTurns(c.messages)
	if err := c.persistLocked(ctx); err != nil {
		c.inFlight = false
		c.messages = c.messages[:len(c.messages)-1]
		c.mu.Unlock()
		return domain.Message{}, err
	}
	c.mu.Unlock()

	// The gateway sees the typed text plus raw attachment bytes, not the
	// display markers stored in the transcript.
	if len(opts.Attachments) > 0 {
		last := &turns[len(turns)-1]
		last.Parts = []ai.Part{{Text: text}}
		for _, att := range opts.Attachments {
			last.Parts = append(last.Parts, ai.Part{InlineData: &ai.Blob{
				MimeType: att.MimeType,
				Data:     att.Data,
			}})
		}
	}

	resp, err := c.gen.Generate(ctx, ai.Request{
		Turns:             turns,
		SystemInstruction: systemInstruction,
		Temperature:       0.7,
		DeepReasoning:     opts.DeepReasoning,
		WebSearch:         opts.WebSearch,
	})

	reply := domain.Message{Role: domain.RoleAssistant}
	switch {
	case err == nil:
		reply.Content = resp.Text
		reply.Thinking = resp.Thinking
	default:
		var apiErr *ai.APIError
		if errors.As(err, &apiErr) {
			reply.Content = "Erro: " + apiErr.Message
		} else {
			reply.Content = apologyMessage
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if gen != c.generation {
		// The session was cleared while we waited; the reply belongs to a
		// conversation that no longer exists.
		return domain.Message{}, nil
	}
	c.messages = append(c.messages, reply)
	if perr := c.persistLocked(ctx); perr != nil {
		// The turn is already visible in memory and the next persist will
		// carry it, so a store hiccup here must not fail the exchange.
		slog.Warn("chat session persist failed", "err", perr)
	}
	return reply, nil
}

// NewSession archives the current transcript and starts an empty one. Any
// in-flight reply is discarded when it lands.
func (c *Chat) NewSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	if len(c.messages) > 0 && c.archive != nil {
		snapshot := Archive{Messages: c.messages, ArchivedAt: c.now()}
		if err := c.archive.Push(ctx, snapshot); err != nil {
			return fmt.Errorf("archive session: %w", err)
		}
	}
	c.messages = nil
	c.generation++
	c.inFlight = false
	return c.persistLocked(ctx)
}

// Clear wipes the transcript without archiving it.
func (c *Chat) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.loaded = true
	c.generation++
	c.inFlight = false
	return c.persistLocked(ctx)
}

// Archives returns previously archived conversations, newest first.
func (c *Chat) Archives(ctx context.Context) ([]Archive, error) {
	if c.archive == nil {
		return nil, nil
	}
	raw, err := c.archive.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	out := make([]Archive, 0, len(raw))
	for _, entry := range raw {
		var arch Archive
		if err := json.Unmarshal(entry, &arch); err != nil {
			continue
		}
		out = append(out, arch)
	}
	return out, nil
}

// persistLocked writes the transcript to the session slot. Callers must
// hold the lock.
func (c *Chat) persistLocked(ctx context.Context) error {
	session := domain.ChatSession{
		Messages:     append([]domain.Message(nil), c.messages...),
		LastModified: c.now(),
	}
	if err := c.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// gatewayTurns maps the transcript to gateway roles. The assistant speaks
// as "model" on the wire.
func gatewayTurns(messages []domain.Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		turns = append(turns, ai.Turn{
			Role:  role,
			Parts: []ai.Part{{Text: msg.Content}},
		})
	}
	return turns
}
