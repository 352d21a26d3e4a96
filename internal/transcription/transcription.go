package transcription

import (
	"context"
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
	// DefaultLanguage follows the app's home locale.
	DefaultLanguage = "pt-BR"

	// enhanceEvery triggers live cleanup once per this many sentences.
	enhanceEvery = 3

	enhancePrompt = "Melhore a pontuação e a formatação desta transcrição em tempo real. Mantenha todas as palavras e o idioma original:\n\n"
	sideSystem    = "Você é um assistente que responde perguntas sobre uma transcrição de áudio."
)

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("transcription: already recording")

	// ErrNotRecording is returned by Stop when no session is active.
	ErrNotRecording = errors.New("transcription: not recording")

	// ErrEmptyTranscript guards operations that need captured text.
	ErrEmptyTranscript = errors.New("transcription: transcript is empty")
)

// Events are the callbacks a Source delivers recognition results through.
// Final results are accumulated; interim results only update the live view.
type Events struct {
	OnResult func(text string, final bool)
	OnEnd    func()
	OnError  func(err error)
}

// Source is a speech recognition session. Start may be called again after
// OnEnd fires; the recorder does this to keep a long session alive.
type Source interface {
	Start() error
	Stop()
}

// SourceFactory opens a recognition session for a language, wired to the
// given callbacks.
type SourceFactory func(language string, ev Events) (Source, error)

// Config wires the recorder's dependencies.
type Config struct {
	Store     store.Store
	Generator ai.Generator
	Sources   SourceFactory
	// Results receives AI action outputs; may be nil.
	Results *history.Log
	Logger  *slog.Logger
	Now     func() time.Time
}

// Recorder captures speech into a running transcript, cleans it up live,
// and manages saved snapshots. All methods are safe for concurrent use;
// Source callbacks may arrive from any goroutine.
type Recorder struct {
	store   store.Store
	gen     ai.Generator
	sources SourceFactory
	results *history.Log
	log     *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	source     Source
	recording  bool
	language   string
	transcript string
	interim    string
	generation uint64

	sideMu   sync.Mutex
	sideMsgs []domain.Message
}

// New builds a recorder in the idle state.
func New(cfg Config) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		store:    cfg.Store,
		gen:      cfg.Generator,
		sources:  cfg.Sources,
		results:  cfg.Results,
		log:      logger,
		now:      now,
		language: DefaultLanguage,
	}
}

// Recording reports whether a capture session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Transcript returns the accumulated final text.
func (r *Recorder) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript
}

// Interim returns the live, not yet final, fragment.
func (r *Recorder) Interim() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interim
}

// SetLanguage changes the recognition language for the next session.
func (r *Recorder) SetLanguage(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if language != "" {
		r.language = language
	}
}

// Start opens a recognition session. The transcript keeps accumulating
// across Start calls until Clear.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	source, err := r.sources(r.language, Events{
		OnResult: r.onResult,
		OnEnd:    r.onEnd,
		OnError:  r.onError,
	})
	if err != nil {
		return fmt.Errorf("open recognition source: %w", err)
	}
	if err := source.Start(); err != nil {
		return fmt.Errorf("start recognition: %w", err)
	}
	r.source = source
	r.recording = true
	return nil
}

// Stop ends the capture session. The transcript is retained.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.recording = false
	r.interim = ""
	if r.source != nil {
		r.source.Stop()
		r.source = nil
	}
	return nil
}

// Clear drops the transcript and invalidates any in-flight enhancement.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = ""
	r.interim = ""
	r.generation++
}

func (r *Recorder) onResult(text string, final bool) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	if !final {
		r.interim = text
		r.mu.Unlock()
		return
	}
	r.interim = ""
	r.transcript += text + " "
	snapshot := r.transcript
	gen := r.generation
	r.mu.Unlock()

	// Once every few sentences, ask the gateway to fix punctuation in the
	// background. Failures are silent; the raw transcript stands.
	if len(strings.Split(snapshot, "."))%enhanceEvery == 0 {
		go r.enhance(snapshot, gen)
	}
}

// EnhanceText asks the gateway to fix punctuation and formatting without
// changing the words.
func (r *Recorder) EnhanceText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	resp, err := r.gen.Generate(ctx, ai.Request{
		Turns:       ai.UserText(enhancePrompt + text),
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (r *Recorder) enhance(snapshot string, gen uint64) {
	if r.gen == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	enhanced, err := r.EnhanceText(ctx, snapshot)
	if err != nil {
		r.log.Debug("live enhancement skipped", slog.String("error", err.Error()))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation || !strings.HasPrefix(r.transcript, snapshot) {
		// More speech landed or the transcript was cleared; keep it.
		return
	}
	tail := r.transcript[len(snapshot):]
	r.transcript = strings.TrimRight(enhanced, " ") + " " + tail
}

func (r *Recorder) onEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.source == nil {
		return
	}
	// Recognition sessions time out; keep capturing until Stop.
	if err := r.source.Start(); err != nil {
		r.log.Warn("recognition restart failed", slog.String("error", err.Error()))
		r.recording = false
		r.source = nil
	}
}

func (r *Recorder) onError(err error) {
	if err != nil && strings.Contains(err.Error(), "no-speech") {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.log.Warn("recognition error", slog.String("error", err.Error()))
	}
	r.recording = false
	r.interim = ""
	if r.source != nil {
		r.source.Stop()
		r.source = nil
	}
}

// SaveSnapshot persists the current transcript.
func (r *Recorder) SaveSnapshot(ctx context.Context, title string) (domain.Transcript, error) {
	r.mu.Lock()
	text := strings.TrimSpace(r.transcript)
	language := r.language
	r.mu.Unlock()
	if text == "" {
		return domain.Transcript{}, ErrEmptyTranscript
	}
	if strings.TrimSpace(title) == "" {
		title = "Transcrição de " + r.now().Format("02/01/2006 15:04")
	}
	snap := domain.Transcript{
		Text:     text,
		Language: language,
		Title:    title,
		Date:     r.now(),
	}
	id, err := r.store.SaveTranscript(ctx, snap)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("save transcript: %w", err)
	}
	snap.ID = id
	return snap, nil
}

// ListSnapshots returns saved transcripts in insertion order.
func (r *Recorder) ListSnapshots(ctx context.Context) ([]domain.Transcript, error) {
	return r.store.ListTranscripts(ctx)
}

// LoadSnapshot replaces the working transcript with a saved one.
func (r *Recorder) LoadSnapshot(ctx context.Context, id int64) (domain.Transcript, error) {
	snap, err := r.store.GetTranscript(ctx, id)
	if err != nil {
		return domain.Transcript{}, err
	}
	r.mu.Lock()
	r.transcript = snap.Text
	r.interim = ""
	r.generation++
	if snap.Language != "" {
		r.language = snap.Language
	}
	r.mu.Unlock()
	return snap, nil
}

// DeleteSnapshot removes a saved transcript. Unknown ids are a no-op.
func (r *Recorder) DeleteSnapshot(ctx context.Context, id int64) error {
	return r.store.DeleteTranscript(ctx, id)
}

// ExportToDocument turns the transcript into a library document.
func (r *Recorder) ExportToDocument(ctx context.Context, title string) (domain.Document, error) {
	r.mu.Lock()
	text := strings.TrimSpace(r.transcript)
	r.mu.Unlock()
	if text == "" {
		return domain.Document{}, ErrEmptyTranscript
	}
	if strings.TrimSpace(title) == "" {
		title = "Transcrição " + r.now().Format("02/01/2006")
	}
	doc := domain.Document{
		Title:        title,
		Content:      strings.ReplaceAll(text, "\n", "<br>"),
		LastModified: r.now(),
	}
	id, err := r.store.SaveDocument(ctx, doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("export transcript: %w", err)
	}
	doc.ID = id
	return doc, nil
}

// Ask answers a question about the current transcript. The side
// conversation lives only in memory; Clear on the transcript also makes
// sense as its natural end, but the two are independent.
func (r *Recorder) Ask(ctx context.Context, question string, opts ProcessOptions) (domain.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Message{}, errors.New("transcription: empty question")
	}
	r.mu.Lock()
	transcript := strings.TrimSpace(r.transcript)
	r.mu.Unlock()
	if transcript == "" {
		return domain.Message{}, ErrEmptyTranscript
	}

	r.sideMu.Lock()
	r.sideMsgs = append(r.sideMsgs, domain.Message{Role: domain.RoleUser, Content: question})
	msgs := append([]domain.Message(nil), r.sideMsgs...)
	r.sideMu.Unlock()

	turns := make([]ai.Turn, 0, len(msgs))
	for i, msg := range msgs {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		text := msg.Content
		if i == 0 {
			// The transcript rides along as context on the opening turn.
			text = "Com base nesta transcrição:\n\n" + transcript + "\n\n" + text
		}
		turns = append(turns, ai.Turn{Role: role, Parts: []ai.Part{{Text: text}}})
	}

	resp, err := r.gen.Generate(ctx, ai.Request{
		Turns:             turns,
		SystemInstruction: sideSystem,
		Temperature:       0.7,
		DeepReasoning:     opts.DeepReasoning,
		WebSearch:         opts.WebSearch,
	})
	if err != nil {
		r.sideMu.Lock()
		r.sideMsgs = r.sideMsgs[:len(r.sideMsgs)-1]
		r.sideMu.Unlock()
		return domain.Message{}, err
	}
	reply := domain.Message{Role: domain.RoleAssistant, Content: resp.Text, Thinking: resp.Thinking}
	r.sideMu.Lock()
	r.sideMsgs = append(r.sideMsgs, reply)
	r.sideMu.Unlock()
	return reply, nil
}

// SideMessages returns the side conversation so far.
func (r *Recorder) SideMessages() []domain.Message {
	r.sideMu.Lock()
	defer r.sideMu.Unlock()
	return append([]domain.Message(nil), r.sideMsgs...)
}

// ClearSideChat drops the side conversation.
func (r *Recorder) ClearSideChat() {
	r.sideMu.Lock()
	defer r.sideMu.Unlock()
	r.sideMsgs = nil
}
