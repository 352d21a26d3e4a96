package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"writebox/internal/util"
	"writebox/pkg/ai"
	"writebox/pkg/domain"
	"writebox/pkg/store"
)

const (
	// DefaultDebounce is the quiet period after the last edit before an
	// autosave fires.
	DefaultDebounce = 2 * time.Second

	// PlaceholderTitle is used when the title is empty and no generated
	// title is available.
	PlaceholderTitle = "Sem título"

	// titleThreshold is the minimum plain-text length before a title is
	// worth generating.
	titleThreshold = 32

	organizePrompt = "Organize, corrija erros gramaticais e ortográficos, e melhore a estrutura deste texto. Mantenha o significado original:\n\n"
	organizeSystem = "Você é um assistente de escrita profissional."
	titlePrompt    = "Gere um título curto (máximo 5 palavras, sem aspas) para este texto:\n\n"
)

// ErrNoContent is returned by Organize when the editor is empty.
var ErrNoContent = errors.New("editor: nothing to organize")

// State tracks the editor's document lifecycle.
type State int

const (
	StateEmpty State = iota
	StateClean
	StateDirty
	StateSaving
)

// Status is a user-visible status message.
type Status struct {
	Message string
	OK      bool
}

// StatusFunc receives status updates. It must not block.
type StatusFunc func(Status)

// Config wires the editor's dependencies.
type Config struct {
	Store     store.Store
	Generator ai.Generator
	// Debounce overrides DefaultDebounce, for tests.
	Debounce time.Duration
	Notify   StatusFunc
	Now      func() time.Time
}

// Editor owns the live document: debounced autosave, manual save, title
// generation, and the organize operation. All methods are safe for
// concurrent use.
type Editor struct {
	mu         sync.Mutex
	store      store.Store
	gen        ai.Generator
	debounce   time.Duration
	notify     StatusFunc
	now        func() time.Time
	timer      *time.Timer
	doc        domain.Document
	state      State
	generation uint64
	edits      uint64
}

// New constructs an editor with no document loaded.
func New(cfg Config) *Editor {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(Status) {}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Editor{
		store:    cfg.Store,
		gen:      cfg.Generator,
		debounce: debounce,
		notify:   notify,
		now:      now,
	}
}

// State returns the current lifecycle state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Document returns a copy of the current document.
func (e *Editor) Document() domain.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// Stats returns the word and character counts of the current content.
func (e *Editor) Stats() (words, chars int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	text := util.StripMarkup(e.doc.Content)
	return util.WordCount(text), len([]rune(text))
}

// LoadDocument replaces the editor state with a copy of the given record.
// Any pending autosave for the previous document is discarded.
func (e *Editor) LoadDocument(doc domain.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
	e.doc = doc
	e.state = StateClean
}

// NewDocument clears the editor. The next save inserts a fresh record.
func (e *Editor) NewDocument() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
	e.doc = domain.Document{}
	e.state = StateEmpty
}

// reset discards the pending autosave and invalidates in-flight work.
// Callers must hold the lock.
func (e *Editor) reset() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.generation++
}

// Edit applies a title/content change and (re)starts the autosave timer.
// The timer is reset, not queued, so at most one autosave is ever pending.
func (e *Editor) Edit(title, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc.Title = title
	e.doc.Content = content
	e.state = StateDirty
	e.edits++
	if e.timer != nil {
		e.timer.Stop()
	}
	gen := e.generation
	e.timer = time.AfterFunc(e.debounce, func() {
		e.autosave(gen)
	})
}

func (e *Editor) autosave(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.state != StateDirty {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	_, _ = e.Save(context.Background(), false)
}

// Save persists the current document. Auto and manual saves share this
// path; the flag only changes the status message. The assigned key is kept
// so later saves upsert the same record.
func (e *Editor) Save(ctx context.Context, manual bool) (domain.Document, error) {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	doc := e.doc
	gen := e.generation
	edits := e.edits
	e.state = StateSaving
	e.mu.Unlock()

	doc.Title = e.resolveTitle(ctx, doc)
	doc.LastModified = e.now()

	id, err := e.store.SaveDocument(ctx, doc)
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		// The document changed while the save was in flight; drop the result.
		return doc, nil
	}
	if err != nil {
		e.state = StateDirty
		e.notify(Status{Message: "Erro ao salvar", OK: false})
		return domain.Document{}, err
	}
	doc.ID = id
	e.doc.ID = id
	if e.edits != edits {
		// Newer keystrokes arrived while the save was in flight. The stored
		// row holds the older snapshot; leave the buffer dirty so the
		// pending autosave persists the newer one.
		return doc, nil
	}
	e.doc.Title = doc.Title
	e.doc.LastModified = doc.LastModified
	e.state = StateClean
	if manual {
		e.notify(Status{Message: "Salvo!", OK: true})
	} else {
		e.notify(Status{Message: "Salvo automaticamente", OK: true})
	}
	return doc, nil
}

// Persist saves an arbitrary document record with the same title
// resolution as the live buffer. The live buffer is untouched.
func (e *Editor) Persist(ctx context.Context, doc domain.Document) (domain.Document, error) {
	doc.Title = e.resolveTitle(ctx, doc)
	doc.LastModified = e.now()
	id, err := e.store.SaveDocument(ctx, doc)
	if err != nil {
		return domain.Document{}, err
	}
	doc.ID = id
	return doc, nil
}

// SuggestTitle asks the gateway for a short title for the given content.
// Content below the generation threshold gets the placeholder directly.
func (e *Editor) SuggestTitle(ctx context.Context, content string) string {
	plain := strings.TrimSpace(util.StripMarkup(content))
	if len([]rune(plain)) <= titleThreshold || e.gen == nil {
		return PlaceholderTitle
	}
	resp, err := e.gen.Generate(ctx, ai.Request{
		Turns:       ai.UserText(titlePrompt + plain),
		Temperature: 0.7,
	})
	if err != nil {
		return PlaceholderTitle
	}
	generated := strings.TrimSpace(strings.ReplaceAll(resp.Text, "\n", " "))
	if generated == "" {
		return PlaceholderTitle
	}
	return generated
}

// OrganizeText rewrites markup content through the gateway and returns the
// cleaned version, newlines rendered as breaks.
func (e *Editor) OrganizeText(ctx context.Context, content string) (string, error) {
	plain := strings.TrimSpace(util.StripMarkup(content))
	if plain == "" {
		return "", ErrNoContent
	}
	resp, err := e.gen.Generate(ctx, ai.Request{
		Turns:             ai.UserText(organizePrompt + plain),
		SystemInstruction: organizeSystem,
		Temperature:       0.7,
	})
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(resp.Text, "\n", "<br>"), nil
}

// resolveTitle fills an empty title: generated for substantial content,
// placeholder otherwise. A gateway failure never blocks the save.
func (e *Editor) resolveTitle(ctx context.Context, doc domain.Document) string {
	title := strings.TrimSpace(doc.Title)
	if title != "" {
		return title
	}
	return e.SuggestTitle(ctx, doc.Content)
}

// Organize sends the plain-text content to the gateway and replaces the
// editor content with the cleaned version, persisting immediately. On
// failure the content is left untouched.
func (e *Editor) Organize(ctx context.Context) error {
	e.mu.Lock()
	content := e.doc.Content
	e.mu.Unlock()

	e.notify(Status{Message: "Organizando...", OK: true})
	organized, err := e.OrganizeText(ctx, content)
	if err != nil {
		if !errors.Is(err, ErrNoContent) {
			e.notify(Status{Message: "Erro ao organizar", OK: false})
		}
		return err
	}

	e.mu.Lock()
	e.doc.Content = organized
	e.state = StateDirty
	e.mu.Unlock()

	if _, err := e.Save(ctx, true); err != nil {
		return err
	}
	e.notify(Status{Message: "Texto organizado!", OK: true})
	return nil
}

// LoadMostRecent loads the document with the newest lastModified stamp.
// Recency deliberately follows the modification time, not insertion order,
// so editing an old document keeps it first. Returns false when the
// library is empty.
func (e *Editor) LoadMostRecent(ctx context.Context) (bool, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return false, err
	}
	if len(docs) == 0 {
		return false, nil
	}
	latest := docs[0]
	for _, doc := range docs[1:] {
		if !doc.LastModified.Before(latest.LastModified) {
			latest = doc
		}
	}
	e.LoadDocument(latest)
	return true, nil
}
