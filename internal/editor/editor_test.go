package editor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"writebox/pkg/ai"
	"writebox/pkg/domain"
	"writebox/pkg/store"
)

type countingStore struct {
	store.Store
	saves atomic.Int64
}

func (c *countingStore) SaveDocument(ctx context.Context, doc domain.Document) (int64, error) {
	c.saves.Add(1)
	return c.Store.SaveDocument(ctx, doc)
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	resp  ai.Response
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, _ ai.Request) (ai.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestAutosaveFiresOnceAfterDebounce(t *testing.T) {
	cs := &countingStore{Store: store.NewMemoryStore()}
	gen := &fakeGenerator{resp: ai.Response{Text: "Generated Title"}}
	ed := New(Config{Store: cs, Generator: gen, Debounce: 20 * time.Millisecond})

	ed.Edit("", "Hello")
	ed.Edit("", "Hello wor")
	ed.Edit("", "Hello world")

	time.Sleep(120 * time.Millisecond)

	if got := cs.saves.Load(); got != 1 {
		t.Fatalf("expected exactly one autosave, got %d", got)
	}
	if gen.callCount() != 0 {
		t.Fatalf("short content must not trigger title generation")
	}
	doc := ed.Document()
	if doc.Title != PlaceholderTitle {
		t.Fatalf("expected placeholder title, got %q", doc.Title)
	}
	if doc.ID == 0 {
		t.Fatalf("expected an assigned id after autosave")
	}
	if ed.State() != StateClean {
		t.Fatalf("expected clean state after autosave, got %v", ed.State())
	}
}

func TestSaveUpsertsSameRecord(t *testing.T) {
	ms := store.NewMemoryStore()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ed := New(Config{Store: ms, Now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}})

	ed.Edit("Notas", "primeira versão")
	first, err := ed.Save(context.Background(), true)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	ed.Edit("Notas", "segunda versão")
	second, err := ed.Save(context.Background(), true)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same record id, got %d then %d", first.ID, second.ID)
	}
	if !second.LastModified.After(first.LastModified) {
		t.Fatalf("lastModified must strictly increase: %v then %v", first.LastModified, second.LastModified)
	}
	docs, err := ms.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected a single stored record, got %d", len(docs))
	}
	if docs[0].Content != "segunda versão" {
		t.Fatalf("unexpected stored content: %q", docs[0].Content)
	}
}

func TestTitleGeneratedForSubstantialContent(t *testing.T) {
	ms := store.NewMemoryStore()
	gen := &fakeGenerator{resp: ai.Response{Text: "Reflexões sobre o mar\n"}}
	ed := New(Config{Store: ms, Generator: gen})

	ed.Edit("", "O mar estava calmo naquela manhã e os barcos partiam devagar.")
	doc, err := ed.Save(context.Background(), true)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if doc.Title != "Reflexões sobre o mar" {
		t.Fatalf("unexpected generated title: %q", doc.Title)
	}
	if gen.callCount() != 1 {
		t.Fatalf("expected one title generation call, got %d", gen.callCount())
	}
}

func TestTitleFallsBackWhenGatewayFails(t *testing.T) {
	ms := store.NewMemoryStore()
	gen := &fakeGenerator{err: errors.New("gateway down")}
	ed := New(Config{Store: ms, Generator: gen})

	ed.Edit("", "O mar estava calmo naquela manhã e os barcos partiam devagar.")
	doc, err := ed.Save(context.Background(), true)
	if err != nil {
		t.Fatalf("save must succeed despite title failure: %v", err)
	}
	if doc.Title != PlaceholderTitle {
		t.Fatalf("expected placeholder title, got %q", doc.Title)
	}
}

func TestOrganizeReplacesContentAndPersists(t *testing.T) {
	ms := store.NewMemoryStore()
	gen := &fakeGenerator{resp: ai.Response{Text: "Primeira linha.\nSegunda linha."}}
	ed := New(Config{Store: ms, Generator: gen})

	ed.Edit("Rascunho", "primeira linha segunda linha")
	if err := ed.Organize(context.Background()); err != nil {
		t.Fatalf("organize: %v", err)
	}
	doc := ed.Document()
	if doc.Content != "Primeira linha.<br>Segunda linha." {
		t.Fatalf("unexpected organized content: %q", doc.Content)
	}
	docs, _ := ms.ListDocuments(context.Background())
	if len(docs) != 1 || docs[0].Content != doc.Content {
		t.Fatalf("organized content was not persisted")
	}
}

func TestOrganizeFailureLeavesContentUntouched(t *testing.T) {
	ms := store.NewMemoryStore()
	gen := &fakeGenerator{err: errors.New("boom")}
	ed := New(Config{Store: ms, Generator: gen})

	ed.Edit("Rascunho", "texto original")
	if err := ed.Organize(context.Background()); err == nil {
		t.Fatal("expected organize error")
	}
	if got := ed.Document().Content; got != "texto original" {
		t.Fatalf("content must be untouched on failure, got %q", got)
	}
}

func TestOrganizeEmptyContent(t *testing.T) {
	ed := New(Config{Store: store.NewMemoryStore(), Generator: &fakeGenerator{}})
	if err := ed.Organize(context.Background()); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

// gateStore blocks the first SaveDocument call until released, so a test
// can interleave work with a save in flight. Later calls pass through.
type gateStore struct {
	store.Store
	calls   atomic.Int64
	entered chan struct{}
	release chan struct{}
}

func (g *gateStore) SaveDocument(ctx context.Context, doc domain.Document) (int64, error) {
	if g.calls.Add(1) == 1 {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Store.SaveDocument(ctx, doc)
}

func TestEditDuringSaveKeepsBufferDirty(t *testing.T) {
	gs := &gateStore{
		Store:   store.NewMemoryStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	ed := New(Config{Store: gs, Debounce: 50 * time.Millisecond})

	ed.Edit("Título", "versão um")
	done := make(chan error, 1)
	go func() {
		_, err := ed.Save(context.Background(), true)
		done <- err
	}()

	<-gs.entered
	ed.Edit("Título novo", "versão dois")
	close(gs.release)
	if err := <-done; err != nil {
		t.Fatalf("save: %v", err)
	}

	doc := ed.Document()
	if doc.Title != "Título novo" || doc.Content != "versão dois" {
		t.Fatalf("buffer lost the newer edit: %+v", doc)
	}

	// The restarted debounce must persist the newer snapshot into the same
	// record.
	deadline := time.Now().Add(2 * time.Second)
	for {
		docs, err := gs.ListDocuments(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(docs) == 1 && docs[0].Content == "versão dois" {
			if docs[0].Title != "Título novo" {
				t.Fatalf("unexpected stored title: %q", docs[0].Title)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("newer edit was never autosaved, store holds %+v", docs)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if ed.State() != StateClean {
		t.Fatalf("expected clean state after the autosave, got %v", ed.State())
	}
}

func TestNewDocumentDiscardsPendingAutosave(t *testing.T) {
	cs := &countingStore{Store: store.NewMemoryStore()}
	ed := New(Config{Store: cs, Debounce: 30 * time.Millisecond})

	ed.Edit("", "texto que nunca deve ser salvo")
	ed.NewDocument()

	time.Sleep(100 * time.Millisecond)
	if got := cs.saves.Load(); got != 0 {
		t.Fatalf("expected no save after reset, got %d", got)
	}
	if ed.State() != StateEmpty {
		t.Fatalf("expected empty state, got %v", ed.State())
	}
}

func TestLoadMostRecentPicksNewestStamp(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := ms.SaveDocument(ctx, domain.Document{Title: "antigo", LastModified: base.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := ms.SaveDocument(ctx, domain.Document{Title: "recente", LastModified: base.Add(5 * time.Hour)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := ms.SaveDocument(ctx, domain.Document{Title: "meio", LastModified: base.Add(3 * time.Hour)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ed := New(Config{Store: ms})
	found, err := ed.LoadMostRecent(ctx)
	if err != nil {
		t.Fatalf("load most recent: %v", err)
	}
	if !found {
		t.Fatal("expected a document to be found")
	}
	if got := ed.Document().Title; got != "recente" {
		t.Fatalf("expected newest document, got %q", got)
	}
}

func TestLoadMostRecentEmptyLibrary(t *testing.T) {
	ed := New(Config{Store: store.NewMemoryStore()})
	found, err := ed.LoadMostRecent(context.Background())
	if err != nil {
		t.Fatalf("load most recent: %v", err)
	}
	if found {
		t.Fatal("expected no document in an empty library")
	}
}
