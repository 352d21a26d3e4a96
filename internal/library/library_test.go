package library

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"writebox/pkg/domain"
	"writebox/pkg/store"
)

func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ms := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	docs := []domain.Document{
		{Title: "Receitas", Content: "Bolo de <b>cenoura</b> com cobertura", LastModified: base.Add(1 * time.Hour)},
		{Title: "Diário", Content: "Hoje caminhei pela praia", LastModified: base.Add(3 * time.Hour)},
		{Title: "Trabalho", Content: "Relatório da reunião de segunda", LastModified: base.Add(2 * time.Hour)},
	}
	for _, doc := range docs {
		if _, err := ms.SaveDocument(ctx, doc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return ms
}

func TestListOrdersByRecency(t *testing.T) {
	lib := New(seedStore(t), nil, nil)
	entries, err := lib.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Title
	}
	want := "Diário,Trabalho,Receitas"
	if strings.Join(got, ",") != want {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestSearchMatchesTitleAndContent(t *testing.T) {
	lib := New(seedStore(t), nil, nil)
	ctx := context.Background()

	byTitle, err := lib.Search(ctx, "diário")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(byTitle) != 1 || byTitle[0].Title != "Diário" {
		t.Fatalf("title search failed: %+v", byTitle)
	}

	// Content match must see through markup.
	byContent, err := lib.Search(ctx, "CENOURA")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(byContent) != 1 || byContent[0].Title != "Receitas" {
		t.Fatalf("content search failed: %+v", byContent)
	}

	none, err := lib.Search(ctx, "inexistente")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestSearchResultsAreSubsetOfList(t *testing.T) {
	lib := New(seedStore(t), nil, nil)
	ctx := context.Background()

	all, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := make(map[int64]bool, len(all))
	for _, e := range all {
		ids[e.ID] = true
	}

	matched, err := lib.Search(ctx, "a")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, e := range matched {
		if !ids[e.ID] {
			t.Fatalf("search returned entry %d not present in full listing", e.ID)
		}
	}
}

func TestPreviewTruncation(t *testing.T) {
	ms := store.NewMemoryStore()
	long := strings.Repeat("palavra ", 50)
	if _, err := ms.SaveDocument(context.Background(), domain.Document{Title: "Longo", Content: long}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	lib := New(ms, nil, nil)
	entries, err := lib.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.HasSuffix(entries[0].Preview, "...") {
		t.Fatalf("expected truncated preview, got %q", entries[0].Preview)
	}
	if len([]rune(entries[0].Preview)) != 153 {
		t.Fatalf("unexpected preview length %d", len([]rune(entries[0].Preview)))
	}
}

type recordingOpener struct {
	loaded []domain.Document
}

func (r *recordingOpener) LoadDocument(doc domain.Document) {
	r.loaded = append(r.loaded, doc)
}

func TestOpenLoadsAndNavigates(t *testing.T) {
	ms := seedStore(t)
	opener := &recordingOpener{}
	navigated := false
	lib := New(ms, opener, func() { navigated = true })

	entries, err := lib.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := lib.Open(context.Background(), entries[0].ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(opener.loaded) != 1 || opener.loaded[0].Title != entries[0].Title {
		t.Fatalf("opener did not receive the document: %+v", opener.loaded)
	}
	if !navigated {
		t.Fatal("navigate callback did not run")
	}
}

func TestOpenUnknownID(t *testing.T) {
	lib := New(store.NewMemoryStore(), &recordingOpener{}, nil)
	err := lib.Open(context.Background(), 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ms := seedStore(t)
	lib := New(ms, nil, nil)
	ctx := context.Background()

	entries, _ := lib.List(ctx)
	id := entries[0].ID
	if err := lib.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := lib.Delete(ctx, id); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	after, _ := lib.List(ctx)
	if len(after) != len(entries)-1 {
		t.Fatalf("expected %d entries after delete, got %d", len(entries)-1, len(after))
	}
}
