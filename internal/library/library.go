package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"writebox/internal/util"
	"writebox/pkg/domain"
	"writebox/pkg/store"
)

// previewLength caps the plain-text excerpt shown per entry.
const previewLength = 150

// Entry is a library listing row: metadata plus a short excerpt, never the
// full content.
type Entry struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	Words        int       `json:"words"`
	LastModified time.Time `json:"lastModified"`
}

// Opener receives a document picked from the library. The editor satisfies
// this.
type Opener interface {
	LoadDocument(domain.Document)
}

// Library lists, searches, opens and deletes saved documents.
type Library struct {
	store    store.Store
	opener   Opener
	navigate func()
}

// New builds a library over the given store. opener and navigate may be
// nil; navigate runs after a successful Open so the caller can switch the
// active view.
func New(st store.Store, opener Opener, navigate func()) *Library {
	return &Library{store: st, opener: opener, navigate: navigate}
}

// List returns all saved documents, most recently modified first.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	return l.Search(ctx, "")
}

// Search filters documents by a case-insensitive substring match against
// the title and the plain-text content. An empty query matches everything.
// Results are ordered most recently modified first.
func (l *Library) Search(ctx context.Context, query string) ([]Entry, error) {
	docs, err := l.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		plain := util.StripMarkup(doc.Content)
		if query != "" &&
			!strings.Contains(strings.ToLower(doc.Title), query) &&
			!strings.Contains(strings.ToLower(plain), query) {
			continue
		}
		entries = append(entries, Entry{
			ID:           doc.ID,
			Title:        doc.Title,
			Preview:      util.Preview(plain, previewLength),
			Words:        util.WordCount(plain),
			LastModified: doc.LastModified,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastModified.After(entries[j].LastModified)
	})
	return entries, nil
}

// Get returns the full document record, content included.
func (l *Library) Get(ctx context.Context, id int64) (domain.Document, error) {
	return l.store.GetDocument(ctx, id)
}

// Open loads a document into the opener and fires the navigate callback.
func (l *Library) Open(ctx context.Context, id int64) error {
	doc, err := l.store.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("get document %d: %w", id, err)
	}
	if l.opener != nil {
		l.opener.LoadDocument(doc)
	}
	if l.navigate != nil {
		l.navigate()
	}
	return nil
}

// Delete removes a document. Deleting an unknown id is not an error.
func (l *Library) Delete(ctx context.Context, id int64) error {
	if err := l.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return nil
}
