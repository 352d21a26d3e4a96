package store

import (
	"context"
	"sync"

	"writebox/pkg/domain"
)

// MemoryStore keeps all collections in-process. It mirrors the Store
// contract (upsert keys, insertion order, idempotent delete) and backs
// tests and credential-free development runs.
type MemoryStore struct {
	mu sync.RWMutex

	documents   map[int64]domain.Document
	docOrder    []int64
	nextDocID   int64
	files       map[int64]domain.StoredFile
	fileOrder   []int64
	nextFileID  int64
	transcripts map[int64]domain.Transcript
	trOrder     []int64
	nextTrID    int64
	session     *domain.ChatSession
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:   make(map[int64]domain.Document),
		files:       make(map[int64]domain.StoredFile),
		transcripts: make(map[int64]domain.Transcript),
	}
}

// SaveDocument inserts or overwrites a document and returns its key.
func (m *MemoryStore) SaveDocument(_ context.Context, doc domain.Document) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == 0 {
		m.nextDocID++
		doc.ID = m.nextDocID
		m.docOrder = append(m.docOrder, doc.ID)
	} else if _, ok := m.documents[doc.ID]; !ok {
		m.docOrder = append(m.docOrder, doc.ID)
		if doc.ID > m.nextDocID {
			m.nextDocID = doc.ID
		}
	}
	m.documents[doc.ID] = doc
	return doc.ID, nil
}

// GetDocument returns the document or ErrNotFound.
func (m *MemoryStore) GetDocument(_ context.Context, id int64) (domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.Document{}, ErrNotFound
	}
	return doc, nil
}

// ListDocuments returns documents in insertion order.
func (m *MemoryStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0, len(m.docOrder))
	for _, id := range m.docOrder {
		if d, ok := m.documents[id]; ok {
			res = append(res, d)
		}
	}
	return res, nil
}

// DeleteDocument removes a document; absent keys are ignored.
func (m *MemoryStore) DeleteDocument(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	m.docOrder = removeID(m.docOrder, id)
	return nil
}

// SaveFile inserts or overwrites a file record and returns its key.
func (m *MemoryStore) SaveFile(_ context.Context, file domain.StoredFile) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file.ID == 0 {
		m.nextFileID++
		file.ID = m.nextFileID
		m.fileOrder = append(m.fileOrder, file.ID)
	} else if _, ok := m.files[file.ID]; !ok {
		m.fileOrder = append(m.fileOrder, file.ID)
		if file.ID > m.nextFileID {
			m.nextFileID = file.ID
		}
	}
	m.files[file.ID] = file
	return file.ID, nil
}

// GetFile returns the file record or ErrNotFound.
func (m *MemoryStore) GetFile(_ context.Context, id int64) (domain.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return domain.StoredFile{}, ErrNotFound
	}
	return f, nil
}

// ListFiles returns file records in insertion order.
func (m *MemoryStore) ListFiles(_ context.Context) ([]domain.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.StoredFile, 0, len(m.fileOrder))
	for _, id := range m.fileOrder {
		if f, ok := m.files[id]; ok {
			res = append(res, f)
		}
	}
	return res, nil
}

// DeleteFile removes a file record; absent keys are ignored.
func (m *MemoryStore) DeleteFile(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	m.fileOrder = removeID(m.fileOrder, id)
	return nil
}

// SaveTranscript inserts or overwrites a transcript and returns its key.
func (m *MemoryStore) SaveTranscript(_ context.Context, tr domain.Transcript) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tr.ID == 0 {
		m.nextTrID++
		tr.ID = m.nextTrID
		m.trOrder = append(m.trOrder, tr.ID)
	} else if _, ok := m.transcripts[tr.ID]; !ok {
		m.trOrder = append(m.trOrder, tr.ID)
		if tr.ID > m.nextTrID {
			m.nextTrID = tr.ID
		}
	}
	m.transcripts[tr.ID] = tr
	return tr.ID, nil
}

// GetTranscript returns the transcript or ErrNotFound.
func (m *MemoryStore) GetTranscript(_ context.Context, id int64) (domain.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.transcripts[id]
	if !ok {
		return domain.Transcript{}, ErrNotFound
	}
	return tr, nil
}

// ListTranscripts returns transcripts in insertion order.
func (m *MemoryStore) ListTranscripts(_ context.Context) ([]domain.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Transcript, 0, len(m.trOrder))
	for _, id := range m.trOrder {
		if tr, ok := m.transcripts[id]; ok {
			res = append(res, tr)
		}
	}
	return res, nil
}

// DeleteTranscript removes a transcript; absent keys are ignored.
func (m *MemoryStore) DeleteTranscript(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcripts, id)
	m.trOrder = removeID(m.trOrder, id)
	return nil
}

// SaveSession overwrites the current-session slot.
func (m *MemoryStore) SaveSession(_ context.Context, session domain.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := session
	copied.Messages = append([]domain.Message(nil), session.Messages...)
	m.session = &copied
	return nil
}

// LoadSession returns the current session or ErrNotFound.
func (m *MemoryStore) LoadSession(_ context.Context) (domain.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return domain.ChatSession{}, ErrNotFound
	}
	copied := *m.session
	copied.Messages = append([]domain.Message(nil), m.session.Messages...)
	return copied, nil
}

func removeID(order []int64, id int64) []int64 {
	filtered := order[:0]
	for _, item := range order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
