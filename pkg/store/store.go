package store

import (
	"context"
	"errors"

	"writebox/pkg/domain"
)

// ErrNotFound is returned by Get operations when no record has the given key.
var ErrNotFound = errors.New("store: not found")

// Store defines persistence operations over the four Writebox collections:
// documents, files, transcripts, and the current chat session.
//
// Save is an upsert: a record with a zero key is inserted and assigned the
// next key; a record with a known key overwrites the stored one. List
// operations return records in insertion order. Delete of an absent key is
// not an error.
type Store interface {
	// documents
	SaveDocument(ctx context.Context, doc domain.Document) (int64, error)
	GetDocument(ctx context.Context, id int64) (domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, id int64) error

	// files
	SaveFile(ctx context.Context, file domain.StoredFile) (int64, error)
	GetFile(ctx context.Context, id int64) (domain.StoredFile, error)
	ListFiles(ctx context.Context) ([]domain.StoredFile, error)
	DeleteFile(ctx context.Context, id int64) error

	// transcripts
	SaveTranscript(ctx context.Context, tr domain.Transcript) (int64, error)
	GetTranscript(ctx context.Context, id int64) (domain.Transcript, error)
	ListTranscripts(ctx context.Context) ([]domain.Transcript, error)
	DeleteTranscript(ctx context.Context, id int64) error

	// current chat session, a named slot rather than a keyed record so the
	// schema can grow multi-session support without magic keys
	SaveSession(ctx context.Context, session domain.ChatSession) error
	LoadSession(ctx context.Context) (domain.ChatSession, error)
}
