package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"writebox/pkg/domain"
)

const currentSessionSlot = "current"

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations for the four
// collections. An open failure is fatal to the caller's startup.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&DocumentModel{}, &FileModel{}, &TranscriptModel{}, &ChatSessionModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveDocument inserts or overwrites a document and returns its key.
func (s *GormStore) SaveDocument(ctx context.Context, doc domain.Document) (int64, error) {
	model := documentToModel(doc)
	if model.ID == 0 {
		if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
			return 0, err
		}
		return model.ID, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "last_modified"}),
	}).Create(&model).Error
	return model.ID, err
}

// GetDocument returns the document or ErrNotFound.
func (s *GormStore) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	var model DocumentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, ErrNotFound
		}
		return domain.Document{}, err
	}
	return documentFromModel(model), nil
}

// ListDocuments returns all documents in insertion order.
func (s *GormStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// DeleteDocument removes a document. Deleting an absent key is not an error.
func (s *GormStore) DeleteDocument(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&DocumentModel{}, "id = ?", id).Error
}

// SaveFile inserts or overwrites a file record and returns its key.
func (s *GormStore) SaveFile(ctx context.Context, file domain.StoredFile) (int64, error) {
	model := fileToModel(file)
	if model.ID == 0 {
		if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
			return 0, err
		}
		return model.ID, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "size", "mime_type", "upload_date", "data", "preview", "storage_key"}),
	}).Create(&model).Error
	return model.ID, err
}

// GetFile returns the file record or ErrNotFound.
func (s *GormStore) GetFile(ctx context.Context, id int64) (domain.StoredFile, error) {
	var model FileModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.StoredFile{}, ErrNotFound
		}
		return domain.StoredFile{}, err
	}
	return fileFromModel(model), nil
}

// ListFiles returns all file records in insertion order.
func (s *GormStore) ListFiles(ctx context.Context) ([]domain.StoredFile, error) {
	var models []FileModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.StoredFile, 0, len(models))
	for _, m := range models {
		res = append(res, fileFromModel(m))
	}
	return res, nil
}

// DeleteFile removes a file record. Deleting an absent key is not an error.
func (s *GormStore) DeleteFile(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&FileModel{}, "id = ?", id).Error
}

// SaveTranscript inserts or overwrites a transcript and returns its key.
func (s *GormStore) SaveTranscript(ctx context.Context, tr domain.Transcript) (int64, error) {
	model := transcriptToModel(tr)
	if model.ID == 0 {
		if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
			return 0, err
		}
		return model.ID, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "language", "date", "title"}),
	}).Create(&model).Error
	return model.ID, err
}

// GetTranscript returns the transcript or ErrNotFound.
func (s *GormStore) GetTranscript(ctx context.Context, id int64) (domain.Transcript, error) {
	var model TranscriptModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Transcript{}, ErrNotFound
		}
		return domain.Transcript{}, err
	}
	return transcriptFromModel(model), nil
}

// ListTranscripts returns all transcripts in insertion order.
func (s *GormStore) ListTranscripts(ctx context.Context) ([]domain.Transcript, error) {
	var models []TranscriptModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Transcript, 0, len(models))
	for _, m := range models {
		res = append(res, transcriptFromModel(m))
	}
	return res, nil
}

// DeleteTranscript removes a transcript. Deleting an absent key is not an error.
func (s *GormStore) DeleteTranscript(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&TranscriptModel{}, "id = ?", id).Error
}

// SaveSession overwrites the current-session slot wholesale.
func (s *GormStore) SaveSession(ctx context.Context, session domain.ChatSession) error {
	raw, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	model := ChatSessionModel{
		Slot:         currentSessionSlot,
		Messages:     raw,
		LastModified: session.LastModified,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"messages", "last_modified"}),
	}).Create(&model).Error
}

// LoadSession returns the current session or ErrNotFound when none exists.
func (s *GormStore) LoadSession(ctx context.Context) (domain.ChatSession, error) {
	var model ChatSessionModel
	if err := s.db.WithContext(ctx).First(&model, "slot = ?", currentSessionSlot).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ChatSession{}, ErrNotFound
		}
		return domain.ChatSession{}, err
	}
	var messages []domain.Message
	if len(model.Messages) > 0 {
		if err := json.Unmarshal(model.Messages, &messages); err != nil {
			return domain.ChatSession{}, fmt.Errorf("decode messages: %w", err)
		}
	}
	return domain.ChatSession{Messages: messages, LastModified: model.LastModified}, nil
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:           d.ID,
		Title:        d.Title,
		Content:      d.Content,
		LastModified: d.LastModified,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:           m.ID,
		Title:        m.Title,
		Content:      m.Content,
		LastModified: m.LastModified,
	}
}

func fileToModel(f domain.StoredFile) FileModel {
	return FileModel{
		ID:         f.ID,
		Name:       f.Name,
		Size:       f.Size,
		MimeType:   f.MimeType,
		UploadDate: f.UploadDate,
		Data:       f.Data,
		Preview:    f.Preview,
		StorageKey: f.StorageKey,
	}
}

func fileFromModel(m FileModel) domain.StoredFile {
	return domain.StoredFile{
		ID:         m.ID,
		Name:       m.Name,
		Size:       m.Size,
		MimeType:   m.MimeType,
		UploadDate: m.UploadDate,
		Data:       m.Data,
		Preview:    m.Preview,
		StorageKey: m.StorageKey,
	}
}

func transcriptToModel(t domain.Transcript) TranscriptModel {
	return TranscriptModel{
		ID:       t.ID,
		Text:     t.Text,
		Language: t.Language,
		Date:     t.Date,
		Title:    t.Title,
	}
}

func transcriptFromModel(m TranscriptModel) domain.Transcript {
	return domain.Transcript{
		ID:       m.ID,
		Text:     m.Text,
		Language: m.Language,
		Date:     m.Date,
		Title:    m.Title,
	}
}
