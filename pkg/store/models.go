package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type DocumentModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Title        string `gorm:"not null"`
	Content      string `gorm:"type:text"`
	LastModified time.Time
}

type FileModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"not null"`
	Size       int64  `gorm:"not null"`
	MimeType   string
	UploadDate time.Time
	Data       string `gorm:"type:text"`
	Preview    string `gorm:"type:text"`
	StorageKey string
}

type TranscriptModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Text     string `gorm:"type:text;not null"`
	Language string
	Date     time.Time
	Title    string
}

// ChatSessionModel holds one row per named slot. Only the "current" slot is
// used today.
type ChatSessionModel struct {
	Slot         string         `gorm:"primaryKey"`
	Messages     datatypes.JSON `gorm:"type:jsonb"`
	LastModified time.Time
}
