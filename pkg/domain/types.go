package domain

import "time"

// Role tags one turn of a conversational exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Document is a saved editor document. The key is assigned by the store on
// first save and reused on every later save.
type Document struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"lastModified"`
}

// StoredFile is an uploaded vault file. Records are immutable after
// creation except for deletion.
type StoredFile struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	UploadDate time.Time `json:"uploadDate"`
	Data       string    `json:"data,omitempty"`
	Preview    string    `json:"preview,omitempty"`
	StorageKey string    `json:"-"`
}

// Transcript is an explicit snapshot of the live transcription.
type Transcript struct {
	ID       int64     `json:"id"`
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Date     time.Time `json:"date"`
	Title    string    `json:"title"`
}

// Message is one turn of the chat transcript. Thinking carries the optional
// reasoning trace separately from the visible answer.
type Message struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// ChatSession is the single current chat transcript. It is overwritten
// wholesale on every change, never appended.
type ChatSession struct {
	Messages     []Message `json:"messages"`
	LastModified time.Time `json:"lastModified"`
}
