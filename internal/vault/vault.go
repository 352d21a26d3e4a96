package vault

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"writebox/pkg/ai"
	"writebox/pkg/domain"
	"writebox/pkg/storage"
	"writebox/pkg/store"
)

const (
	// DefaultMaxBytes caps a single upload at 10 MiB.
	DefaultMaxBytes = 10 << 20

	analyzeSystem = "Você é um assistente que analisa arquivos e responde de forma clara e objetiva."
	analyzePrompt = "Analise este arquivo e forneça um resumo do seu conteúdo."
)

// ErrTooLarge is returned when an upload exceeds the configured cap.
var ErrTooLarge = errors.New("vault: file too large")

// Upload is one incoming file.
type Upload struct {
	Name     string
	MimeType string
	Reader   io.Reader
}

// Result pairs an upload with its outcome. A failed file does not abort
// the rest of the batch.
type Result struct {
	File domain.StoredFile
	Err  error
}

// Config wires the vault's dependencies.
type Config struct {
	Store     store.Store
	Blobs     storage.BlobStore
	Generator ai.Generator
	MaxBytes  int64
	Now       func() time.Time
}

// Vault stores uploaded files: raw bytes in the blob backend, metadata and
// an inline data URL in the record store.
type Vault struct {
	store    store.Store
	blobs    storage.BlobStore
	gen      ai.Generator
	maxBytes int64
	now      func() time.Time
	newKey   func() string
}

// New builds a vault. Generator may be nil; Analyze then reports missing
// credentials.
func New(cfg Config) *Vault {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Vault{
		store:    cfg.Store,
		blobs:    cfg.Blobs,
		gen:      cfg.Generator,
		maxBytes: maxBytes,
		now:      now,
		newKey:   uuid.NewString,
	}
}

// UploadBatch stores the files one at a time, in order. Each result
// reports its own error so one bad file does not sink the batch.
func (v *Vault) UploadBatch(ctx context.Context, uploads []Upload) []Result {
	results := make([]Result, 0, len(uploads))
	for _, up := range uploads {
		file, err := v.UploadOne(ctx, up)
		results = append(results, Result{File: file, Err: err})
	}
	return results
}

// UploadOne stores a single file and returns the saved record.
func (v *Vault) UploadOne(ctx context.Context, up Upload) (domain.StoredFile, error) {
	data, err := io.ReadAll(io.LimitReader(up.Reader, v.maxBytes+1))
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("read upload %q: %w", up.Name, err)
	}
	if int64(len(data)) > v.maxBytes {
		return domain.StoredFile{}, fmt.Errorf("%w: %q exceeds %s", ErrTooLarge, up.Name, FormatSize(v.maxBytes))
	}

	mimeType := up.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	key := v.newKey()
	if err := v.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return domain.StoredFile{}, fmt.Errorf("store blob %q: %w", up.Name, err)
	}

	file := domain.StoredFile{
		Name:       up.Name,
		Size:       int64(len(data)),
		MimeType:   mimeType,
		UploadDate: v.now(),
		Data:       dataURL(mimeType, data),
		Preview:    buildPreview(mimeType, data),
		StorageKey: key,
	}
	id, err := v.store.SaveFile(ctx, file)
	if err != nil {
		// The record is authoritative; without it the blob is unreachable.
		_ = v.blobs.Delete(ctx, key)
		return domain.StoredFile{}, fmt.Errorf("save file %q: %w", up.Name, err)
	}
	file.ID = id
	return file, nil
}

// List returns all stored files, most recent upload first.
func (v *Vault) List(ctx context.Context) ([]domain.StoredFile, error) {
	files, err := v.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
		files[i], files[j] = files[j], files[i]
	}
	return files, nil
}

// Get returns a single file record.
func (v *Vault) Get(ctx context.Context, id int64) (domain.StoredFile, error) {
	return v.store.GetFile(ctx, id)
}

// Open returns the file record and a reader over its raw bytes.
func (v *Vault) Open(ctx context.Context, id int64) (domain.StoredFile, io.ReadCloser, error) {
	file, err := v.store.GetFile(ctx, id)
	if err != nil {
		return domain.StoredFile{}, nil, err
	}
	rc, err := v.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return domain.StoredFile{}, nil, fmt.Errorf("open blob for file %d: %w", id, err)
	}
	return file, rc, nil
}

// Delete removes the record and its blob. Unknown ids are a no-op.
func (v *Vault) Delete(ctx context.Context, id int64) error {
	file, err := v.store.GetFile(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if file.StorageKey != "" {
		if err := v.blobs.Delete(ctx, file.StorageKey); err != nil {
			return fmt.Errorf("delete blob for file %d: %w", id, err)
		}
	}
	return v.store.DeleteFile(ctx, id)
}

// Analyze sends the file to the gateway and returns the analysis text. An
// optional question focuses the analysis; otherwise a general summary is
// requested. Text files go inline as plain text, anything else as base64
// data.
func (v *Vault) Analyze(ctx context.Context, id int64, question string) (string, error) {
	file, err := v.store.GetFile(ctx, id)
	if err != nil {
		return "", err
	}

	raw, err := decodeDataURL(file.Data)
	if err != nil {
		return "", fmt.Errorf("decode file %d: %w", id, err)
	}
	return v.AnalyzeBytes(ctx, file.Name, file.MimeType, raw, question)
}

// AnalyzeBytes analyzes content that was never stored, such as an image
// pasted straight into the request.
func (v *Vault) AnalyzeBytes(ctx context.Context, name, mimeType string, data []byte, question string) (string, error) {
	prompt := strings.TrimSpace(question)
	if prompt == "" {
		prompt = analyzePrompt
	}
	if name != "" {
		prompt = fmt.Sprintf("Arquivo: %s (%s)\n\n%s", name, FormatSize(int64(len(data))), prompt)
	}

	parts := []ai.Part{{Text: prompt}}
	if isTextual(mimeType) {
		parts = append(parts, ai.Part{Text: string(data)})
	} else {
		parts = append(parts, ai.Part{InlineData: &ai.Blob{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}

	resp, err := v.gen.Generate(ctx, ai.Request{
		Turns:             []ai.Turn{{Role: "user", Parts: parts}},
		SystemInstruction: analyzeSystem,
		Temperature:       0.4,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// FormatSize renders a byte count the way the vault displays it: whole
// bytes below 1 KB, otherwise one decimal.
func FormatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	}
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDataURL(url string) ([]byte, error) {
	_, encoded, ok := strings.Cut(url, ";base64,")
	if !ok {
		return nil, errors.New("not a base64 data url")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func isTextual(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") ||
		mimeType == "application/json" ||
		mimeType == "application/xml"
}
