package vault

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"writebox/internal/util"
)

// previewLength caps the text excerpt stored alongside a file record.
const previewLength = 200

// previewPages bounds how much of a PDF is read for the excerpt.
const previewPages = 3

// buildPreview extracts a short text excerpt for previewable types. Binary
// formats without a text body get no preview.
func buildPreview(mimeType string, data []byte) string {
	switch {
	case isTextual(mimeType):
		return util.Preview(string(data), previewLength)
	case mimeType == "application/pdf":
		text, err := pdfText(data, previewPages)
		if err != nil {
			return ""
		}
		return util.Preview(text, previewLength)
	default:
		return ""
	}
}

// pdfText pulls plain text from the first maxPages pages.
func pdfText(data []byte, maxPages int) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	pages := reader.NumPage()
	if pages > maxPages {
		pages = maxPages
	}
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}
