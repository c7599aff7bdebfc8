// Package extract turns uploaded resumes and job postings into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"resume-ats/internal/shared/storage/object"
)

// Format is a supported input document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
	FormatHTML Format = "html"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZip  = "application/zip"

	// MaxBytes bounds the size of an input document.
	MaxBytes = 5 << 20
)

var (
	ErrUnsupported = errors.New("extract: unsupported format")
	ErrEmpty       = errors.New("extract: no text found")
	ErrTooLarge    = errors.New("extract: document too large")
)

// DetectFormat resolves the format from the declared MIME type, the file
// extension and finally the content itself.
func DetectFormat(mimeType, fileName string, data []byte) Format {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case mimePDF:
		return FormatPDF
	case mimeDOCX:
		return FormatDOCX
	case "text/plain", "text/markdown":
		return FormatText
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	case mimeZip:
		if isDOCX(data) {
			return FormatDOCX
		}
		return ""
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".txt", ".md":
		return FormatText
	case ".html", ".htm":
		return FormatHTML
	}

	switch sniffed := http.DetectContentType(data); {
	case strings.HasPrefix(sniffed, mimePDF):
		return FormatPDF
	case strings.HasPrefix(sniffed, mimeZip) && isDOCX(data):
		return FormatDOCX
	case strings.HasPrefix(sniffed, "text/html"):
		return FormatHTML
	case strings.HasPrefix(sniffed, "text/plain"):
		return FormatText
	}
	return ""
}

// FromBytes extracts and cleans the text of an in-memory document.
func FromBytes(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) > MaxBytes {
		return "", ErrTooLarge
	}
	format := DetectFormat(mimeType, fileName, data)
	var (
		raw string
		err error
	)
	switch format {
	case FormatPDF:
		raw, err = pdfText(data)
	case FormatDOCX:
		raw, err = docxText(data)
	case FormatHTML:
		raw, err = HTMLText(bytes.NewReader(data))
	case FormatText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupported)
		}
		raw = string(data)
	default:
		return "", fmt.Errorf("%w: mime=%q file=%q", ErrUnsupported, mimeType, fileName)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	text := CleanText(raw)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// FromStore extracts a stored document and writes the cleaned text next to
// it under ExtractedKey(key).
func FromStore(ctx context.Context, store object.Store, key, mimeType, fileName string) (string, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("extract key=%s: %w", key, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("extract key=%s: read: %w", key, err)
	}
	text, err := FromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return "", fmt.Errorf("extract key=%s: %w", key, err)
	}
	if _, err := store.PutKey(ctx, ExtractedKey(key), "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("extract key=%s: save text: %w", key, err)
	}
	return text, nil
}

// StoredText returns the extracted text saved next to a stored document,
// extracting the document again when no saved copy can be read.
func StoredText(ctx context.Context, store object.Store, key, mimeType, fileName string) (string, error) {
	if rc, err := store.Open(ctx, ExtractedKey(key)); err == nil {
		raw, rerr := io.ReadAll(io.LimitReader(rc, MaxBytes+1))
		rc.Close()
		if text := strings.TrimSpace(string(raw)); rerr == nil && text != "" {
			return text, nil
		}
	}
	return FromStore(ctx, store, key, mimeType, fileName)
}

// ExtractedKey names the derived text object of a stored document.
func ExtractedKey(key string) string {
	return key + ".extracted.txt"
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer doc.Close()
	return wordXMLText(doc.Editable().GetContent())
}
