// Package extract turns uploaded registration documents into plain text for
// similarity scoring and identifier extraction. Extraction never fails from
// the caller's point of view: anything unreadable yields an empty string.
package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/cache"
)

// Extractor returns the text content of a stored document.
type Extractor interface {
	ExtractText(ctx context.Context, path, mimeType string) string
}

// Kind is the detected document format.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindDOCX    Kind = "docx"
	KindText    Kind = "text"
	KindUnknown Kind = "unknown"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// FileExtractor reads documents from the local filesystem.
type FileExtractor struct {
	cfg    *Config
	ocr    OCR
	cache  cache.TextCache
	logger *slog.Logger
}

// NewFileExtractor creates a FileExtractor. ocr and textCache may be nil.
func NewFileExtractor(cfg *Config, ocr OCR, textCache cache.TextCache, logger *slog.Logger) *FileExtractor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if ocr == nil {
		ocr = NopOCR{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileExtractor{cfg: cfg, ocr: ocr, cache: textCache, logger: logger}
}

// ExtractText implements Extractor.
func (e *FileExtractor) ExtractText(ctx context.Context, path, mimeType string) string {
	info, err := os.Stat(path)
	if err != nil {
		e.logger.Warn("document not readable", "path", path, "error", err)
		return ""
	}
	if e.cfg.MaxFileSize > 0 && info.Size() > e.cfg.MaxFileSize {
		e.logger.Warn("document too large for extraction", "path", path, "size", info.Size())
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("document not readable", "path", path, "error", err)
		return ""
	}

	kind := DetectKind(path, mimeType, data)
	if kind == KindUnknown {
		e.logger.Warn("unsupported document type", "path", path, "mimeType", mimeType)
		return ""
	}

	key := cacheKey(kind, data)
	if e.cache != nil {
		if text, ok := e.cache.Get(key); ok {
			return text
		}
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	text, err := e.extract(ctx, kind, mimeType, data)
	if err != nil {
		e.logger.Warn("text extraction failed", "path", path, "kind", kind, "error", err)
		return ""
	}
	text = collapseWhitespace(text)
	if e.cache != nil {
		e.cache.Set(key, text)
	}
	return text
}

type result struct {
	text string
	err  error
}

// extract runs the format handler off the calling goroutine so a slow parser
// cannot outlive ctx.
func (e *FileExtractor) extract(ctx context.Context, kind Kind, mimeType string, data []byte) (string, error) {
	ch := make(chan result, 1)
	go func() {
		text, err := e.extractKind(ctx, kind, mimeType, data)
		ch <- result{text, err}
	}()
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("extract %s: %w", kind, ctx.Err())
	case r := <-ch:
		return r.text, r.err
	}
}

func (e *FileExtractor) extractKind(ctx context.Context, kind Kind, mimeType string, data []byte) (string, error) {
	switch kind {
	case KindPDF:
		text, err := extractPDF(data)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil {
			e.logger.Debug("native pdf text unavailable, trying ocr", "error", err)
		}
		return e.ocr.PDFText(ctx, data)
	case KindImage:
		if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/" + imageSubtype(data)
		}
		return e.ocr.ImageText(ctx, data, mimeType)
	case KindDOCX:
		return extractDOCX(data)
	case KindText:
		return string(data), nil
	}
	return "", fmt.Errorf("unsupported kind %s", kind)
}

// DetectKind sniffs magic bytes first and falls back to the declared MIME
// type and file extension.
func DetectKind(path, mimeType string, data []byte) Kind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return KindPDF
	case isPNG(data) || isJPEG(data):
		return KindImage
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		if mt == mimeDOCX || ext == ".docx" || isDOCX(data) {
			return KindDOCX
		}
		return KindUnknown
	}

	switch {
	case mt == mimePDF || ext == ".pdf":
		// Claims to be a PDF without the header; let the parser and OCR decide.
		return KindPDF
	case mt == "image/jpeg" || mt == "image/jpg" || mt == "image/png" ||
		ext == ".jpg" || ext == ".jpeg" || ext == ".png":
		return KindImage
	case mt == "text/plain" || ext == ".txt":
		return KindText
	}
	return KindUnknown
}

func isPNG(b []byte) bool  { return bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) }
func isJPEG(b []byte) bool { return bytes.HasPrefix(b, []byte{0xFF, 0xD8, 0xFF}) }

func imageSubtype(b []byte) string {
	if isPNG(b) {
		return "png"
	}
	return "jpeg"
}

func cacheKey(kind Kind, data []byte) string {
	sum := sha256.Sum256(data)
	return string(kind) + ":" + hex.EncodeToString(sum[:])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
