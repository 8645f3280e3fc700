package extraction

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultMaxUploadBytes is the upload size limit when none is configured.
const DefaultMaxUploadBytes = 10 << 20

// Document is an upload decoded into text.
type Document struct {
	Text        string
	Filename    string
	ContentType string
	PageCount   int
	IsScanned   bool
	IsImage     bool
	// LabLines counts PDF text-layer lines that look like measurements.
	LabLines int
	Warnings []string
}

// Decoder turns uploaded bytes into text.
type Decoder struct {
	recognizer TextRecognizer
	maxBytes   int64
	logger     *zap.Logger
}

// NewDecoder creates a decoder. A nil recognizer means images decode to
// empty text with a warning. With a recognizer configured, a failure to read
// an upload whose only text source is OCR fails the decode.
func NewDecoder(recognizer TextRecognizer, maxBytes int64, logger *zap.Logger) *Decoder {
	if recognizer == nil {
		recognizer = NoopRecognizer{}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{recognizer: recognizer, maxBytes: maxBytes, logger: logger}
}

type healthChecker interface {
	HealthCheck(ctx context.Context) (*RecognizerHealth, error)
}

// CheckRecognizer reports whether the configured recognizer is ready to read
// scans. Recognizers without a health endpoint are assumed ready.
func (d *Decoder) CheckRecognizer(ctx context.Context) error {
	if _, ok := d.recognizer.(NoopRecognizer); ok {
		return ErrNoRecognizer
	}
	hc, ok := d.recognizer.(healthChecker)
	if !ok {
		return nil
	}

	health, err := hc.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("text recognizer unhealthy: %s", health.Status)
	}
	if !health.ModelLoaded {
		return fmt.Errorf("text recognizer model not loaded")
	}
	return nil
}

// MaxBytes returns the configured upload limit.
func (d *Decoder) MaxBytes() int64 {
	return d.maxBytes
}

// Decode converts an upload into a Document. Only decoding can fail;
// whatever text comes out is handed to extraction as-is.
func (d *Decoder) Decode(ctx context.Context, data []byte, filename, contentType string) (*Document, error) {
	if len(data) == 0 {
		return nil, &DocumentError{Code: ErrEmptyDocument, Message: "document is empty", Filename: filename}
	}
	if int64(len(data)) > d.maxBytes {
		return nil, &DocumentError{
			Code:     ErrDocumentTooLarge,
			Message:  fmt.Sprintf("document is %d bytes, limit is %d", len(data), d.maxBytes),
			Filename: filename,
		}
	}

	doc := &Document{Filename: filename, ContentType: contentType, PageCount: 1}
	ext := strings.ToLower(filepath.Ext(filename))
	ct := strings.ToLower(contentType)

	switch {
	case isPDF(data) || ext == ".pdf" || ct == "application/pdf":
		if err := d.decodePDF(ctx, doc, data); err != nil {
			return nil, err
		}
	case isSpreadsheet(ext, ct):
		text, sheets, err := spreadsheetText(data)
		if err != nil {
			return nil, &DocumentError{Code: ErrInvalidDocument, Message: "unreadable spreadsheet", Filename: filename, Cause: err}
		}
		doc.Text = text
		doc.PageCount = sheets
	case isImage(filename, contentType):
		doc.IsImage = true
		text, err := d.recognize(ctx, doc, data, true)
		if err != nil {
			return nil, err
		}
		doc.Text = text
	case ext == ".csv" || ct == "text/csv":
		text, err := csvText(data)
		if err != nil {
			return nil, &DocumentError{Code: ErrInvalidDocument, Message: "unreadable CSV", Filename: filename, Cause: err}
		}
		doc.Text = text
	default:
		if !utf8.Valid(data) {
			return nil, &DocumentError{
				Code:     ErrUnsupportedFormat,
				Message:  fmt.Sprintf("unsupported document type %q", contentType),
				Filename: filename,
			}
		}
		doc.Text = strings.TrimPrefix(string(data), "\ufeff")
	}

	d.logger.Debug("document decoded",
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
		zap.Int("chars", len(doc.Text)),
		zap.Int("pages", doc.PageCount),
		zap.Bool("scanned", doc.IsScanned),
		zap.Bool("image", doc.IsImage),
		zap.Int("lab_lines", doc.LabLines))
	return doc, nil
}

func (d *Decoder) decodePDF(ctx context.Context, doc *Document, data []byte) error {
	analysis := AnalyzePDF(data, d.logger)
	if analysis.Error != nil && !isPDF(data) {
		return &DocumentError{Code: ErrInvalidDocument, Message: "not a readable PDF", Filename: doc.Filename, Cause: analysis.Error}
	}

	doc.PageCount = analysis.PageCount
	doc.Text = analysis.ExtractedText
	doc.IsScanned = analysis.IsScanned
	doc.LabLines = analysis.EstimatedLabLines
	if analysis.Error != nil {
		doc.Warnings = append(doc.Warnings, "PDF text layer could not be read")
	}
	if doc.IsScanned {
		text, err := d.recognize(ctx, doc, data, strings.TrimSpace(doc.Text) == "")
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) != "" {
			doc.Text = text
		}
	}
	return nil
}

// recognize runs OCR. A missing recognizer degrades to empty text with a
// warning. Other failures are returned when the upload has no other text
// source (required) and become warnings otherwise.
func (d *Decoder) recognize(ctx context.Context, doc *Document, data []byte, required bool) (string, error) {
	result, err := d.recognizer.Recognize(ctx, data, doc.Filename)
	switch {
	case errors.Is(err, ErrNoRecognizer):
		doc.Warnings = append(doc.Warnings, "no text recognizer configured; scanned content was not read")
		return "", nil
	case err != nil:
		d.logger.Warn("text recognizer failed",
			zap.String("filename", doc.Filename),
			zap.Bool("required", required),
			zap.Error(err))
		if required {
			return "", recognizerError(doc.Filename, err)
		}
		doc.Warnings = append(doc.Warnings, "text recognition failed; scanned content was not read")
		return "", nil
	}
	doc.Warnings = append(doc.Warnings, result.Warnings...)
	if result.PageCount > 0 {
		doc.PageCount = result.PageCount
	}
	return result.Text, nil
}

// recognizerError keeps a recognizer's own DocumentError and wraps anything
// else. Cancellation and deadlines count as the service being unavailable.
func recognizerError(filename string, err error) *DocumentError {
	if docErr, ok := AsDocumentError(err); ok {
		return docErr
	}
	code := ErrRecognizerFailed
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = ErrRecognizerTransient
	}
	return &DocumentError{
		Code:      code,
		Message:   "text recognition failed",
		Filename:  filename,
		Retryable: code == ErrRecognizerTransient,
		Cause:     err,
	}
}

// csvText renders CSV rows as pipe rows so they parse as a table.
func csvText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read CSV: %w", err)
		}
		writePipeRow(&b, record)
	}
	return b.String(), nil
}

// writePipeRow writes cells as "| a | b |". Trailing empty cells are dropped
// and empty rows are skipped.
func writePipeRow(b *strings.Builder, cells []string) {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	if end == 0 {
		return
	}
	b.WriteString("|")
	for _, cell := range cells[:end] {
		b.WriteString(" ")
		b.WriteString(strings.Join(strings.Fields(cell), " "))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
