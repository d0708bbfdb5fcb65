// Package document extracts normalized text from contract PDFs.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/raphaelgruber/contractflow/internal/models"
	"golang.org/x/text/unicode/norm"
)

// ErrDocumentProcessing is wrapped into every ingestion failure.
var ErrDocumentProcessing = errors.New("document processing failed")

var (
	controlSpaceRe = regexp.MustCompile(`[\t\r\f\v]+`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
	spaceRunRe     = regexp.MustCompile(` {2,}`)
)

// Processor turns PDF files into DocumentText.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a document processor.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger}
}

// ExtractDocumentText reads the PDF at path and returns its normalized text.
// Missing files, unreadable PDFs and PDFs without text fail with
// ErrDocumentProcessing.
func (p *Processor) ExtractDocumentText(ctx context.Context, path string, meta models.DocumentMetadata) (models.DocumentText, error) {
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return models.DocumentText{}, fmt.Errorf("%w: file not found: %s", ErrDocumentProcessing, path)
	}
	if err := ctx.Err(); err != nil {
		return models.DocumentText{}, err
	}

	raw, err := PDFText(path)
	if err != nil {
		return models.DocumentText{}, err
	}

	text := NormalizeText(raw)
	if text == "" {
		return models.DocumentText{}, fmt.Errorf("%w: PDF did not contain extractable text", ErrDocumentProcessing)
	}

	if meta.Filename == "" {
		meta.Filename = filepath.Base(path)
	}
	meta.SourceFile = path
	meta.ExtractionMS = time.Since(start).Milliseconds()

	p.logger.Debug("document text extracted", "file_path", path, "chars", len(text), "duration_ms", meta.ExtractionMS)
	return models.DocumentText{Text: text, Metadata: meta}, nil
}

// PDFText returns the plain text of every page joined by newlines.
func PDFText(path string) (text string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: invalid or corrupted PDF file: %v", ErrDocumentProcessing, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: invalid or corrupted PDF file: %w", ErrDocumentProcessing, err)
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: read page %d: %w", ErrDocumentProcessing, i, err)
		}
		pages = append(pages, content)
	}

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// NormalizeText applies NFKC, turns control whitespace into spaces,
// limits blank lines to one and collapses space runs.
func NormalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = controlSpaceRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
