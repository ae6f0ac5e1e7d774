// Package extract turns supported files into plain text.
//
// One extractor per format: plain text and markdown are read directly,
// PDFs use their text layer with a per-page OCR fallback for scanned
// pages, DOCX and XLSX are unpacked, and images go straight to OCR.
// Extraction yielding empty text is not an error; such files are counted
// as skipped by the indexer.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

const (
	// DefaultMinPageTextLen is the threshold below which a PDF page's text
	// layer is considered empty and OCR is attempted instead.
	DefaultMinPageTextLen = 20

	// DefaultPDFZoom is the rasterization scale for OCR (1.0 = 72 dpi).
	DefaultPDFZoom = 2.0

	pageSeparator = "\n\n"
)

// Config configures an Extractor.
type Config struct {
	// OCR recognizes text in images and rasterized PDF pages. Nil
	// disables OCR (NoopOCR).
	OCR OCREngine

	// MinPageTextLen is the PDF text-layer threshold (0 = default).
	MinPageTextLen int

	// PDFZoom is the rasterization scale for PDF OCR (0 = default).
	PDFZoom float64

	// RasterizerPath is the pdftoppm-compatible binary used to render PDF
	// pages for OCR (empty = "pdftoppm" from PATH).
	RasterizerPath string
}

// Extractor dispatches files to format-specific extraction by extension.
type Extractor struct {
	ocr            OCREngine
	minPageTextLen int
	pdfZoom        float64
	rasterizer     string
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	ocr := cfg.OCR
	if ocr == nil {
		ocr = NoopOCR{}
	}
	minLen := cfg.MinPageTextLen
	if minLen <= 0 {
		minLen = DefaultMinPageTextLen
	}
	zoom := cfg.PDFZoom
	if zoom <= 0 {
		zoom = DefaultPDFZoom
	}
	rasterizer := cfg.RasterizerPath
	if rasterizer == "" {
		rasterizer = "pdftoppm"
	}
	return &Extractor{
		ocr:            ocr,
		minPageTextLen: minLen,
		pdfZoom:        zoom,
		rasterizer:     rasterizer,
	}
}

// Extract returns the plain text of the file. Empty text with a nil error
// means the file holds no extractable content.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return extractText(path)
	case ".pdf":
		return e.extractPDF(ctx, path)
	case ".docx":
		return extractDOCX(path)
	case ".xlsx":
		return extractXLSX(path)
	case ".png", ".jpg", ".jpeg":
		return e.extractImage(ctx, path)
	default:
		return "", weaverrors.ValidationError(fmt.Sprintf("unsupported file type: %s", filepath.Ext(path)))
	}
}
