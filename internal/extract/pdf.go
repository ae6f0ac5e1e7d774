package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

// extractPDF walks the document page by page. Each page's text layer is
// used when it carries enough text; otherwise the page is rasterized and
// sent to OCR. Pages that end up empty either way are dropped so the
// output carries no blank separators.
func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", weaverrors.Wrap(weaverrors.KindIO, "open pdf", err)
	}
	defer func() { _ = f.Close() }()

	var pages []string
	for num := 1; num <= reader.NumPage(); num++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text := e.pdfPageText(reader, num)
		if len(strings.TrimSpace(text)) < e.minPageTextLen {
			ocrText, err := e.ocrPDFPage(ctx, path, num)
			if err != nil {
				// A failed page degrades to its (possibly short) text
				// layer; one scanned page must not lose the document.
				slog.Warn("pdf page ocr failed",
					slog.String("path", path),
					slog.Int("page", num),
					slog.String("error", err.Error()))
			} else if len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(text)) {
				text = ocrText
			}
		}

		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, pageSeparator), nil
}

// pdfPageText reads the text layer of one page. Malformed pages yield
// empty text instead of an error.
func (e *Extractor) pdfPageText(reader *pdf.Reader, num int) (text string) {
	defer func() {
		// The pdf library panics on some malformed content streams.
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

// ocrPDFPage rasterizes one page via the external renderer and runs OCR on
// the resulting PNG.
func (e *Extractor) ocrPDFPage(ctx context.Context, path string, num int) (string, error) {
	image, err := e.rasterizePage(ctx, path, num)
	if err != nil {
		return "", err
	}
	return e.ocr.Recognize(ctx, image)
}

// rasterizePage renders one page to PNG bytes using a pdftoppm-compatible
// command. The zoom factor scales the default 72 dpi.
func (e *Extractor) rasterizePage(ctx context.Context, path string, num int) ([]byte, error) {
	dpi := int(72 * e.pdfZoom)
	page := strconv.Itoa(num)

	cmd := exec.CommandContext(ctx, e.rasterizer,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", page,
		"-l", page,
		path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("rasterize page %d: %w: %s", num, err, msg)
		}
		return nil, fmt.Errorf("rasterize page %d: %w", num, err)
	}
	return stdout.Bytes(), nil
}
