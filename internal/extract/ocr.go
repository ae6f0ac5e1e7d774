package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

// OCREngine recognizes text in a raster image (PNG or JPEG bytes).
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// TesseractConfig configures the tesseract-based engine.
type TesseractConfig struct {
	// Path is the tesseract binary (empty = "tesseract" from PATH).
	Path string

	// Languages is the tesseract language spec, e.g. "rus+eng".
	Languages string

	// FallbackLanguage is retried alone when Languages fails, which
	// happens when a language pack is not installed.
	FallbackLanguage string

	// Timeout bounds one invocation (0 = 2m).
	Timeout time.Duration
}

// TesseractEngine shells out to the tesseract CLI, reading the image from
// stdin and the recognized text from stdout.
type TesseractEngine struct {
	path     string
	langs    string
	fallback string
	timeout  time.Duration
}

var _ OCREngine = (*TesseractEngine)(nil)

// NewTesseract creates the engine. The binary is not probed here; a
// missing binary surfaces as an OCR error on first use.
func NewTesseract(cfg TesseractConfig) *TesseractEngine {
	path := cfg.Path
	if path == "" {
		path = "tesseract"
	}
	langs := cfg.Languages
	if langs == "" {
		langs = "eng"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &TesseractEngine{
		path:     path,
		langs:    langs,
		fallback: cfg.FallbackLanguage,
		timeout:  timeout,
	}
}

// Recognize runs tesseract over the image. When the configured language
// set fails and a distinct fallback language is set, it retries with the
// fallback before giving up.
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	text, err := t.run(ctx, image, t.langs)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", weaverrors.OCRError("ocr canceled", ctx.Err())
	}
	if t.fallback == "" || t.fallback == t.langs {
		return "", weaverrors.OCRError("tesseract failed", err)
	}

	text, ferr := t.run(ctx, image, t.fallback)
	if ferr != nil {
		// Report the original failure; the fallback attempt was secondary.
		return "", weaverrors.OCRError("tesseract failed", err)
	}
	return text, nil
}

func (t *TesseractEngine) run(ctx context.Context, image []byte, langs string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// "stdin"/"stdout" are tesseract's literal markers for pipe IO.
	cmd := exec.CommandContext(ctx, t.path, "stdin", "stdout", "-l", langs)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", &exitError{cause: err, stderr: msg}
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// exitError carries tesseract's stderr alongside the exec error.
type exitError struct {
	cause  error
	stderr string
}

func (e *exitError) Error() string { return e.cause.Error() + ": " + e.stderr }
func (e *exitError) Unwrap() error { return e.cause }

// NoopOCR is used when OCR is disabled: every image recognizes to empty
// text, so image-only content is simply skipped.
type NoopOCR struct{}

var _ OCREngine = NoopOCR{}

// Recognize always returns empty text.
func (NoopOCR) Recognize(context.Context, []byte) (string, error) { return "", nil }
