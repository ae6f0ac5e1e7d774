package extract

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

// extractImage validates the image header and hands the raw bytes to OCR.
// A valid image with no recognizable text yields empty text, not an error.
func (e *Extractor) extractImage(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", weaverrors.Wrap(weaverrors.KindIO, "read image", err)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", weaverrors.Wrap(weaverrors.KindValidation, "decode image", err)
	}

	text, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
