package extract

import (
	"os"
	"strings"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

// extractText reads a plain text or markdown file. Invalid UTF-8 byte
// sequences are dropped rather than failing the file.
func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", weaverrors.Wrap(weaverrors.KindIO, "read text file", err)
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(data), "")), nil
}
