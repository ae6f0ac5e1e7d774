package extract

import (
	"archive/zip"
	"encoding/xml"
	"strings"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

// extractDOCX reads paragraphs from the word/document.xml part of the
// OOXML package. Runs within a paragraph concatenate; paragraphs become
// lines.
func extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", weaverrors.Wrap(weaverrors.KindIO, "open docx", err)
	}
	defer func() { _ = archive.Close() }()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", weaverrors.ValidationError("docx has no word/document.xml part")
	}

	r, err := doc.Open()
	if err != nil {
		return "", weaverrors.Wrap(weaverrors.KindIO, "open docx document part", err)
	}
	defer func() { _ = r.Close() }()

	var (
		paragraphs []string
		current    strings.Builder
		decoder    = xml.NewDecoder(r)
		inText     bool
	)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(current.String()); line != "" {
					paragraphs = append(paragraphs, line)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if line := strings.TrimSpace(current.String()); line != "" {
		paragraphs = append(paragraphs, line)
	}

	return strings.Join(paragraphs, "\n"), nil
}
