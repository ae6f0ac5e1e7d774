package extract

import (
	"strings"

	"github.com/xuri/excelize/v2"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

// extractXLSX reads every sheet cell by cell. Cells join with tabs, rows
// with newlines, sheets with a blank line; empty rows and sheets are
// dropped.
func extractXLSX(path string) (string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", weaverrors.Wrap(weaverrors.KindIO, "open xlsx", err)
	}
	defer func() { _ = wb.Close() }()

	var sheets []string
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name)
		if err != nil {
			return "", weaverrors.Wrap(weaverrors.KindIO, "read xlsx sheet "+name, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sheets = append(sheets, strings.Join(lines, "\n"))
		}
	}

	return strings.Join(sheets, "\n\n"), nil
}
