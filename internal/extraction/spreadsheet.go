package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var spreadsheetTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel.sheet.macroenabled.12":                    true,
}

func isSpreadsheet(ext, contentType string) bool {
	return ext == ".xlsx" || ext == ".xlsm" || spreadsheetTypes[contentType]
}

// spreadsheetText renders every sheet of a workbook as pipe rows and returns
// the text together with the number of sheets read.
func spreadsheetText(data []byte) (string, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", 0, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			writePipeRow(&b, row)
		}
	}
	if len(sheets) == 0 {
		return "", 0, fmt.Errorf("workbook has no sheets")
	}
	return b.String(), len(sheets), nil
}
