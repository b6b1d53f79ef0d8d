package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is the parsed form of an upload: a header row and data rows. Rows
// may be ragged on input; parsing pads short rows to the header width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// parseTable dispatches on the file extension. CSV is the default for
// anything that is not an Excel workbook.
func parseTable(filename string, data []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return parseXLSX(data)
	default:
		return parseCSV(data)
	}
}

func parseCSV(data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %v", err)
		}
		rows = append(rows, rec)
	}

	return tableFromRows(rows)
}

func parseXLSX(data []byte) (*Table, error) {
	excelFile, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error opening Excel file: %v", err)
	}
	defer excelFile.Close()

	sheets := excelFile.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	// first sheet only, the product analyzes a single table per upload
	rows, err := excelFile.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %q: %v", sheets[0], err)
	}

	return tableFromRows(rows)
}

func tableFromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("file contains no rows")
	}

	header := rows[0]
	if len(header) == 0 {
		return nil, fmt.Errorf("header row is empty")
	}
	columns := make([]string, len(header))
	for i, c := range header {
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = c
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, row)
			row = padded
		}
		data = append(data, row[:len(columns)])
	}

	return &Table{Columns: columns, Rows: data}, nil
}
