package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gotriangle/domain/triangle"
	"gotriangle/internal"

	"github.com/xuri/excelize/v2"
)

const (
	fileTypeCSV  = "csv"
	fileTypeXLSX = "xlsx"
)

// DataReader handles reading Excel and CSV triangle files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ReaderConfig
	logger   *internal.Logger
}

// NewDataReader creates a reader for a CSV or XLSX file, chosen by extension
func NewDataReader(filePath string, config ReaderConfig, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileTypeFor(filePath),
		config:   config,
		logger:   logger,
	}
}

func fileTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return fileTypeXLSX
	default:
		return fileTypeCSV
	}
}

// Describe returns the file path
func (r *DataReader) Describe() string {
	return r.filePath
}

// Load reads the file into a triangle table
func (r *DataReader) Load(ctx context.Context) (*triangle.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, triangle.NewDataSourceError(r.filePath, err)
	}
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); err != nil {
		return nil, triangle.NewDataSourceError(r.filePath, err)
	}

	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, triangle.NewDataSourceError(r.filePath, err)
	}
	defer f.Close()

	return ReadTable(f, r.filePath, r.fileType, r.config, r.logger)
}

// ReadTable parses CSV or XLSX content from rd. name identifies the source in errors.
func ReadTable(rd io.Reader, name, fileType string, config ReaderConfig, logger *internal.Logger) (*triangle.Table, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if fileType == "" {
		fileType = fileTypeFor(name)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch fileType {
	case fileTypeCSV:
		rows, err = readCSVRows(rd)
	case fileTypeXLSX:
		rows, err = readExcelRows(rd, config.Sheet)
	default:
		err = fmt.Errorf("unsupported file type: %s", fileType)
	}
	if err != nil {
		return nil, triangle.NewDataSourceError(name, err)
	}
	if len(rows) == 0 {
		return nil, triangle.NewDataSourceError(name, fmt.Errorf("%s file has no header row", strings.ToUpper(fileType)))
	}

	table := processRows(rows, name)
	logger.Debug("%s read in %.2fms (%d columns, %d rows)",
		name, float64(time.Since(start).Nanoseconds())/1e6, len(table.Headers), len(table.Rows))
	return table, nil
}

func readCSVRows(rd io.Reader) ([][]string, error) {
	reader := csv.NewReader(rd)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rows, nil
}

func readExcelRows(rd io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// processRows converts raw string rows into a table keyed by trimmed headers
func processRows(rows [][]string, source string) *triangle.Table {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		if i == 0 {
			header = strings.TrimPrefix(header, "\ufeff")
		}
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]triangle.RawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rowData := make(triangle.RawRow, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &triangle.Table{
		Source:  source,
		Headers: headers,
		Rows:    dataRows,
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
