package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotriangle/domain/triangle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDataReader_CSV(t *testing.T) {
	path := writeFile(t, "claims.csv", "\ufeffaccident_period, dev_month,paid\n2020,12,100\n2020,24,150\n,,\n2021,12\n")

	table, err := NewDataReader(path, DefaultReaderConfig(), nil).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, path, table.Source)
	assert.Equal(t, []string{"accident_period", "dev_month", "paid"}, table.Headers)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "150", table.Rows[1]["paid"])
	assert.Equal(t, "", table.Rows[2]["paid"])
}

func TestDataReader_XLSX(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("Paid")
	require.NoError(t, err)

	rows := [][]interface{}{
		{"accident_period", "dev_month", "paid"},
		{"2020", 12, 100},
		{"2020", 24, 150.5},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Paid", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "claims.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := NewDataReader(path, ReaderConfig{Sheet: "Paid"}, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"accident_period", "dev_month", "paid"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "12", table.Rows[0]["dev_month"])
	assert.Equal(t, "150.5", table.Rows[1]["paid"])

	// First sheet is the empty default one
	_, err = NewDataReader(path, ReaderConfig{Sheet: "Missing"}, nil).Load(context.Background())
	assert.True(t, errors.Is(err, triangle.ErrDataSource))
}

func TestDataReader_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.csv")

	_, err := NewDataReader(path, DefaultReaderConfig(), nil).Load(context.Background())
	require.Error(t, err)

	var sourceErr *triangle.DataSourceError
	require.True(t, errors.As(err, &sourceErr))
	assert.Equal(t, path, sourceErr.Source)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDataReader_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	_, err := NewDataReader(path, DefaultReaderConfig(), nil).Load(context.Background())
	assert.True(t, errors.Is(err, triangle.ErrDataSource))
}

func TestReadTable_HeaderOnly(t *testing.T) {
	table, err := ReadTable(strings.NewReader("accident_period,dev_month,paid\n"), "upload.csv", "", DefaultReaderConfig(), nil)
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Equal(t, "upload.csv", table.Source)
}

func TestReadTable_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDataReader("whatever.csv", DefaultReaderConfig(), nil).Load(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
