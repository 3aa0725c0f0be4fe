package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readBack(t *testing.T, data []byte) (string, [][]string) {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 1)
	rows, err := f.GetRows(sheets[0])
	require.NoError(t, err)
	return sheets[0], rows
}

func TestXLSXWriter_WriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := NewXLSXWriter().WriteTable(&buf, "products",
		[]string{"id", "name", "tags"},
		[][]string{
			{"1", "Mug", `["kitchen"]`},
			{"2", "Tee"},
		})
	require.NoError(t, err)

	sheet, rows := readBack(t, buf.Bytes())
	assert.Equal(t, "products", sheet)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name", "tags"}, rows[0])
	assert.Equal(t, []string{"1", "Mug", `["kitchen"]`}, rows[1])
	assert.Equal(t, []string{"2", "Tee"}, rows[2])
}

func TestXLSXWriter_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter().WriteTable(&buf, "orders", []string{"id"}, nil))

	_, rows := readBack(t, buf.Bytes())
	assert.Equal(t, [][]string{{"id"}}, rows)
}

func TestXLSXWriter_LongSheetName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter().WriteTable(&buf, strings.Repeat("s", 40), []string{"a"}, nil))

	sheet, _ := readBack(t, buf.Bytes())
	assert.Len(t, sheet, maxSheetName)
}

func TestXLSXWriter_RequiresSheetName(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, NewXLSXWriter().WriteTable(&buf, "", []string{"a"}, nil))
}
