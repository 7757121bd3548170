package reports

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

var sample = Table{
	Title:   "Equipment utilization",
	Columns: []string{"Code", "Name"},
	Rows:    [][]string{{"MIC-01", "顕微鏡"}, {"OSC-01", "Oscilloscope, 2ch"}},
}

func TestWriteCSVUTF8(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteCSV(&b, sample, EncodingUTF8))
	assert.Equal(t, "Code,Name\nMIC-01,顕微鏡\nOSC-01,\"Oscilloscope, 2ch\"\n", b.String())
}

func TestWriteCSVWithBOM(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteCSV(&b, sample, EncodingUTF8BOM))
	assert.True(t, bytes.HasPrefix(b.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, b.String(), "顕微鏡")
}

func TestWriteCSVShiftJIS(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteCSV(&b, sample, EncodingSJIS))
	assert.NotContains(t, b.String(), "顕微鏡")

	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(b.Bytes())
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "MIC-01,顕微鏡")
}

func TestWriteCSVShiftJISReplacesUnsupported(t *testing.T) {
	var b bytes.Buffer
	tbl := Table{Columns: []string{"Remarks"}, Rows: [][]string{{"ok 🙂"}}}
	require.NoError(t, WriteCSV(&b, tbl, EncodingSJIS))
	assert.True(t, bytes.HasPrefix(b.Bytes(), []byte("Remarks\nok ")))
}

func TestWriteCSVUnknownEncoding(t *testing.T) {
	var b bytes.Buffer
	assert.Error(t, WriteCSV(&b, sample, "latin-1"))
}

func TestWritePDF(t *testing.T) {
	tbl := Table{Title: "Borrow history", Columns: []string{"Borrow", "Status", "Remarks"}}
	for i := 0; i < 120; i++ {
		tbl.Rows = append(tbl.Rows, []string{fmt.Sprintf("B%03d", i), "RETURNED",
			"a rather long remark that will not fit inside a single table cell at this width"})
	}

	var b bytes.Buffer
	require.NoError(t, WritePDF(&b, tbl, "2025-08-01 to 2025-08-31", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bytes.HasPrefix(b.Bytes(), []byte("%PDF-")))
}

func TestWritePDFEmpty(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WritePDF(&b, Table{Title: "Deficiencies", Columns: []string{"Deficiency"}}, "", time.Time{}))
	assert.True(t, bytes.HasPrefix(b.Bytes(), []byte("%PDF-")))
}
