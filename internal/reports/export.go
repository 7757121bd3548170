package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// encoderFor maps a CSV encoding name to a text encoding. A nil result means
// plain UTF-8. Runes Shift_JIS cannot represent are replaced rather than
// failing the whole export.
func encoderFor(name string) (*encoding.Encoder, error) {
	switch name {
	case "", EncodingUTF8:
		return nil, nil
	case EncodingUTF8BOM:
		return unicode.UTF8BOM.NewEncoder(), nil
	case EncodingSJIS:
		return encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder()), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// WriteCSV writes the header row followed by every table row.
func WriteCSV(w io.Writer, t Table, enc string) error {
	e, err := encoderFor(enc)
	if err != nil {
		return err
	}

	out := w
	var tw *transform.Writer
	if e != nil {
		tw = transform.NewWriter(w, e)
		out = tw
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

const (
	pdfMargin = 10.0
	pdfRowH   = 6.0
)

// WritePDF renders the table on landscape A4 pages using the core fonts.
func WritePDF(w io.Writer, t Table, subtitle string, at time.Time) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+5)
	pdf.SetTitle(t.Title, true)
	pdf.SetCreationDate(at)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	colW := (pageW - 2*pdfMargin) / float64(max(len(t.Columns), 1))

	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(225, 225, 225)
		for _, c := range t.Columns {
			pdf.CellFormat(colW, pdfRowH+1, fit(pdf, tr(c), colW), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(0, 5, "Page "+strconv.Itoa(pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 9, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, tr(subtitle), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()

	_, pageH := pdf.GetPageSize()
	for _, row := range t.Rows {
		if pdf.GetY()+pdfRowH > pageH-pdfMargin-5 {
			pdf.AddPage()
			header()
		}
		for _, cell := range row {
			pdf.CellFormat(colW, pdfRowH, fit(pdf, tr(cell), colW), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(t.Rows) == 0 {
		pdf.CellFormat(0, pdfRowH, "No data in range.", "1", 1, "C", false, 0, "")
	}

	return pdf.Output(w)
}

// fit truncates s with an ellipsis so it stays inside a cell of width w.
// s is already in the single-byte font encoding, so it is cut by bytes.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	limit := w - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}
