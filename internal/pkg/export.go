package pkg

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/phpdave11/gofpdf"

	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/domain"
)

// exportColumn is one column of a grid export.
type exportColumn struct {
	Header string
	Width  float64 // mm, PDF only
	Value  func(g domain.Gem) string
}

var exportColumns = []exportColumn{
	{"ID", 30, func(g domain.Gem) string { return g.ID }},
	{"Stock ID", 24, func(g domain.Gem) string { return g.StockID }},
	{"Shape", 22, func(g domain.Gem) string { return g.Shape }},
	{"Type", 26, func(g domain.Gem) string { return g.StoneType }},
	{"Color", 20, func(g domain.Gem) string { return g.Color }},
	{"Clarity", 18, func(g domain.Gem) string { return g.Clarity }},
	{"Carat", 16, func(g domain.Gem) string { return formatNumber(g.Carat, 2) }},
	{"Origin", 28, func(g domain.Gem) string { return g.Origin }},
	{"Lab", 18, func(g domain.Gem) string { return g.Lab }},
	{"Price", 26, func(g domain.Gem) string { return formatNumber(g.Price, 2) }},
	{"Status", 22, func(g domain.Gem) string { return g.Status }},
}

func formatNumber(f float64, prec int) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// ExportHeaders returns the column headers shared by the CSV and PDF exports.
func ExportHeaders() []string {
	out := make([]string, len(exportColumns))
	for i, col := range exportColumns {
		out[i] = col.Header
	}
	return out
}

// WriteCSV writes gems as CSV with a header row.
func WriteCSV(w io.Writer, gems []domain.Gem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeaders()); err != nil {
		return err
	}
	row := make([]string, len(exportColumns))
	for _, g := range gems {
		for i, col := range exportColumns {
			row[i] = col.Value(g)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes gems as aligned plain-text columns for a terminal.
func WriteTable(w io.Writer, gems []domain.Gem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(ExportHeaders(), "\t")); err != nil {
		return err
	}
	row := make([]string, len(exportColumns))
	for _, g := range gems {
		for i, col := range exportColumns {
			row[i] = col.Value(g)
		}
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WritePDF renders gems as a landscape A4 table. meta only feeds the
// summary line; nothing beyond the given page is fetched.
func WritePDF(w io.Writer, title string, gems []domain.Gem, meta catalog.PaginationMeta) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetAutoPageBreak(false, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Page %d of %d, %d of %d records",
		meta.CurrentPage, max(meta.TotalPages, 1), len(gems), meta.TotalRecords))
	pdf.Ln(9)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range exportColumns {
			pdf.CellFormat(col.Width, 7, col.Header, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, g := range gems {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for _, col := range exportColumns {
			align := "L"
			if col.Header == "Carat" || col.Header == "Price" {
				align = "R"
			}
			pdf.CellFormat(col.Width, 6, col.Value(g), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(gems) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 8, "No records on this page.")
	}

	return pdf.Output(w)
}
