package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"uxcellence/models"
)

const (
	FormatCSV = "csv"
	FormatTSV = "tsv"
	FormatPDF = "pdf"
)

var exportHeader = []string{"#", "Team Name", "Question", "Marks", "Reason"}

// pdfColumns are the column widths in mm for an A4 portrait page.
var pdfColumns = []float64{10, 40, 85, 18, 37}

const pdfLineHeight = 6

// ExportRound writes one row per team of the round in state order.
func ExportRound(w io.Writer, state *models.State, round int, format string) error {
	switch format {
	case FormatCSV, "":
		return writeDelimited(w, exportRows(state, round), ',')
	case FormatTSV:
		return writeDelimited(w, exportRows(state, round), '\t')
	case FormatPDF:
		return writePDF(w, roundTitle(state, round), exportRows(state, round))
	default:
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("unsupported export format %q", format)}
	}
}

func exportRows(state *models.State, round int) [][]string {
	var rows [][]string
	for i, team := range state.TeamsInRound(round) {
		question := "Not assigned"
		if team.AssignedQuestionID != nil {
			if q, ok := state.FindQuestion(*team.AssignedQuestionID); ok {
				question = q.Text
			}
		}
		marks := "N/A"
		if team.Marks != nil {
			marks = strconv.Itoa(*team.Marks)
		}
		reason := team.Reason
		if reason == "" {
			reason = "-"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), team.Name, question, marks, reason})
	}
	return rows
}

func roundTitle(state *models.State, round int) string {
	if r, ok := state.FindRound(round); ok && r.Name != "" {
		return fmt.Sprintf("Round %d: %s", round, r.Name)
	}
	return fmt.Sprintf("Round %d", round)
}

func writeDelimited(w io.Writer, rows [][]string, comma rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = comma
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writePDF(w io.Writer, title string, rows [][]string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range exportHeader {
		pdf.CellFormat(pdfColumns[i], pdfLineHeight+1, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	_, pageHeight := pdf.GetPageSize()
	left, _, _, bottom := pdf.GetMargins()
	for _, row := range rows {
		lines := make([][]string, len(row))
		height := float64(pdfLineHeight)
		for i, cell := range row {
			for _, l := range pdf.SplitLines([]byte(tr(cell)), pdfColumns[i]-2) {
				lines[i] = append(lines[i], string(l))
			}
			if h := float64(len(lines[i]) * pdfLineHeight); h > height {
				height = h
			}
		}
		if pdf.GetY()+height > pageHeight-bottom {
			pdf.AddPage()
		}

		x, y := pdf.GetXY()
		for i := range row {
			pdf.Rect(x, y, pdfColumns[i], height, "D")
			for n, l := range lines[i] {
				pdf.SetXY(x+1, y+float64(n*pdfLineHeight))
				pdf.CellFormat(pdfColumns[i]-2, pdfLineHeight, l, "", 0, "L", false, 0, "")
			}
			x += pdfColumns[i]
		}
		pdf.SetXY(left, y+height)
	}

	return pdf.Output(w)
}

func ExportContentType(format string) string {
	switch format {
	case FormatTSV:
		return "text/tab-separated-values"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}
