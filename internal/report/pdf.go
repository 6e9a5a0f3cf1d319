package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"study-planner/internal/service"
)

const PDFContentType = "application/pdf"

// The core fonts only cover Latin-1, so the document is labelled in English.
const pdfFont = "Helvetica"

// PDF renders an overview as a one-page A4 document.
func PDF(ov service.Overview, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Study statistics", false)
	pdf.SetAuthor("Study Planner", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 18)
	pdf.CellFormat(0, 10, "Study statistics", "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "", 11)
	pdf.CellFormat(0, 7, "Generated "+generatedAt.Format("02.01.2006 15:04"), "", 1, "C", false, 0, "")
	hr(pdf)

	sectionTitle(pdf, "Summary")
	kvLine(pdf, "Total tasks", fmt.Sprintf("%d", ov.TotalTasks))
	kvLine(pdf, "Done tasks", fmt.Sprintf("%d", ov.TotalDone))
	kvLine(pdf, "Completion, last 7 days", fmt.Sprintf("%d%%", ov.Completion))
	kvLine(pdf, "Streak", fmt.Sprintf("%d days", ov.Streak))
	pdf.Ln(2)
	hr(pdf)

	sectionTitle(pdf, "Daily activity")
	pdf.SetFont(pdfFont, "B", 11)
	pdf.SetFillColor(221, 235, 247)
	pdf.CellFormat(60, 7, "Date", "1", 0, "L", true, 0, "")
	pdf.CellFormat(55, 7, "Completed tasks", "1", 0, "R", true, 0, "")
	pdf.CellFormat(55, 7, "Minutes", "1", 1, "R", true, 0, "")
	pdf.SetFont(pdfFont, "", 11)
	for _, day := range ov.Daily {
		pdf.CellFormat(60, 7, day.Date, "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 7, fmt.Sprintf("%d", day.CompletedCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(55, 7, fmt.Sprintf("%d", day.CompletedMinutes), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(pdfFont, "B", 13)
	pdf.CellFormat(0, 8, s, "", 1, "L", false, 0, "")
}

func kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(pdfFont, "B", 11)
	pdf.CellFormat(60, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 2
	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(20, y, 190, y)
	pdf.Ln(4)
}
