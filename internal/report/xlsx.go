package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"study-planner/internal/service"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dailySheet   = "Daily"
	summarySheet = "Summary"
)

// XLSX renders an overview as a workbook with a per-day sheet and a totals
// sheet.
func XLSX(ov service.Overview, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dailySheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	header := []interface{}{"Date", "Completed tasks", "Completed minutes"}
	if err := f.SetSheetRow(dailySheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetCellStyle(dailySheet, "A1", "C1", headerStyle); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	for i, day := range ov.Daily {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{day.Date, day.CompletedCount, day.CompletedMinutes}
		if err := f.SetSheetRow(dailySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
	}
	if err := f.SetColWidth(dailySheet, "A", "C", 20); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	summary := [][]interface{}{
		{"Generated at", generatedAt.Format(time.RFC3339)},
		{"Total tasks", ov.TotalTasks},
		{"Done tasks", ov.TotalDone},
		{"Completion, last 7 days (%)", ov.Completion},
		{"Streak (days)", ov.Streak},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summary)), headerStyle); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "B", 30); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
