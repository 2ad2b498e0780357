package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildHistoryPDF renders a reading history table for one device.
func BuildHistoryPDF(deviceID string, rows []ProcessedMeasurement, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Noise Monitoring History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", deviceID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", len(rows)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Key", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Noise (dB)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Vibration (m/s2)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.CellFormat(30, 6, row.ID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, row.Fecha, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", row.Noise), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", row.Vibration), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, row.Status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a reading history workbook for one device.
func BuildHistoryXLSX(deviceID string, rows []ProcessedMeasurement, generated time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	readingsSheet := "readings"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Noise Monitoring History")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", deviceID)
	_ = f.SetCellValue(summarySheet, "A4", "Readings")
	_ = f.SetCellValue(summarySheet, "B4", len(rows))
	_ = f.SetCellValue(summarySheet, "A5", "Generated")
	_ = f.SetCellValue(summarySheet, "B5", generated.UTC().Format(time.RFC3339))

	_ = f.SetCellValue(readingsSheet, "A1", "Key")
	_ = f.SetCellValue(readingsSheet, "B1", "Time")
	_ = f.SetCellValue(readingsSheet, "C1", "Noise (dB)")
	_ = f.SetCellValue(readingsSheet, "D1", "Vibration (m/s2)")
	_ = f.SetCellValue(readingsSheet, "E1", "Status")
	for i, row := range rows {
		r := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", r), row.ID)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", r), row.Fecha)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", r), row.Noise)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", r), row.Vibration)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("E%d", r), row.Status)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
