package api

import (
	"fmt"
	"io"

	"github.com/warp/cafe-booking/generic"
	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"Booking ID", "User ID", "Date", "Slot", "Players",
	"Total", "Status", "Payment", "Refund", "Cancellation Reason", "Created At",
}

// writeBookingsWorkbook renders bookings as a single-sheet XLSX workbook.
func writeBookingsWorkbook(w io.Writer, cafe generic.Cafe, bookings []generic.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := string(cafe.ID)
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &exportColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for i, b := range bookings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			string(b.ID),
			string(b.UserID),
			generic.FormatDate(b.Date),
			b.Slot,
			b.Players,
			b.TotalAmount.Float64(),
			string(b.Status),
			string(b.PaymentStatus),
			b.RefundAmount.Float64(),
			b.CancellationReason,
			stamp(b.CreatedAt),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
