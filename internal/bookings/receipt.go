package bookings

import (
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"
)

func writeReceipt(w io.Writer, b *Booking) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOOKING RECEIPT")
	pdf.Ln(12)

	event, zone := "-", "-"
	if b.Event != nil {
		event = orDash(b.Event.Title)
	}
	if b.Zone != nil {
		zone = orDash(b.Zone.Name)
	}

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Code       : %s", b.Code),
		fmt.Sprintf("Event      : %s", event),
		fmt.Sprintf("Zone       : %s", zone),
		fmt.Sprintf("Space      : %s", orDash(b.Space)),
		fmt.Sprintf("Date/Time  : %s %s", orDash(b.Date), orDash(b.Time)),
		fmt.Sprintf("Requester  : %s", orDash(b.Requester)),
		fmt.Sprintf("Units      : %d", b.RequestedUnits),
		fmt.Sprintf("Status     : %s", b.Status),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	if notes := strings.TrimSpace(b.Notes); notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, "Notes: "+notes, "", "", false)
	}

	return pdf.Output(w)
}

func receiptFilename(b *Booking) string {
	return fmt.Sprintf("booking-%s.pdf", b.Code)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
