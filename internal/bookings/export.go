package bookings

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// utf8BOM lets spreadsheet tools detect the encoding of exported files
const utf8BOM = "\ufeff"

var exportHeader = []string{
	"code", "space", "date", "time", "requester", "status",
	"event", "zone", "requested_units", "created",
}

func writeCSV(w io.Writer, bookings []Booking) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i := range bookings {
		if err := cw.Write(exportRow(&bookings[i])); err != nil {
			return fmt.Errorf("failed to write booking %s: %w", bookings[i].Code, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportRow(b *Booking) []string {
	event, zone := "", ""
	if b.Event != nil {
		event = b.Event.Title
	}
	if b.Zone != nil {
		zone = b.Zone.Name
	}
	return []string{
		b.Code,
		b.Space,
		b.Date,
		b.Time,
		b.Requester,
		string(b.Status),
		event,
		zone,
		strconv.Itoa(b.RequestedUnits),
		b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ExportFilename names an export produced at now
func ExportFilename(now time.Time) string {
	return "bookings-" + now.Format("20060102-150405") + ".csv"
}
