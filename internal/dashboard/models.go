package dashboard

import "time"

// Overview is the landing view of the back office
type Overview struct {
	Agenda           []AgendaItem      `json:"agenda"`
	UpcomingBookings []UpcomingBooking `json:"upcoming_bookings"`
	Indicators       Indicators        `json:"indicators"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// AgendaItem is an event happening today or later
type AgendaItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Venue        string `json:"venue"`
	Status       string `json:"status"`
	CapacityMode string `json:"capacity_mode"`
}

type UpcomingBooking struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Space      string `json:"space"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Requester  string `json:"requester"`
	Status     string `json:"status"`
	EventTitle string `json:"event_title"`
}

// Indicators are headline counts. Booking counts cover only the caller's own
// bookings unless the caller is staff.
type Indicators struct {
	TotalEvents      int64            `json:"total_events"`
	TotalBookings    int64            `json:"total_bookings"`
	BookingsByStatus map[string]int64 `json:"bookings_by_status"`
}

// StatusCount is one row of a GROUP BY status query
type StatusCount struct {
	Status string
	Total  int64
}
