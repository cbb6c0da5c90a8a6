package tickets

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

type Ticket struct {
	EventTitle string
	EventDate  time.Time
	Venue      string
	Name       string
	Email      string
	Phone      string
	TeamName   string
	TicketID   string
	QRPayload  string
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Render draws a single-page ticket with the QR payload embedded as an image.
func Render(t Ticket) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("EventHub - E-Ticket", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "EventHub - E-Ticket", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	date := "TBA"
	if !t.EventDate.IsZero() {
		date = t.EventDate.Format("Mon Jan 02 2006")
	}

	pdf.SetFont("Helvetica", "", 14)
	line := func(format string, args ...interface{}) {
		pdf.CellFormat(0, 8, tr(fmt.Sprintf(format, args...)), "", 1, "L", false, 0, "")
	}
	line("Event: %s", t.EventTitle)
	line("Date: %s", date)
	line("Venue: %s", orDefault(t.Venue, "TBA"))
	pdf.Ln(4)
	line("Attendee: %s", t.Name)
	line("Email: %s", t.Email)
	line("Phone: %s", orDefault(t.Phone, "-"))
	if t.TeamName != "" {
		line("Team: %s", t.TeamName)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "BU", 14)
	line("Ticket ID: %s", t.TicketID)

	if t.QRPayload != "" {
		png, err := qrcode.Encode(t.QRPayload, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode ticket qr: %w", err)
		}
		name := "qr-" + t.TicketID
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		pdf.ImageOptions(name, 70, pdf.GetY()+8, 70, 70, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}
