// Package reports renders participant exports.
package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/farellandr/eventhub/internal/models"
)

var CSVHeader = []string{
	"Ticket ID", "Name", "Email", "Phone", "College", "Department", "Year", "Team Info", "Status", "Registered At",
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// sanitize stops spreadsheet applications from evaluating a cell as a formula.
func sanitize(s string) string {
	if len(s) > 1 && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

// TeamInfo flattens a team registration into a single cell.
func TeamInfo(r *models.Registration) string {
	if !r.IsTeamRegistration {
		return "-"
	}
	members := make([]string, 0, len(r.TeamMembers))
	for _, m := range r.TeamMembers {
		members = append(members, fmt.Sprintf("%s (%s)", m.Name, m.Email))
	}
	name := r.TeamName
	if name == "" {
		name = "Team"
	}
	return fmt.Sprintf("%s [Members: %s]", name, strings.Join(members, "; "))
}

// ParticipantsCSV writes one row per registration after the header row.
func ParticipantsCSV(w io.Writer, registrations []models.Registration) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for i := range registrations {
		r := &registrations[i]
		row := []string{
			r.TicketID,
			r.Participant.Name,
			r.Participant.Email,
			dash(r.Participant.Phone),
			dash(r.Participant.College),
			dash(r.Participant.Department),
			dash(r.Participant.Year),
			TeamInfo(r),
			string(r.Status),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		for j := range row {
			row[j] = sanitize(row[j])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ParticipantsPDF renders a paginated participant list.
func ParticipantsPDF(eventTitle string, registrations []models.Registration) ([]byte, error) {
	pdf := participantsDoc(eventTitle, registrations)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render participants pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func participantsDoc(eventTitle string, registrations []models.Registration) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "", 18)
	pdf.CellFormat(0, 10, "Participants List", "", 1, "C", false, 0, "")
	if eventTitle != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 7, tr(eventTitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	text := func(s string) {
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
	}

	if len(registrations) == 0 {
		pdf.SetFont("Helvetica", "I", 12)
		text("No participants")
	}

	for i := range registrations {
		r := &registrations[i]

		pdf.SetFont("Helvetica", "B", 12)
		text(fmt.Sprintf("%d. %s (%s)", i+1, r.Participant.Name, r.TicketID))

		pdf.SetFont("Helvetica", "", 10)
		text(fmt.Sprintf("Email: %s, Phone: %s", r.Participant.Email, dash(r.Participant.Phone)))
		text(fmt.Sprintf("College: %s", dash(r.Participant.College)))
		text(fmt.Sprintf("Status: %s", r.Status))

		if r.IsTeamRegistration {
			name := r.TeamName
			if name == "" {
				name = "Unnamed Team"
			}
			text("Team: " + name)
			if len(r.TeamMembers) > 0 {
				text("Members:")
				for _, m := range r.TeamMembers {
					text(fmt.Sprintf("  - %s (%s)", m.Name, m.Email))
				}
			}
		}
		pdf.Ln(3)
	}
	return pdf
}
