package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
	"github.com/farellandr/eventhub/internal/reports"
)

type ReportService struct {
	db            *gorm.DB
	registrations *RegistrationService
}

func NewReportService(db *gorm.DB, registrations *RegistrationService) *ReportService {
	return &ReportService{db: db, registrations: registrations}
}

type DashboardStats struct {
	TotalEvents        int64   `json:"totalEvents"`
	TotalRegistrations int64   `json:"totalRegistrations"`
	TotalAdmins        int64   `json:"totalAdmins"`
	TotalSubAdmins     int64   `json:"totalSubAdmins"`
	TechEvents         int64   `json:"techEvents"`
	NonTechEvents      int64   `json:"nonTechEvents"`
	Revenue            float64 `json:"revenue"`
}

// DashboardStats aggregates over the events visible to p. Events reachable
// through both ownership and delegation are counted once.
func (s *ReportService) DashboardStats(ctx context.Context, p *policy.Principal) (*DashboardStats, error) {
	if err := policy.CanViewDashboard(p); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var events []models.Event
	if err := scoped(db, policy.ScopeFor(p)).Select("id", "category").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	stats := &DashboardStats{}
	seen := make(map[uuid.UUID]bool, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		ids = append(ids, e.ID)
		switch e.Category {
		case models.CategoryTech:
			stats.TechEvents++
		case models.CategoryNonTech:
			stats.NonTechEvents++
		}
	}
	stats.TotalEvents = int64(len(ids))

	if len(ids) > 0 {
		if err := db.Model(&models.Registration{}).
			Where("event_id IN ? AND status <> ?", ids, models.StatusCancelled).
			Count(&stats.TotalRegistrations).Error; err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}

		var revenue struct{ Total float64 }
		if err := db.Model(&models.Payment{}).
			Select("COALESCE(SUM(amount), 0) AS total").
			Where("event_id IN ? AND status = ?", ids, models.PaymentSuccess).
			Scan(&revenue).Error; err != nil {
			return nil, fmt.Errorf("sum revenue: %w", err)
		}
		stats.Revenue = revenue.Total
	}

	switch p.Role {
	case models.RoleSuperAdmin:
		if err := db.Model(&models.Account{}).Where("role = ?", models.RoleAdmin).Count(&stats.TotalAdmins).Error; err != nil {
			return nil, fmt.Errorf("count admins: %w", err)
		}
		if err := db.Model(&models.Account{}).Where("role = ?", models.RoleSubAdmin).Count(&stats.TotalSubAdmins).Error; err != nil {
			return nil, fmt.Errorf("count sub-admins: %w", err)
		}
	case models.RoleAdmin:
		if err := db.Model(&models.Account{}).
			Where("role = ? AND created_by_id = ?", models.RoleSubAdmin, p.ID).
			Count(&stats.TotalSubAdmins).Error; err != nil {
			return nil, fmt.Errorf("count sub-admins: %w", err)
		}
	}

	return stats, nil
}

type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportParticipants renders the event's participants with the same read
// scoping as the participant listing.
func (s *ReportService) ExportParticipants(ctx context.Context, p *policy.Principal, eventID uuid.UUID, format ExportFormat) (*Export, error) {
	if format != FormatCSV && format != FormatPDF {
		return nil, invalid("unsupported export format %q", format)
	}

	event, regs, err := s.registrations.Participants(ctx, p, eventID)
	if err != nil {
		return nil, err
	}

	if format == FormatCSV {
		var buf bytes.Buffer
		if err := reports.ParticipantsCSV(&buf, regs); err != nil {
			return nil, fmt.Errorf("render csv: %w", err)
		}
		return &Export{Filename: "participants.csv", ContentType: "text/csv", Data: buf.Bytes()}, nil
	}

	data, err := reports.ParticipantsPDF(event.Title, regs)
	if err != nil {
		return nil, err
	}
	return &Export{Filename: "participants.pdf", ContentType: "application/pdf", Data: data}, nil
}
