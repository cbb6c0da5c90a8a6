package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/mailer"
	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/observability"
	"github.com/farellandr/eventhub/internal/policy"
	"github.com/farellandr/eventhub/internal/tickets"
)

type RegistrationService struct {
	db      *gorm.DB
	signer  *tickets.Signer
	mail    mailer.Mailer
	tasks   Submitter
	metrics *observability.Metrics
	log     logrus.FieldLogger
}

func NewRegistrationService(db *gorm.DB, signer *tickets.Signer, mail mailer.Mailer, tasks Submitter, metrics *observability.Metrics, log logrus.FieldLogger) *RegistrationService {
	return &RegistrationService{
		db:      db,
		signer:  signer,
		mail:    mail,
		tasks:   tasks,
		metrics: metrics,
		log:     log,
	}
}

type RegistrationInput struct {
	EventID     uuid.UUID
	Participant models.Member
	TeamName    string
	TeamMembers []models.Member
}

type RegistrationResult struct {
	RegistrationID     uuid.UUID `json:"registrationId"`
	TicketID           string    `json:"ticketId"`
	IsTeamRegistration bool      `json:"isTeamRegistration"`
}

func trimMember(m models.Member) models.Member {
	return models.Member{
		Name:       strings.TrimSpace(m.Name),
		Email:      normalizeEmail(m.Email),
		Phone:      strings.TrimSpace(m.Phone),
		College:    strings.TrimSpace(m.College),
		Department: strings.TrimSpace(m.Department),
		Year:       strings.TrimSpace(m.Year),
	}
}

// ValidateTeamSize checks a member list against the event bounds. The
// registrant leads the team and is not part of members.
func ValidateTeamSize(event *models.Event, members int) error {
	if lower := event.MinTeamSize - 1; members < lower {
		return &TeamSizeError{Bound: TeamBoundMin, Limit: lower, Got: members}
	}
	if upper := event.MaxTeamSize - 1; members > upper {
		return &TeamSizeError{Bound: TeamBoundMax, Limit: upper, Got: members}
	}
	return nil
}

// Register records a registration in one transaction, then queues ticket
// emails. Mail failures are logged and never undo the registration.
func (s *RegistrationService) Register(ctx context.Context, p *policy.Principal, in RegistrationInput) (*RegistrationResult, error) {
	reg, event, err := s.register(ctx, p, in)
	s.metrics.Registration(registrationOutcome(err))
	if err != nil {
		return nil, err
	}

	s.sendTickets(event, reg)

	return &RegistrationResult{
		RegistrationID:     reg.ID,
		TicketID:           reg.TicketID,
		IsTeamRegistration: reg.IsTeamRegistration,
	}, nil
}

func (s *RegistrationService) register(ctx context.Context, p *policy.Principal, in RegistrationInput) (*models.Registration, *models.Event, error) {
	if !p.Authenticated() {
		return nil, nil, ErrUnauthorized
	}

	in.Participant = trimMember(in.Participant)
	if in.EventID == uuid.Nil || in.Participant.Name == "" || in.Participant.Email == "" {
		return nil, nil, ErrMissingFields
	}

	var (
		reg   models.Registration
		event models.Event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&event, "id = ?", in.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load event: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.Registration{}).
			Where("user_id = ? AND event_id = ? AND status <> ?", p.ID, event.ID, models.StatusCancelled).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check registration: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyRegistered
		}

		reg = models.Registration{
			UserID:      p.ID,
			EventID:     event.ID,
			Participant: in.Participant,
			TicketID:    tickets.NewTicketID(),
			Status:      models.StatusRegistered,
			TeamMembers: []models.Member{},
		}

		if event.IsTeamEvent {
			members := make([]models.Member, 0, len(in.TeamMembers))
			for _, m := range in.TeamMembers {
				m = trimMember(m)
				if m.Name == "" || m.Email == "" {
					return ErrMissingFields
				}
				members = append(members, m)
			}
			if err := ValidateTeamSize(&event, len(members)); err != nil {
				return err
			}
			reg.IsTeamRegistration = true
			reg.TeamName = strings.TrimSpace(in.TeamName)
			reg.TeamMembers = members
		}

		if err := tx.Create(&reg).Error; err != nil {
			if isDuplicate(err) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("create registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &reg, &event, nil
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrTeamSizeViolation):
		return "team_size"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrUnauthorized):
		return "rejected"
	}
	return "error"
}

// sendTickets queues one ticket email for the registrant and one per team member.
func (s *RegistrationService) sendTickets(event *models.Event, reg *models.Registration) {
	recipients := append([]models.Member{reg.Participant}, reg.TeamMembers...)
	payload := s.signer.Payload(reg.ID, reg.TicketID, event.ID)

	for _, member := range recipients {
		member := member
		ticket := tickets.Ticket{
			EventTitle: event.Title,
			EventDate:  event.Date,
			Venue:      event.Venue,
			Name:       member.Name,
			Email:      member.Email,
			Phone:      member.Phone,
			TeamName:   reg.TeamName,
			TicketID:   reg.TicketID,
			QRPayload:  payload,
		}

		err := s.tasks.Submit("ticket mail", func(ctx context.Context) error {
			if err := s.deliverTicket(ctx, ticket); err != nil {
				s.metrics.Email("ticket", "failed")
				return fmt.Errorf("ticket %s to %s: %w", ticket.TicketID, ticket.Email, err)
			}
			s.metrics.Email("ticket", "sent")
			return nil
		})
		if err != nil {
			s.log.WithError(err).WithField("ticket_id", reg.TicketID).Error("could not queue ticket mail")
		}
	}
}

func (s *RegistrationService) deliverTicket(ctx context.Context, ticket tickets.Ticket) error {
	pdf, err := tickets.Render(ticket)
	if err != nil {
		return err
	}
	msg, err := mailer.TicketEmail{
		To:         ticket.Email,
		Name:       ticket.Name,
		EventTitle: ticket.EventTitle,
		TeamName:   ticket.TeamName,
		TicketID:   ticket.TicketID,
		PDF:        pdf,
	}.Message()
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, msg)
}

// Cancel marks the caller's own registration as cancelled. A registration that
// is missing, someone else's, or already cancelled is NotFound.
func (s *RegistrationService) Cancel(ctx context.Context, p *policy.Principal, id uuid.UUID) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}

	res := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ? AND user_id = ? AND status <> ?", id, p.ID, models.StatusCancelled).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("cancel registration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type MyRegistration struct {
	models.Registration
	EventDetails models.PublicEvent `json:"eventDetails"`
}

// Mine lists the caller's registrations, skipping those whose event is gone.
func (s *RegistrationService) Mine(ctx context.Context, p *policy.Principal) ([]MyRegistration, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	var regs []models.Registration
	if err := s.db.WithContext(ctx).Where("user_id = ?", p.ID).Order("created_at DESC").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if len(regs) == 0 {
		return []MyRegistration{}, nil
	}

	ids := make([]uuid.UUID, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.EventID)
	}
	var events []models.Event
	if err := s.db.WithContext(ctx).Where("id IN ?", dedupe(ids)).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Event, len(events))
	for i := range events {
		byID[events[i].ID] = &events[i]
	}

	out := make([]MyRegistration, 0, len(regs))
	for _, r := range regs {
		event, ok := byID[r.EventID]
		if !ok {
			continue
		}
		out = append(out, MyRegistration{Registration: r, EventDetails: event.Public()})
	}
	return out, nil
}

// Participants returns the event and its registrations, oldest first, for
// callers with read access to the event.
func (s *RegistrationService) Participants(ctx context.Context, p *policy.Principal, eventID uuid.UUID) (*models.Event, []models.Registration, error) {
	if !p.Authenticated() {
		return nil, nil, ErrUnauthorized
	}

	var event models.Event
	err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, missingFor(p)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load event: %w", err)
	}
	events := []models.Event{event}
	if err := loadSubAdmins(s.db.WithContext(ctx), events); err != nil {
		return nil, nil, err
	}
	event = events[0]

	if err := policy.CanViewParticipants(p, &event); err != nil {
		return nil, nil, err
	}

	var regs []models.Registration
	if err := s.db.WithContext(ctx).Where("event_id = ?", event.ID).Order("created_at ASC").Find(&regs).Error; err != nil {
		return nil, nil, fmt.Errorf("list participants: %w", err)
	}
	return &event, regs, nil
}

// Overview lists registrations across every event visible to the caller.
func (s *RegistrationService) Overview(ctx context.Context, p *policy.Principal) ([]models.Registration, error) {
	if err := policy.CanViewDashboard(p); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	events := scoped(db.Session(&gorm.Session{NewDB: true}).Model(&models.Event{}), policy.ScopeFor(p)).Select("id")

	var regs []models.Registration
	if err := db.Where("event_id IN (?)", events).Order("created_at DESC").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// CheckIn redeems a scanned ticket QR payload, moving the registration to ATTENDED.
func (s *RegistrationService) CheckIn(ctx context.Context, p *policy.Principal, payload string) (*models.Registration, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	scanned, err := tickets.Parse(payload)
	if err != nil {
		return nil, invalid("malformed ticket code")
	}

	event, regs, err := s.Participants(ctx, p, scanned.EventID)
	if err != nil {
		return nil, err
	}

	var reg *models.Registration
	for i := range regs {
		if regs[i].TicketID == scanned.TicketID {
			reg = &regs[i]
			break
		}
	}
	if reg == nil || !s.signer.Verify(reg.ID, event.ID, scanned) {
		return nil, invalid("ticket signature does not match")
	}

	switch reg.Status {
	case models.StatusCancelled:
		return nil, invalid("registration was cancelled")
	case models.StatusAttended:
		return nil, invalid("ticket already used")
	}

	res := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ? AND status = ?", reg.ID, models.StatusRegistered).
		Update("status", models.StatusAttended)
	if res.Error != nil {
		return nil, fmt.Errorf("check in: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, invalid("ticket already used")
	}
	reg.Status = models.StatusAttended
	return reg, nil
}
