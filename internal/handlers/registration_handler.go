package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/middleware"
	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/services"
)

// RegistrationRequest accepts the participant either nested under
// "participant" or as top-level fields next to eventId.
type RegistrationRequest struct {
	EventID     string          `json:"eventId"`
	Participant models.Member   `json:"participant"`
	TeamName    string          `json:"teamName"`
	TeamMembers []models.Member `json:"teamMembers"`

	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	College    string `json:"college"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

func (req *RegistrationRequest) participant() models.Member {
	if req.Participant != (models.Member{}) {
		return req.Participant
	}
	return models.Member{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		College:    req.College,
		Department: req.Department,
		Year:       req.Year,
	}
}

func RegisterForEvent(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	var eventID uuid.UUID
	if req.EventID != "" {
		var err error
		if eventID, err = uuid.Parse(req.EventID); err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid eventId.")
			return
		}
	}

	result, err := getDeps(c).Registrations.Register(c.Request.Context(), middleware.GetPrincipal(c), services.RegistrationInput{
		EventID:     eventID,
		Participant: req.participant(),
		TeamName:    req.TeamName,
		TeamMembers: req.TeamMembers,
	})
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":            "Registration successful.",
		"registrationId":     result.RegistrationID,
		"ticketId":           result.TicketID,
		"isTeamRegistration": result.IsTeamRegistration,
	})
}

func MyRegistrations(c *gin.Context) {
	regs, err := getDeps(c).Registrations.Mine(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, regs)
}

func CancelRegistration(c *gin.Context) {
	regID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := getDeps(c).Registrations.Cancel(c.Request.Context(), middleware.GetPrincipal(c), regID); err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Registration cancelled."})
}

func ListParticipants(c *gin.Context) {
	eventID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	event, regs, err := getDeps(c).Registrations.Participants(c.Request.Context(), middleware.GetPrincipal(c), eventID)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event":        event,
		"participants": regs,
		"total":        len(regs),
	})
}

// RegistrationsOverview lists registrations across the caller's visible events.
func RegistrationsOverview(c *gin.Context) {
	regs, err := getDeps(c).Registrations.Overview(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, regs)
}
