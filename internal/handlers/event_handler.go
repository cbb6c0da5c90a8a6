package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/middleware"
	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
	"github.com/farellandr/eventhub/internal/services"
)

// EventRequest is the body of event create and update. Absent fields are left
// unchanged on update.
type EventRequest struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Date          *string   `json:"date"`
	Venue         *string   `json:"venue"`
	Location      *string   `json:"location"`
	Fee           *float64  `json:"fee"`
	Capacity      *int      `json:"capacity"`
	Category      *string   `json:"category"`
	IsTeamEvent   *bool     `json:"isTeamEvent"`
	MinTeamSize   *int      `json:"minTeamSize"`
	MaxTeamSize   *int      `json:"maxTeamSize"`
	AssignedAdmin *string   `json:"assignedAdmin"`
	SubAdmins     *[]string `json:"subAdmins"`
}

func (r *EventRequest) fields() (services.EventFields, error) {
	f := services.EventFields{
		Title:       r.Title,
		Description: r.Description,
		Venue:       r.Venue,
		Location:    r.Location,
		Fee:         r.Fee,
		Capacity:    r.Capacity,
		IsTeamEvent: r.IsTeamEvent,
		MinTeamSize: r.MinTeamSize,
		MaxTeamSize: r.MaxTeamSize,
	}

	if r.Date != nil && strings.TrimSpace(*r.Date) != "" {
		date, err := helpers.ParseTime(*r.Date)
		if err != nil {
			return f, err
		}
		f.Date = &date
	}
	if r.Category != nil {
		category, ok := models.ParseCategory(*r.Category)
		if !ok {
			return f, fmt.Errorf("invalid category %q", *r.Category)
		}
		f.Category = &category
	}
	if r.AssignedAdmin != nil {
		id := uuid.Nil
		if s := strings.TrimSpace(*r.AssignedAdmin); s != "" {
			var err error
			if id, err = uuid.Parse(s); err != nil {
				return f, fmt.Errorf("invalid assignedAdmin %q", s)
			}
		}
		f.AssignedAdmin = &id
	}
	if r.SubAdmins != nil {
		ids, err := helpers.ParseUUIDs(*r.SubAdmins)
		if err != nil {
			return f, err
		}
		f.SubAdmins = &ids
	}
	return f, nil
}

func bindEvent(c *gin.Context) (services.EventFields, bool) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return services.EventFields{}, false
	}
	fields, err := req.fields()
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return services.EventFields{}, false
	}
	return fields, true
}

// seesFullEvents reports whether p is served events without the public projection.
func seesFullEvents(p *policy.Principal) bool {
	return p.Authenticated() && p.Role != models.RoleUser
}

func publicEvents(events []models.Event) []models.PublicEvent {
	out := make([]models.PublicEvent, len(events))
	for i := range events {
		out[i] = events[i].Public()
	}
	return out
}

// ListEvents serves the caller's view of the catalog: the public projection for
// anonymous callers and users, the scoped full records for staff.
func ListEvents(c *gin.Context) {
	p := middleware.GetPrincipal(c)

	events, err := getDeps(c).Events.List(c.Request.Context(), p)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	if seesFullEvents(p) {
		c.JSON(http.StatusOK, events)
		return
	}
	c.JSON(http.StatusOK, publicEvents(events))
}

func GetEvent(c *gin.Context) {
	eventID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	event, err := getDeps(c).Events.Get(c.Request.Context(), eventID)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, event.Public())
}

func IsRegistered(c *gin.Context) {
	eventID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	registered, err := getDeps(c).Events.IsRegistered(c.Request.Context(), middleware.GetPrincipal(c), eventID)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registered": registered})
}

func CreateEvent(c *gin.Context) {
	fields, ok := bindEvent(c)
	if !ok {
		return
	}

	event, err := getDeps(c).Events.Create(c.Request.Context(), middleware.GetPrincipal(c), fields)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Event created successfully.",
		"event":   event,
	})
}

func UpdateEvent(c *gin.Context) {
	eventID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	fields, ok := bindEvent(c)
	if !ok {
		return
	}

	event, err := getDeps(c).Events.Update(c.Request.Context(), middleware.GetPrincipal(c), eventID, fields)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event updated successfully.",
		"event":   event,
	})
}

func DeleteEvent(c *gin.Context) {
	eventID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := getDeps(c).Events.Delete(c.Request.Context(), middleware.GetPrincipal(c), eventID); err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully."})
}

// UploadBanner replaces the event banner with a multipart "banner" image.
func UploadBanner(c *gin.Context) {
	eventID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	bannerFile, err := c.FormFile("banner")
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Banner image is required.")
		return
	}

	deps := getDeps(c)
	p := middleware.GetPrincipal(c)

	if _, err := deps.Events.Managed(c.Request.Context(), p, eventID); err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	url, err := helpers.UploadFile(c, bannerFile, "event_banners", deps.Uploads)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	event, previous, err := deps.Events.SetBanner(c.Request.Context(), p, eventID, url)
	if err != nil {
		if rmErr := helpers.DeleteUpload(deps.Uploads, url); rmErr != nil {
			deps.Log.WithError(rmErr).Warn("could not remove orphaned banner")
		}
		helpers.RespondWithDomainError(c, err)
		return
	}
	if previous != "" {
		if err := helpers.DeleteUpload(deps.Uploads, previous); err != nil {
			deps.Log.WithError(err).WithField("banner", previous).Warn("could not remove previous banner")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Banner uploaded successfully.",
		"event":   event,
	})
}

// EventsWithParticipants lists the caller's events with active registration counts.
func EventsWithParticipants(c *gin.Context) {
	events, err := getDeps(c).Events.WithParticipantCounts(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}
