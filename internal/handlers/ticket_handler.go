package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/middleware"
)

type CheckInRequest struct {
	QRData string `json:"qrData" binding:"required"`
}

// CheckInTicket redeems the payload scanned from a ticket QR code.
func CheckInTicket(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	reg, err := getDeps(c).Registrations.CheckIn(c.Request.Context(), middleware.GetPrincipal(c), req.QRData)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Ticket validated successfully.",
		"ticket": gin.H{
			"ticketId":    reg.TicketID,
			"participant": reg.Participant,
			"teamName":    reg.TeamName,
			"status":      reg.Status,
		},
	})
}
