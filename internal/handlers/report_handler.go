package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/middleware"
	"github.com/farellandr/eventhub/internal/services"
)

func Dashboard(c *gin.Context) {
	stats, err := getDeps(c).Reports.DashboardStats(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DownloadParticipants serves /events/:id/download/:format as an attachment.
func DownloadParticipants(c *gin.Context) {
	eventID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	export, err := getDeps(c).Reports.ExportParticipants(
		c.Request.Context(),
		middleware.GetPrincipal(c),
		eventID,
		services.ExportFormat(c.Param("format")),
	)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}
