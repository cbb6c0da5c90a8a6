package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/middleware"
)

func GetProfile(c *gin.Context) {
	account, err := getDeps(c).Auth.Profile(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}
