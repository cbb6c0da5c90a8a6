package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/services"
)

// Deps is what the handlers need from the rest of the application.
type Deps struct {
	Auth          *services.AuthService
	Staff         *services.StaffService
	Events        *services.EventService
	Registrations *services.RegistrationService
	Reports       *services.ReportService
	Uploads       helpers.UploadConfig
	Log           logrus.FieldLogger
}

const depsKey = "deps"

// Inject makes deps available to every handler behind it.
func Inject(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(depsKey, deps)
		c.Next()
	}
}

func getDeps(c *gin.Context) *Deps {
	return c.MustGet(depsKey).(*Deps)
}
