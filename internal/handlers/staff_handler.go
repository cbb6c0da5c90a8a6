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

type StaffRequest struct {
	Name           *string   `json:"name"`
	Email          *string   `json:"email"`
	Password       *string   `json:"password"`
	Role           *string   `json:"role"`
	Category       *string   `json:"category"`
	AssignedEvents *[]string `json:"assignedEvents"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func bindStaff(c *gin.Context) (*StaffRequest, *[]uuid.UUID, bool) {
	var req StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return nil, nil, false
	}
	if req.AssignedEvents == nil {
		return &req, nil, true
	}
	ids, err := helpers.ParseUUIDs(*req.AssignedEvents)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return nil, nil, false
	}
	return &req, &ids, true
}

// CreateStaff creates an admin or sub-admin as named by the body's role.
func CreateStaff(c *gin.Context) {
	createStaff(c, "")
}

// CreateSubAdmin creates a sub-admin owned by the caller.
func CreateSubAdmin(c *gin.Context) {
	createStaff(c, models.RoleSubAdmin)
}

func createStaff(c *gin.Context, role models.Role) {
	req, events, ok := bindStaff(c)
	if !ok {
		return
	}

	if role == "" && req.Role != nil {
		parsed, valid := models.ParseRole(*req.Role)
		if !valid {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid role.")
			return
		}
		role = parsed
	}

	in := services.StaffInput{
		Name:     deref(req.Name),
		Email:    deref(req.Email),
		Password: deref(req.Password),
		Role:     role,
		Category: models.Category(deref(req.Category)),
	}
	if events != nil {
		in.AssignedEvents = *events
	}

	account, err := getDeps(c).Staff.Create(c.Request.Context(), middleware.GetPrincipal(c), in)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully.",
		"account": account,
	})
}

func ListStaff(c *gin.Context) {
	accounts, err := getDeps(c).Staff.List(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, accounts)
}

func UpdateStaff(c *gin.Context) {
	accountID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	req, events, ok := bindStaff(c)
	if !ok {
		return
	}

	patch := services.StaffPatch{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		AssignedEvents: events,
	}
	if req.Category != nil {
		category := models.Category(*req.Category)
		patch.Category = &category
	}

	account, err := getDeps(c).Staff.Update(c.Request.Context(), middleware.GetPrincipal(c), accountID, patch)
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Account updated successfully.",
		"account": account,
	})
}

func DeleteStaff(c *gin.Context) {
	accountID, ok := helpers.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := getDeps(c).Staff.Delete(c.Request.Context(), middleware.GetPrincipal(c), accountID); err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully."})
}
