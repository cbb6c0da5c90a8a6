package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/services"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	account, err := getDeps(c).Auth.Register(c.Request.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully.",
		"user":    account,
	})
}

func UserLogin(c *gin.Context) {
	login(c, services.RealmUser)
}

func AdminLogin(c *gin.Context) {
	login(c, services.RealmAdmin)
}

func login(c *gin.Context, realm services.Realm) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	session, err := getDeps(c).Auth.Login(c.Request.Context(), realm, services.Credentials{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func realmParam(c *gin.Context) (services.Realm, bool) {
	realm, ok := services.ParseRealm(c.Param("realm"))
	if !ok {
		helpers.RespondWithError(c, http.StatusNotFound, "Unknown account type.")
	}
	return realm, ok
}

// ForgotPassword answers the same way whether or not the email is known.
func ForgotPassword(c *gin.Context) {
	realm, ok := realmParam(c)
	if !ok {
		return
	}

	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	if err := getDeps(c).Auth.RequestReset(c.Request.Context(), realm, req.Email); err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": services.GenericResetMessage})
}

func ResetPassword(c *gin.Context) {
	realm, ok := realmParam(c)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	if err := getDeps(c).Auth.PerformReset(c.Request.Context(), realm, c.Param("token"), req.Password); err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully."})
}
