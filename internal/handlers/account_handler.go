package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/glaze-storefront/internal/auth"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

// loggedIn renders the user a login command produced.
func (a *api) loggedIn(c *gin.Context, u auth.User, err error) {
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (a *api) signup(c *gin.Context) {
	var req validation.SignupRequest
	if !a.bind(c, &req) {
		return
	}
	if err := a.shell.Signup(c.Request.Context(), req); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "code_sent"})
}

func (a *api) verifySignup(c *gin.Context) {
	var req validation.VerifyRequest
	if !a.bind(c, &req) {
		return
	}
	u, err := a.shell.VerifySignup(c.Request.Context(), sessionID(c), req)
	a.loggedIn(c, u, err)
}

func (a *api) login(c *gin.Context) {
	var req validation.LoginRequest
	if !a.bind(c, &req) {
		return
	}
	u, err := a.shell.Login(c.Request.Context(), sessionID(c), req)
	a.loggedIn(c, u, err)
}

func (a *api) forgotPassword(c *gin.Context) {
	var req validation.ForgotRequest
	if !a.bind(c, &req) {
		return
	}
	if err := a.shell.RequestReset(c.Request.Context(), req); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "code_sent"})
}

func (a *api) resetPassword(c *gin.Context) {
	var req validation.ResetRequest
	if !a.bind(c, &req) {
		return
	}
	if err := a.shell.ResetPassword(c.Request.Context(), req); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}

func (a *api) oauthLogin(c *gin.Context) {
	var req validation.OAuthRequest
	if !a.bind(c, &req) {
		return
	}
	u, err := a.shell.FederatedLogin(c.Request.Context(), sessionID(c), req)
	a.loggedIn(c, u, err)
}

func (a *api) demoLogin(c *gin.Context) {
	u, err := a.shell.DemoLogin(c.Request.Context(), sessionID(c))
	a.loggedIn(c, u, err)
}

func (a *api) logout(c *gin.Context) {
	if err := a.shell.Logout(c.Request.Context(), sessionID(c)); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// me returns {"user": null} for a logged-out session.
func (a *api) me(c *gin.Context) {
	u, err := a.shell.User(c.Request.Context(), sessionID(c))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
