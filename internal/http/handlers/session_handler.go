// Session HTTP handlers.
//
// Sign-in is authentication-free: the client states who it is and receives an
// opaque token to send as X-Session-Token on every other request.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
	"github.com/agrihub-davao/chat-backend/internal/services"
	"github.com/agrihub-davao/chat-backend/internal/session"
)

// LoginResponse carries the issued token and the stored session.
type LoginResponse struct {
	Token   string              `json:"token" example:"5f0c8a4e-2a55-4c1b-9b0e-0c8f7f7d2a11"`
	Session session.UserSession `json:"session"`
}

// Login godoc
// @ID          login
// @Summary     Start a session
// @Description Stores the user's id, display name and marketplace role and returns a session token.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       body  body      services.SignIn  true  "Sign-in payload"
// @Success     201   {object}  handlers.LoginResponse
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     503   {object}  handlers.ErrorResponse "Session store unavailable"
// @Router      /sessions [post]
func (h *Handlers) Login(c *gin.Context) {
	var in services.SignIn
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	token, us, err := h.sessSvc.Login(c.Request.Context(), in)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, LoginResponse{Token: token, Session: us})
}

// CurrentSession godoc
// @ID          currentSession
// @Summary     Get the current session
// @Tags        Sessions
// @Produce     json
// @Param       X-Session-Token  header  string  true  "Session token"
// @Success     200  {object}  session.UserSession
// @Failure     401  {object}  handlers.ErrorResponse "Unknown or expired session"
// @Router      /sessions/current [get]
func (h *Handlers) CurrentSession(c *gin.Context) {
	us, err := h.sessSvc.Current(c.Request.Context(), middleware.SessionToken(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, us)
}

// UpdateSession godoc
// @ID          updateSession
// @Summary     Update the current session
// @Description Changes the display name and/or role. Omitted fields are kept.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       X-Session-Token  header  string                  true  "Session token"
// @Param       body             body    services.SessionUpdate  true  "Fields to change"
// @Success     200  {object}  session.UserSession
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unknown or expired session"
// @Router      /sessions/current [patch]
func (h *Handlers) UpdateSession(c *gin.Context) {
	var upd services.SessionUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	us, err := h.sessSvc.Update(c.Request.Context(), middleware.SessionToken(c), upd)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, us)
}

// Logout godoc
// @ID          logout
// @Summary     End the current session
// @Tags        Sessions
// @Param       X-Session-Token  header  string  true  "Session token"
// @Success     204  {string}  string "No Content"
// @Failure     503  {object}  handlers.ErrorResponse "Session store unavailable"
// @Router      /sessions/current [delete]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.sessSvc.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
