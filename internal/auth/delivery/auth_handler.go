package delivery

import (
	"errors"
	"net/http"

	"design-assistant-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles the OAuth and handoff HTTP surface
type AuthHandler struct {
	authUsecase *usecase.AuthUsecase
}

func NewAuthHandler(authUsecase *usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// Login redirects the browser to the monday authorization page
// GET /api/auth/monday/login
func (h *AuthHandler) Login(c *gin.Context) {
	url, err := h.authUsecase.LoginURL()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// Callback finishes the OAuth flow and redirects back to the frontend
// GET /api/auth/monday/callback?code=...&state=...
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state are required"})
		return
	}

	redirectURL, err := h.authUsecase.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidState) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, redirectURL)
}

// HandoffInitRequest is sent from inside the monday iframe
type HandoffInitRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
	BoardID      string `json:"boardId"`
	ItemID       string `json:"itemId" binding:"required"`
	ItemName     string `json:"itemName"`
}

// HandoffInit mints a one-time handoff code
// POST /api/monday/handoff/init
func (h *AuthHandler) HandoffInit(c *gin.Context) {
	var req HandoffInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.authUsecase.InitHandoff(req.SessionToken, req.BoardID, req.ItemID, req.ItemName)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// HandoffResolveRequest redeems a handoff code for an app session
type HandoffResolveRequest struct {
	Code string `json:"code" binding:"required"`
}

// HandoffResolve validates the code, registers the task and starts a sync
// POST /api/monday/handoff/resolve
func (h *AuthHandler) HandoffResolve(c *gin.Context) {
	var req HandoffResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authUsecase.ResolveHandoff(c.Request.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCode):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		case errors.Is(err, usecase.ErrNotLinked):
			c.JSON(http.StatusConflict, gin.H{"error": "monday account not linked"})
		case errors.Is(err, usecase.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "no access to this item"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}
