package httpapi

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/shopmindai/chatcore/internal/authn"
	"github.com/shopmindai/chatcore/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

type registerRequest struct {
	Username    string  `json:"username" binding:"required"`
	Email       string  `json:"email"`
	Password    string  `json:"password" binding:"required"`
	DisplayName *string `json:"display_name"`
}

// Register validates the username shape (spec.md §3), hashes the password
// via the external-collaborator authn package, and persists through C1.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		badRequest(c, "username must be 3-32 alphanumeric/underscore characters")
		return
	}
	if len(req.Password) < 8 {
		badRequest(c, "password must be at least 8 characters")
		return
	}

	hash, err := authn.HashPassword(req.Password)
	if err != nil {
		mapError(c, err)
		return
	}

	user, err := h.Store.CreateUser(c.Request.Context(), req.Username, req.DisplayName, hash)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues an access/refresh token pair.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.Store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusUnauthorized, "invalid username or password")
			return
		}
		mapError(c, err)
		return
	}
	if !user.IsActive || user.IsBlocked {
		respondErr(c, http.StatusUnauthorized, "account is not active")
		return
	}
	if !authn.CheckPassword(user.PasswordHash, req.Password) {
		respondErr(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	h.issueTokens(c, user.ID, user.IsAdmin)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh exchanges a valid refresh token for a new access/refresh pair.
func (h *Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	claims, err := h.Signer.Verify(req.RefreshToken, authn.TokenRefresh)
	if err != nil {
		mapError(c, err)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		respondErr(c, http.StatusUnauthorized, "invalid token subject")
		return
	}
	h.issueTokens(c, userID, claims.IsAdmin)
}

func (h *Handlers) issueTokens(c *gin.Context, userID int64, isAdmin bool) {
	access, err := h.Signer.AccessToken(userID, isAdmin)
	if err != nil {
		mapError(c, err)
		return
	}
	refresh, err := h.Signer.RefreshToken(userID, isAdmin)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    h.Signer.AccessTTLSeconds(),
		"user_id":       userID,
	})
}

// Me returns the caller's own profile.
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.Store.GetUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, userView(user))
}
