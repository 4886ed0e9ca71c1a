package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shopmindai/chatcore/internal/model"
)

func (h *Handlers) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	user, err := h.Store.GetUserByID(c.Request.Context(), id)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, userView(user))
}

func (h *Handlers) GetUserByUsername(c *gin.Context) {
	user, err := h.Store.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, userView(user))
}

// SearchUsers clamps limit the same way message search and history do.
func (h *Handlers) SearchUsers(c *gin.Context) {
	q := c.Query("q")
	limit := clampLimit(c.Query("limit"), 20, 1, 50)
	users, err := h.Store.SearchUsers(c.Request.Context(), q, limit)
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, userView(u))
	}
	c.JSON(http.StatusOK, out)
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Username    *string `json:"username"`
}

// UpdateUser allows a user to edit only their own profile; spec.md does not
// name an admin-can-edit-anyone path, so the identity check is absolute.
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	if id != currentUserID(c) {
		respondErr(c, http.StatusForbidden, "cannot edit another user's profile")
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Username != nil && !usernamePattern.MatchString(*req.Username) {
		badRequest(c, "username must be 3-32 alphanumeric/underscore characters")
		return
	}
	if err := h.Store.UpdateUserProfile(c.Request.Context(), id, req.DisplayName, req.Username); err != nil {
		mapError(c, err)
		return
	}
	user, err := h.Store.GetUserByID(c.Request.Context(), id)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, userView(user))
}

type setAvatarRequest struct {
	FileID int64 `json:"file_id" binding:"required"`
}

func (h *Handlers) SetMyAvatar(c *gin.Context) {
	var req setAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	userID := currentUserID(c)
	file, err := h.Store.GetFile(c.Request.Context(), req.FileID)
	if err != nil {
		mapError(c, err)
		return
	}
	if err := h.Store.UpdateUserAvatar(c.Request.Context(), userID, req.FileID); err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_url": h.presignFile(file.Bucket, file.ObjectKey)})
}

func (h *Handlers) GetSettings(c *gin.Context) {
	settings, err := h.Store.GetUserSettings(c.Request.Context(), currentUserID(c))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsView(settings))
}

type updateSettingsRequest struct {
	Theme                 *string `json:"theme"`
	NotificationsEnabled  *bool   `json:"notifications_enabled"`
	Language              *string `json:"language"`
	ReadReceiptsEnabled   *bool   `json:"read_receipts_enabled"`
	LastSeenVisibility    *string `json:"last_seen_visibility"`
}

func (h *Handlers) UpdateSettings(c *gin.Context) {
	userID := currentUserID(c)
	current, err := h.Store.GetUserSettings(c.Request.Context(), userID)
	if err != nil {
		mapError(c, err)
		return
	}
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Theme != nil {
		current.Theme = *req.Theme
	}
	if req.NotificationsEnabled != nil {
		current.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.Language != nil {
		current.Language = *req.Language
	}
	if req.ReadReceiptsEnabled != nil {
		current.ReadReceiptsEnabled = *req.ReadReceiptsEnabled
	}
	if req.LastSeenVisibility != nil {
		current.LastSeenVisibility = visibilityFrom(*req.LastSeenVisibility)
	}
	if err := h.Store.UpdateUserSettings(c.Request.Context(), *current); err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsView(current))
}

func clampLimit(raw string, def, min, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func visibilityFrom(s string) model.Visibility { return model.Visibility(s) }
