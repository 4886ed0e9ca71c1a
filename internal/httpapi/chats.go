package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmindai/chatcore/internal/model"
)

func parseChatID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid chat id")
		return 0, false
	}
	return id, true
}

type createChatRequest struct {
	Type        string  `json:"type" binding:"required"`
	Name        *string `json:"name"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PublicName  *string `json:"public_name"`
	MemberIDs   []int64 `json:"member_ids"`
}

func (h *Handlers) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	ct := model.ChatType(req.Type)
	if ct != model.ChatDirect && ct != model.ChatGroup && ct != model.ChatChannel {
		badRequest(c, "type must be direct, group, or channel")
		return
	}
	owner := currentUserID(c)
	members := append(req.MemberIDs, owner)

	chat, err := h.Dispatch.CreateChat(c.Request.Context(), model.Chat{
		Type: ct, Name: req.Name, Title: req.Title, Description: req.Description,
		PublicName: req.PublicName, OwnerID: owner,
	}, members)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chatView(chat))
}

func (h *Handlers) ListChats(c *gin.Context) {
	chats, err := h.Store.ListChatsForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(chats))
	for _, ch := range chats {
		out = append(out, chatView(ch))
	}
	c.JSON(http.StatusOK, out)
}

// GetChat requires membership: absence of a row in either the chat table or
// the caller's membership surfaces identically as 404, per spec.md §7's
// "entity absent or caller lacks visibility" NotFound definition.
func (h *Handlers) GetChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	role, err := h.Authz.RoleIn(c.Request.Context(), chatID, currentUserID(c))
	if err != nil {
		mapError(c, err)
		return
	}
	if role == "" {
		respondErr(c, http.StatusNotFound, "not found")
		return
	}
	chat, err := h.Store.GetChat(c.Request.Context(), chatID)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatViewWithRole(chat, role))
}

// GetChatByPublicName resolves the globally-unique public_name a channel
// may advertise (e.g. for a shareable @handle-style link), same visibility
// rule as GetChat: absence or non-membership both surface as 404.
func (h *Handlers) GetChatByPublicName(c *gin.Context) {
	chat, err := h.Store.GetChatByPublicName(c.Request.Context(), c.Param("publicName"))
	if err != nil {
		mapError(c, err)
		return
	}
	role, err := h.Authz.RoleIn(c.Request.Context(), chat.ID, currentUserID(c))
	if err != nil {
		mapError(c, err)
		return
	}
	if role == "" {
		respondErr(c, http.StatusNotFound, "not found")
		return
	}
	c.JSON(http.StatusOK, chatViewWithRole(chat, role))
}

type updateChatRequest struct {
	Name        *string `json:"name"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handlers) UpdateChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req updateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.Dispatch.UpdateChat(c.Request.Context(), chatID, currentUserID(c), req.Name, req.Title, req.Description); err != nil {
		mapError(c, err)
		return
	}
	chat, err := h.Store.GetChat(c.Request.Context(), chatID)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatView(chat))
}

func (h *Handlers) DeleteChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.DeleteChat(c.Request.Context(), chatID, currentUserID(c)); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ChatMembers(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	isMember, err := h.Authz.IsMember(c.Request.Context(), chatID, currentUserID(c))
	if err != nil {
		mapError(c, err)
		return
	}
	if !isMember {
		respondErr(c, http.StatusNotFound, "not found")
		return
	}
	members, err := h.Store.ChatMembers(c.Request.Context(), chatID)
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(members))
	for _, m := range members {
		out = append(out, chatMemberView(m))
	}
	c.JSON(http.StatusOK, out)
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

func (h *Handlers) SetFavorite(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req favoriteRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.Dispatch.SetFavorite(c.Request.Context(), currentUserID(c), chatID, req.Favorite); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) UnsetFavorite(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.SetFavorite(c.Request.Context(), currentUserID(c), chatID, false); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetChatPinned and UnsetChatPinned toggle the sidebar pin, one of the
// per-user chat-state flags; like favorite and archive it is private to
// the caller and never broadcast.
func (h *Handlers) SetChatPinned(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.SetPinnedInList(c.Request.Context(), currentUserID(c), chatID, true); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) UnsetChatPinned(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.SetPinnedInList(c.Request.Context(), currentUserID(c), chatID, false); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) SetArchived(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.SetArchived(c.Request.Context(), currentUserID(c), chatID, true); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) UnsetArchived(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.SetArchived(c.Request.Context(), currentUserID(c), chatID, false); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type muteRequest struct {
	Until *time.Time `json:"until"`
}

func (h *Handlers) SetMuted(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req muteRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.Dispatch.SetMuted(c.Request.Context(), currentUserID(c), chatID, req.Until); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) UnsetMuted(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.SetMuted(c.Request.Context(), currentUserID(c), chatID, nil); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) LeaveChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	if err := h.Dispatch.LeaveChat(c.Request.Context(), chatID, currentUserID(c)); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) PromoteMember(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(c.Param("uid"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	if err := h.Dispatch.PromoteMember(c.Request.Context(), chatID, currentUserID(c), targetID); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) DemoteMember(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(c.Param("uid"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	if err := h.Dispatch.DemoteMember(c.Request.Context(), chatID, currentUserID(c), targetID); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type markReadRequest struct {
	LastReadMessageID int64 `json:"last_read_message_id" binding:"required"`
}

func (h *Handlers) MarkRead(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.Dispatch.MarkRead(c.Request.Context(), chatID, currentUserID(c), req.LastReadMessageID); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setChatAvatarRequest struct {
	FileID int64 `json:"file_id" binding:"required"`
}

// SetChatAvatar persists the avatar reference through dispatch, which
// broadcasts the same chat_updated envelope UpdateChat publishes.
func (h *Handlers) SetChatAvatar(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req setChatAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	file, err := h.Store.GetFile(c.Request.Context(), req.FileID)
	if err != nil {
		mapError(c, err)
		return
	}
	if err := h.Dispatch.SetChatAvatar(c.Request.Context(), chatID, currentUserID(c), req.FileID); err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_url": h.presignFile(file.Bucket, file.ObjectKey)})
}
