package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmindai/chatcore/internal/model"
	"github.com/shopmindai/chatcore/internal/store"
)

const hotReadTTL = 10 * time.Second

type postMessageRequest struct {
	Content         *string `json:"content"`
	Type            string  `json:"type" binding:"required"`
	FileID          *int64  `json:"file_id"`
	StickerID       *int64  `json:"sticker_id"`
	DurationSeconds *int    `json:"duration_seconds"`
	ReplyToMessageID *int64 `json:"reply_to_message_id"`
}

func (h *Handlers) PostMessage(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	msg, err := h.Dispatch.PostMessage(c.Request.Context(), chatID, currentUserID(c), req.Content,
		model.MessageType(req.Type), req.FileID, req.StickerID, req.DurationSeconds, req.ReplyToMessageID)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.messageView(msg))
}

// ListMessages implements the paging protocol of §4.8: after_id ascending,
// before/default descending-then-reversed, limit clamped to [1, 100].
func (h *Handlers) ListMessages(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	viewer := currentUserID(c)
	isMember, err := h.Authz.IsMember(c.Request.Context(), chatID, viewer)
	if err != nil {
		mapError(c, err)
		return
	}
	if !isMember {
		respondErr(c, http.StatusNotFound, "not found")
		return
	}

	limit := clampLimit(c.Query("limit"), 50, 1, 100)
	var cur store.Cursor
	if raw := c.Query("after_id"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cur.After = &n
		}
	} else if raw := c.Query("before"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cur.Before = &n
		}
	}

	cacheKey := fmt.Sprintf("messages:%d:%d:%d:%d:%d", chatID, viewer, derefOr(cur.After, 0), derefOr(cur.Before, 0), limit)
	var rows []*model.EnrichedMessage
	err = h.Cache.GetOrSet(c.Request.Context(), cacheKey, hotReadTTL, &rows, func(ctx context.Context) (interface{}, error) {
		return h.Store.EnrichedMessages(ctx, chatID, viewer, cur, limit)
	})
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, m := range rows {
		out = append(out, h.enrichedMessageView(m))
	}
	c.JSON(http.StatusOK, out)
}

// SearchMessages clamps limit to [1, 50], default 20, per spec.md §4.8.
func (h *Handlers) SearchMessages(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	viewer := currentUserID(c)
	isMember, err := h.Authz.IsMember(c.Request.Context(), chatID, viewer)
	if err != nil {
		mapError(c, err)
		return
	}
	if !isMember {
		respondErr(c, http.StatusNotFound, "not found")
		return
	}

	q := strings.TrimSpace(c.Query("q"))
	limit := clampLimit(c.Query("limit"), 20, 1, 50)
	var beforeID *int64
	if raw := c.Query("before_id"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			beforeID = &n
		}
	}

	rows, err := h.Store.SearchMessages(c.Request.Context(), chatID, viewer, q, beforeID, limit)
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, m := range rows {
		out = append(out, h.messageView(m))
	}
	c.JSON(http.StatusOK, out)
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handlers) EditMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("mid"), 10, 64)
	if err != nil {
		badRequest(c, "invalid message id")
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	msg, err := h.Dispatch.EditMessage(c.Request.Context(), messageID, currentUserID(c), req.Content)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.messageView(msg))
}

type deleteMessageRequest struct {
	ForEveryone bool `json:"for_everyone"`
}

func (h *Handlers) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("mid"), 10, 64)
	if err != nil {
		badRequest(c, "invalid message id")
		return
	}
	var req deleteMessageRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.Dispatch.DeleteMessage(c.Request.Context(), messageID, currentUserID(c), req.ForEveryone); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PinMessage fetches the enriched row so the "message_pinned" envelope can
// carry it, exactly as spec.md §4.7's event table specifies.
func (h *Handlers) PinMessage(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	messageID, err := strconv.ParseInt(c.Param("mid"), 10, 64)
	if err != nil {
		badRequest(c, "invalid message id")
		return
	}
	viewer := currentUserID(c)
	enriched, err := h.Store.EnrichedMessages(c.Request.Context(), chatID, viewer, store.Cursor{After: ptrInt64(messageID - 1)}, 1)
	if err != nil {
		mapError(c, err)
		return
	}
	var view gin.H
	if len(enriched) > 0 && enriched[0].ID == messageID {
		view = h.enrichedMessageView(enriched[0])
	}
	if err := h.Dispatch.PinMessage(c.Request.Context(), chatID, messageID, viewer, pickEnriched(enriched, messageID)); err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "message": view})
}

func pickEnriched(rows []*model.EnrichedMessage, id int64) *model.EnrichedMessage {
	for _, r := range rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (h *Handlers) UnpinMessage(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	pin, err := h.Store.GetActivePinnedMessage(c.Request.Context(), chatID)
	if err != nil {
		mapError(c, err)
		return
	}
	if err := h.Dispatch.UnpinMessage(c.Request.Context(), chatID, pin.MessageID, currentUserID(c)); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) GetPinnedMessage(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	pin, err := h.Store.GetActivePinnedMessage(c.Request.Context(), chatID)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id": pin.ChatID, "message_id": pin.MessageID, "pinned_by": pin.PinnedBy,
		"pinned_at": pin.PinnedAt.Format(rfc3339Layout),
	})
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *Handlers) ToggleReaction(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	messageID, err := strconv.ParseInt(c.Param("mid"), 10, 64)
	if err != nil {
		badRequest(c, "invalid message id")
		return
	}
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	added, err := h.Dispatch.ToggleReaction(c.Request.Context(), chatID, messageID, currentUserID(c), req.Emoji)
	if err != nil {
		mapError(c, err)
		return
	}
	action := "removed"
	if added {
		action = "added"
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "emoji": req.Emoji, "action": action})
}

func (h *Handlers) ReactionsByMessageIDs(c *gin.Context) {
	raw := c.Query("message_ids")
	if raw == "" {
		badRequest(c, "message_ids is required")
		return
	}
	ids, err := parseIDList(raw)
	if err != nil {
		badRequest(c, "invalid message_ids")
		return
	}
	viewer := currentUserID(c)
	cacheKey := fmt.Sprintf("reactions:%d:%s", viewer, raw)
	var summaries []model.ReactionSummary
	err = h.Cache.GetOrSet(c.Request.Context(), cacheKey, hotReadTTL, &summaries, func(ctx context.Context) (interface{}, error) {
		return h.Store.ReactionsByMessageIDs(ctx, viewer, ids)
	})
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, gin.H{"message_id": s.MessageID, "emoji": s.Emoji, "count": s.Count, "me": s.Me})
	}
	c.JSON(http.StatusOK, out)
}

type forwardRequest struct {
	FromChatID int64   `json:"from_chat_id" binding:"required"`
	MessageIDs []int64 `json:"message_ids" binding:"required"`
}

func (h *Handlers) ForwardMessages(c *gin.Context) {
	targetChatID, ok := parseChatID(c)
	if !ok {
		return
	}
	var req forwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	forwarderID := currentUserID(c)
	user, err := h.Store.GetUserByID(c.Request.Context(), forwarderID)
	if err != nil {
		mapError(c, err)
		return
	}
	display := user.Username
	if user.DisplayName != nil {
		display = *user.DisplayName
	}
	msgs, err := h.Dispatch.ForwardMessages(c.Request.Context(), targetChatID, forwarderID, req.FromChatID, req.MessageIDs, display)
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, h.messageView(m))
	}
	c.JSON(http.StatusCreated, out)
}

func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func ptrInt64(n int64) *int64 { return &n }

func derefOr(p *int64, fallback int64) int64 {
	if p == nil {
		return fallback
	}
	return *p
}

const rfc3339Layout = "2006-01-02T15:04:05Z07:00"
