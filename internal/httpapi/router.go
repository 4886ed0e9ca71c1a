package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chatcore/internal/metrics"
)

// NewRouter assembles the full HTTP surface of spec.md §6 on a gin.Engine,
// mirroring the teacher's cmd/server route registration: public routes
// first, then an authenticated group for everything else.
func NewRouter(h *Handlers, log *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), injectLogger(log), metrics.GinMiddleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", Metrics())

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.GET("/ws", h.ServeWS)
	r.GET("/invites/:token/preview", h.PreviewInvite)

	auth := r.Group("")
	auth.Use(authRequired(h.Signer))
	{
		auth.GET("/me", h.Me)

		auth.GET("/users/by-username/:username", h.GetUserByUsername)
		auth.GET("/users/search", h.SearchUsers)
		auth.GET("/users/:id", h.GetUser)
		auth.PUT("/users/:id", h.UpdateUser)
		auth.PUT("/users/me/avatar", h.SetMyAvatar)

		auth.GET("/settings", h.GetSettings)
		auth.PUT("/settings", h.UpdateSettings)

		auth.POST("/chats", h.CreateChat)
		auth.GET("/chats", h.ListChats)
		auth.GET("/chats/by-name/:publicName", h.GetChatByPublicName)
		auth.GET("/chats/:id", h.GetChat)
		auth.PATCH("/chats/:id", h.UpdateChat)
		auth.DELETE("/chats/:id", h.DeleteChat)
		auth.GET("/chats/:id/members", h.ChatMembers)

		auth.POST("/chats/:id/favorite", h.SetFavorite)
		auth.DELETE("/chats/:id/favorite", h.UnsetFavorite)
		auth.POST("/chats/:id/mute", h.SetMuted)
		auth.DELETE("/chats/:id/mute", h.UnsetMuted)
		auth.POST("/chats/:id/pin", h.SetChatPinned)
		auth.DELETE("/chats/:id/pin", h.UnsetChatPinned)
		auth.POST("/chats/:id/leave", h.LeaveChat)
		auth.POST("/chats/:id/read", h.MarkRead)
		auth.POST("/chats/:id/archive", h.SetArchived)
		auth.DELETE("/chats/:id/archive", h.UnsetArchived)
		auth.POST("/chats/:id/avatar", h.SetChatAvatar)
		auth.POST("/chats/:id/members/:uid/promote", h.PromoteMember)
		auth.POST("/chats/:id/members/:uid/demote", h.DemoteMember)

		auth.POST("/chats/:id/messages", h.PostMessage)
		auth.GET("/chats/:id/messages", h.ListMessages)
		auth.GET("/chats/:id/messages/search", h.SearchMessages)
		auth.PUT("/chats/:id/messages/:mid", h.EditMessage)
		auth.DELETE("/chats/:id/messages/:mid", h.DeleteMessage)
		auth.POST("/chats/:id/messages/:mid/pin", h.PinMessage)
		auth.DELETE("/chats/:id/pinned-message", h.UnpinMessage)
		auth.GET("/chats/:id/pinned-message", h.GetPinnedMessage)
		auth.POST("/chats/:id/messages/:mid/reactions", h.ToggleReaction)
		auth.GET("/chats/:id/reactions", h.ReactionsByMessageIDs)
		auth.POST("/chats/:id/forward", h.ForwardMessages)

		auth.POST("/chats/:id/invites", h.CreateInvite)
		auth.GET("/chats/:id/invites", h.ListInvites)
		auth.DELETE("/invites/:token", h.RevokeInvite)
		auth.POST("/invites/:token/join", h.JoinInvite)

		auth.POST("/files", h.UploadFile)
		auth.GET("/files/:id/download", h.DownloadFile)

		auth.GET("/stickers", h.ListStickers)
		auth.GET("/stickers/:id/image", h.StickerImage)
	}

	return r
}
