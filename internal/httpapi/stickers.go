package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) ListStickers(c *gin.Context) {
	stickers, err := h.Store.ListStickers(c.Request.Context())
	if err != nil {
		mapError(c, err)
		return
	}
	out := make([]gin.H, 0, len(stickers))
	for _, s := range stickers {
		out = append(out, gin.H{"id": s.ID, "pack_name": s.PackName, "image_url": h.presignFile(s.Bucket, s.ObjectKey)})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) StickerImage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid sticker id")
		return
	}
	st, err := h.Store.GetSticker(c.Request.Context(), id)
	if err != nil {
		mapError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.presignFile(st.Bucket, st.ObjectKey))
}
