package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shopmindai/chatcore/internal/model"
	"github.com/shopmindai/chatcore/internal/objectstore"
)

// UploadFile accepts a multipart "file" field, rejects anything over the
// configured cap per spec.md §7's PayloadTooLarge mapping, streams the body
// to object storage through a presigned PUT, and records the metadata row.
func (h *Handlers) UploadFile(c *gin.Context) {
	maxBytes := int64(h.MaxFileSizeMB) * 1024 * 1024
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "missing file field")
		return
	}
	if fh.Size > maxBytes {
		respondErr(c, http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size")
		return
	}

	src, err := fh.Open()
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not read upload")
		return
	}
	defer src.Close()

	bucket := h.ObjStore.Bucket
	key := uuid.NewString()
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadURL := objectstore.PresignPUT(h.ObjStore, bucket, key)
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPut, uploadURL, src)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not build upload request")
		return
	}
	req.ContentLength = fh.Size
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		respondErr(c, http.StatusBadGateway, "object storage is unreachable")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respondErr(c, http.StatusBadGateway, "object storage rejected the upload")
		return
	}

	file, err := h.Store.InsertFile(c.Request.Context(), model.File{
		OwnerID: currentUserID(c), ObjectKey: key, Bucket: bucket,
		ContentType: contentType, SizeBytes: fh.Size,
	})
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id": file.ID, "content_type": file.ContentType, "size_bytes": file.SizeBytes,
		"url": h.presignFile(file.Bucket, file.ObjectKey),
	})
}

// DownloadFile redirects to a freshly-derived presigned GET; URLs are never
// persisted, only (bucket, key) is, so each download mints its own TTL.
func (h *Handlers) DownloadFile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid file id")
		return
	}
	file, err := h.Store.GetFile(c.Request.Context(), id)
	if err != nil {
		mapError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.presignFile(file.Bucket, file.ObjectKey))
}
