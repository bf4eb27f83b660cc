package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketchat/internal/storage"
	"marketchat/internal/transport/httpdto"
)

type UploadHandler struct {
	s3 *storage.S3Client
}

func NewUploadHandler(s3 *storage.S3Client) *UploadHandler {
	return &UploadHandler{s3: s3}
}

// Presign issues an upload URL for a message attachment.
func (h *UploadHandler) Presign(c *gin.Context) {
	if h.s3 == nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("attachment storage not configured", "UNAVAILABLE"))
		return
	}

	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	uploadURL, fileURL, headers, err := h.s3.PresignPut(c.Request.Context(), req.FileName, req.ContentType, req.Size)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "VALIDATION_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignUploadResponse{
		UploadURL: uploadURL,
		FileURL:   fileURL,
		Headers:   headers,
	}))
}
