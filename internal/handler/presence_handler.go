package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketchat/internal/transport/httpdto"
)

// PresenceReader exposes the gateway's presence queries. Results are
// approximate; see the gateway documentation.
type PresenceReader interface {
	IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	OnlineCount(ctx context.Context) (int64, error)
}

type PresenceHandler struct {
	gateway PresenceReader
}

func NewPresenceHandler(gateway PresenceReader) *PresenceHandler {
	return &PresenceHandler{gateway: gateway}
}

func (h *PresenceHandler) IsOnline(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	online, err := h.gateway.IsUserOnline(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"userId": userID.String(),
		"online": online,
	}))
}

func (h *PresenceHandler) OnlineCount(c *gin.Context) {
	count, err := h.gateway.OnlineCount(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"onlineCount": count}))
}
