package handler

import (
	"net/http"
	"strings"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handler) usersDelete(c *gin.Context) {
	userID, err := uuid.Parse(strings.TrimSpace(c.Param("userID")))
	if err != nil {
		h.abortBadRequest(c, errInvalidUserID)
		return
	}

	if err := h.services.UserCache.Delete(c.Request.Context(), userID); err != nil {
		h.abortWithError(c, err)
		return
	}

	moderatorID, _ := c.Get(moderatorCtxKey)
	h.logger.Info("user deleted by moderator", zap.String("user_id", userID.String()), zap.Any("moderator_id", moderatorID))

	c.JSON(http.StatusOK, dto.NewBasicResponse(true, "user and posts deleted"))
}
