package handler

import (
	"strings"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/pkg/utils"
	"github.com/gin-gonic/gin"
)

const moderatorCtxKey = "moderator-id"

func (h *Handler) moderatorMiddleware(c *gin.Context) {
	accessToken, ok := bearerToken(c)
	if !ok {
		h.abortWithError(c, model.ErrUnauthorized)
		return
	}

	claims, err := utils.DecodeJWT(accessToken, h.accessSecret)
	if err != nil {
		h.abortWithError(c, model.ErrUnauthorized)
		return
	}

	claimed, err := claimedUser(claims)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	role := strings.ToLower(claimString(claims, "role"))
	if role != "mod" && role != "admin" {
		h.abortWithError(c, model.ErrForbidden)
		return
	}

	c.Set(moderatorCtxKey, claimed.ID)

	c.Next()
}
