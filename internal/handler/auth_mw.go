package handler

import (
	"strings"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	accessToken := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return accessToken, accessToken != ""
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// claimedUser reads the identity carried by the access token.
func claimedUser(claims jwt.MapClaims) (model.CachedUser, error) {
	id, err := uuid.Parse(claimString(claims, "id"))
	if err != nil {
		return model.CachedUser{}, model.ErrUnauthorized
	}

	return model.CachedUser{
		ID:       id,
		Username: claimString(claims, "username"),
	}, nil
}

func (h *Handler) authMiddleware(c *gin.Context) {
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

	user, err := h.services.UserCache.CreateOrGet(c.Request.Context(), claimed, accessToken)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Set(userCtxKey, *user)

	c.Next()
}
