package handler

import (
	"net/http"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userCtxKey = "cached-user"

type Options struct {
	AccessSecret   []byte
	ClientOrigin   string
	RateLimitRPS   float64
	RateLimitBurst int
}

type Handler struct {
	logger       *zap.Logger
	services     *service.Service
	metrics      *metrics.Metrics
	limiter      *limiterPool
	accessSecret []byte
	clientOrigin string
}

func New(logger *zap.Logger, services *service.Service, m *metrics.Metrics, opts Options) *Handler {
	return &Handler{
		logger:       logger,
		services:     services,
		metrics:      m,
		limiter:      newLimiterPool(opts.RateLimitRPS, opts.RateLimitBurst),
		accessSecret: opts.AccessSecret,
		clientOrigin: opts.ClientOrigin,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), h.loggerMiddleware, h.metricsMiddleware)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{h.clientOrigin},
		AllowMethods:     []string{"POST", "GET", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.NewBasicResponse(true, "ok"))
	})
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/posts/:username", h.postsGetActiveByUsername)

		v1 := api.Group("/v1")
		{
			v1.GET("/feed", h.postsFeed)

			posts := v1.Group("/posts")
			{
				posts.GET("/slug/:slug", h.postsGetBySlug)
				posts.GET("/slug/:slug/preview", h.postsGetPreview)

				posts.POST("", h.authMiddleware, h.rateLimitMiddleware, h.postsCreate)
				posts.GET("/my/active", h.authMiddleware, h.postsGetMyActive)
				posts.GET("/my/history", h.authMiddleware, h.postsGetMyHistory)
				posts.PATCH("/:postID", h.authMiddleware, h.rateLimitMiddleware, h.postsUpdate)
				posts.DELETE("/:postID", h.authMiddleware, h.rateLimitMiddleware, h.postsDelete)
			}

			v1.DELETE("/users/:userID", h.moderatorMiddleware, h.usersDelete)
		}
	}

	return r
}

func (h *Handler) getCachedUserFromRequest(c *gin.Context) *model.CachedUser {
	userReq, _ := c.Get(userCtxKey)

	user, ok := userReq.(model.CachedUser)
	if !ok {
		return nil
	}

	return &user
}
