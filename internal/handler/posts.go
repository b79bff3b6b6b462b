package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/gin-gonic/gin"
)

func parsePostID(c *gin.Context) (int64, bool) {
	postID, err := strconv.ParseInt(strings.TrimSpace(c.Param("postID")), 10, 64)
	if err != nil || postID <= 0 {
		return 0, false
	}
	return postID, true
}

func (h *Handler) postsGetActiveByUsername(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		h.abortBadRequest(c, errUsernameRequired)
		return
	}

	post, err := h.services.Post.FindActiveByUsername(c.Request.Context(), username)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.GetPostResponse{Post: post})
}

func (h *Handler) postsFeed(c *gin.Context) {
	input, err := dto.ParseListPostsQuery(c.Query("page"), c.Query("pageSize"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	feed, err := h.services.Post.ListActive(c.Request.Context(), input)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *Handler) postsGetBySlug(c *gin.Context) {
	post, err := h.services.Post.FindBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.GetPostResponse{Post: post})
}

func (h *Handler) postsGetPreview(c *gin.Context) {
	post, err := h.services.Post.FindBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPostPreview(post))
}

func (h *Handler) postsCreate(c *gin.Context) {
	user := h.getCachedUserFromRequest(c)

	var input dto.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.abortBadRequest(c, errInvalidBody)
		return
	}

	createdPost, err := h.services.Post.Create(c.Request.Context(), user.ID, input)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.PostResponse{Post: createdPost})
}

func (h *Handler) postsGetMyActive(c *gin.Context) {
	user := h.getCachedUserFromRequest(c)

	post, err := h.services.Post.FindActive(c.Request.Context(), user.ID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PostResponse{Post: post})
}

func (h *Handler) postsGetMyHistory(c *gin.Context) {
	user := h.getCachedUserFromRequest(c)

	input, err := dto.ParseListPostsQuery(c.Query("page"), c.Query("pageSize"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	posts, err := h.services.Post.FindAuthorHistory(c.Request.Context(), user.ID, input)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *Handler) postsUpdate(c *gin.Context) {
	user := h.getCachedUserFromRequest(c)

	postID, ok := parsePostID(c)
	if !ok {
		h.abortBadRequest(c, errInvalidPostID)
		return
	}

	var input dto.UpdatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.abortBadRequest(c, errInvalidBody)
		return
	}

	updatedPost, err := h.services.Post.Update(c.Request.Context(), user.ID, postID, input)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PostResponse{Post: updatedPost})
}

func (h *Handler) postsDelete(c *gin.Context) {
	user := h.getCachedUserFromRequest(c)

	postID, ok := parsePostID(c)
	if !ok {
		h.abortBadRequest(c, errInvalidPostID)
		return
	}

	if err := h.services.Post.Delete(c.Request.Context(), user.ID, postID); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewBasicResponse(true, "post deleted"))
}
