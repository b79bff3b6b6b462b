package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/BloggingApp/currents-service/internal/repository/memory"
	"github.com/BloggingApp/currents-service/internal/repository/redisrepo"
	"github.com/BloggingApp/currents-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServerWithRepo(t *testing.T, store *memory.Store, users repository.User, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.New(store.Post, users, redisrepo.NewMemory())
	m := metrics.New()
	services := service.New(zap.NewNop(), repo, nil, m, service.Options{StoreTimeout: time.Second, CacheTTL: time.Minute})

	opts.AccessSecret = testSecret
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:3000"
	}
	h := New(zap.NewNop(), services, m, opts)

	return &testServer{router: h.InitRoutes(), store: store}
}

func newTestServer(t *testing.T) *testServer {
	store := memory.New()
	return newTestServerWithRepo(t, store, store.User, Options{RateLimitRPS: 100, RateLimitBurst: 100})
}

func token(t *testing.T, id uuid.UUID, username string, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"id":       id.String(),
		"username": username,
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, accessToken string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type createdPost struct {
	Post model.Post `json:"post"`
}

func (s *testServer) publish(t *testing.T, accessToken, title string) model.Post {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/posts", accessToken, dto.CreatePostRequest{Title: title, Content: "content"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[createdPost](t, rec).Post
}

func TestGetActiveByUsername(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, uuid.New(), "alice", "user")
	require.NoError(t, srv.store.User.Create(context.Background(), model.CachedUser{ID: uuid.New(), Username: "quiet"}))

	post := srv.publish(t, alice, "My First Post!")

	tests := []struct {
		name   string
		path   string
		status int
		error  string
	}{
		{"found", "/api/posts/alice", http.StatusOK, ""},
		{"unknown user", "/api/posts/bob", http.StatusNotFound, "User not found"},
		{"no active post", "/api/posts/quiet", http.StatusNotFound, "No active post found for this user"},
		{"blank username", "/api/posts/%20", http.StatusBadRequest, "Username is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.path, "", nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			if tt.error != "" {
				assert.Equal(t, tt.error, decode[dto.ErrorResponse](t, rec).Error)
				return
			}
			got := decode[dto.GetPostResponse](t, rec)
			require.NotNil(t, got.Post)
			assert.Equal(t, post.ID, got.Post.ID)
			assert.Equal(t, "my-first-post", got.Post.Slug)
			assert.Equal(t, "alice", got.Post.Author.Username)
		})
	}
}

type brokenUsers struct {
	repository.User
}

func (brokenUsers) FindByUsername(ctx context.Context, username string) (*model.CachedUser, error) {
	return nil, errors.New("connection reset by peer")
}

func TestGetActiveByUsername_InternalError(t *testing.T) {
	store := memory.New()
	srv := newTestServerWithRepo(t, store, brokenUsers{User: store.User}, Options{})

	rec := srv.do(t, http.MethodGet, "/api/posts/alice", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode[dto.ErrorResponse](t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestCreatePost(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, uuid.New(), "alice", "user")

	t.Run("requires auth", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/v1/posts", "", dto.CreatePostRequest{Title: "x", Content: "c"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "user is not authorized", decode[dto.ErrorResponse](t, rec).Error)
	})

	t.Run("rejects forged token", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": uuid.NewString()}).SignedString([]byte("other"))
		require.NoError(t, err)
		rec := srv.do(t, http.MethodPost, "/api/v1/posts", forged, dto.CreatePostRequest{Title: "x", Content: "c"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("validates title", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/v1/posts", alice, dto.CreatePostRequest{Title: "  ", Content: "c"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "title is required", decode[dto.ErrorResponse](t, rec).Fields["title"])
	})

	t.Run("requires content to publish", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/v1/posts", alice, dto.CreatePostRequest{Title: "Empty"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Please enter some content", decode[dto.ErrorResponse](t, rec).Fields["content"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+alice)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	first := srv.publish(t, alice, "First")
	second := srv.publish(t, alice, "Second")

	rec := srv.do(t, http.MethodGet, "/api/v1/posts/my/active", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second.ID, decode[createdPost](t, rec).Post.ID)

	rec = srv.do(t, http.MethodGet, "/api/v1/posts/my/history?page=1&pageSize=10", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[dto.PostsResponse](t, rec)
	require.Len(t, history.Posts, 2)
	assert.Equal(t, first.ID, history.Posts[1].ID)
	assert.True(t, history.Posts[1].IsArchived())
}

func TestFeed(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/feed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[dto.FeedResponse](t, rec)
	assert.Empty(t, feed.Posts)
	assert.Equal(t, dto.DefaultPage, feed.Page)
	assert.Equal(t, dto.DefaultPageSize, feed.PageSize)

	for _, name := range []string{"a", "b", "c"} {
		srv.publish(t, token(t, uuid.New(), name, "user"), "Post by "+name)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/feed?page=1&pageSize=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed = decode[dto.FeedResponse](t, rec)
	assert.Len(t, feed.Posts, 2)
	assert.True(t, feed.HasMore)

	rec = srv.do(t, http.MethodGet, "/api/v1/feed?page=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "page must be an integer", decode[dto.ErrorResponse](t, rec).Fields["page"])

	rec = srv.do(t, http.MethodGet, "/api/v1/feed?pageSize=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeletePost(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, uuid.New(), "alice", "user")
	bob := token(t, uuid.New(), "bob", "user")

	first := srv.publish(t, alice, "First")
	second := srv.publish(t, alice, "Second")

	path := func(id int64) string {
		return "/api/v1/posts/" + strconv.FormatInt(id, 10)
	}

	rec := srv.do(t, http.MethodPatch, path(second.ID), alice, dto.UpdatePostRequest{Title: strPtr("Second, edited")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[createdPost](t, rec).Post
	assert.Equal(t, "Second, edited", updated.Title)
	assert.Equal(t, second.Slug, updated.Slug)

	rec = srv.do(t, http.MethodPatch, path(first.ID), alice, dto.UpdatePostRequest{Title: strPtr("Old")})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "post is no longer active", decode[dto.ErrorResponse](t, rec).Error)

	rec = srv.do(t, http.MethodPatch, path(second.ID), bob, dto.UpdatePostRequest{Title: strPtr("Mine")})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/v1/posts/abc", alice, dto.UpdatePostRequest{Title: strPtr("x")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPatch, path(second.ID), alice, dto.UpdatePostRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodDelete, path(second.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodDelete, path(second.ID), alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodDelete, path(second.ID), alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlugAndPreview(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, uuid.New(), "alice", "user")

	longTitle := strings.Repeat("t", 70)
	rec := srv.do(t, http.MethodPost, "/api/v1/posts", alice, dto.CreatePostRequest{
		Title:   longTitle,
		Content: strings.Repeat("c", 130),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	post := decode[createdPost](t, rec).Post

	rec = srv.do(t, http.MethodGet, "/api/v1/posts/slug/"+post.Slug, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, post.ID, decode[dto.GetPostResponse](t, rec).Post.ID)

	rec = srv.do(t, http.MethodGet, "/api/v1/posts/slug/"+post.Slug+"/preview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[dto.PostPreview](t, rec)
	assert.Equal(t, strings.Repeat("t", 57)+"…", preview.Title)
	assert.Equal(t, strings.Repeat("c", 117)+"…", preview.Excerpt)
	assert.Equal(t, "alice", preview.Author)
	assert.Equal(t, "alice", preview.AuthorName)

	rec = srv.do(t, http.MethodGet, "/api/v1/posts/slug/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModeratorDeletesUser(t *testing.T) {
	srv := newTestServer(t)
	aliceID := uuid.New()
	alice := token(t, aliceID, "alice", "user")
	srv.publish(t, alice, "Hello")

	path := "/api/v1/users/" + aliceID.String()

	rec := srv.do(t, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mod := token(t, uuid.New(), "mod", "MOD")
	rec = srv.do(t, http.MethodDelete, "/api/v1/users/not-a-uuid", mod, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodDelete, path, mod, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/posts/alice", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decode[dto.ErrorResponse](t, rec).Error)

	rec = srv.do(t, http.MethodDelete, path, mod, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	store := memory.New()
	srv := newTestServerWithRepo(t, store, store.User, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	alice := token(t, uuid.New(), "alice", "user")

	srv.publish(t, alice, "One")
	srv.publish(t, alice, "Two")

	rec := srv.do(t, http.MethodPost, "/api/v1/posts", alice, dto.CreatePostRequest{Title: "Three", Content: "c"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other users have their own bucket.
	srv.publish(t, token(t, uuid.New(), "bob", "user"), "Bob")
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `currents_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestLimiterPool(t *testing.T) {
	p := newLimiterPool(0.001, 1)
	assert.True(t, p.Allow("a"))
	assert.False(t, p.Allow("a"))
	assert.True(t, p.Allow("b"))

	p.lastSweep = time.Now().Add(-time.Hour)
	p.m["a"].lastSeen = time.Now().Add(-time.Hour)
	p.Allow("b")
	_, ok := p.m["a"]
	assert.False(t, ok)
}

func strPtr(s string) *string {
	return &s
}
