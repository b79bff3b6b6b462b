package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/rabbitmq"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/BloggingApp/currents-service/internal/repository/redisrepo"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type userCacheService struct {
	logger         *zap.Logger
	repo           *repository.Repository
	cache          *cache
	consumer       Consumer
	metrics        *metrics.Metrics
	httpClient     *http.Client
	userServiceAPI string
	timeout        time.Duration
}

func newUserCacheService(logger *zap.Logger, repo *repository.Repository, c *cache, consumer Consumer, m *metrics.Metrics, opts Options) *userCacheService {
	return &userCacheService{
		logger:         logger,
		repo:           repo,
		cache:          c,
		consumer:       consumer,
		metrics:        m,
		httpClient:     opts.HTTPClient,
		userServiceAPI: strings.TrimRight(opts.UserServiceAPI, "/"),
		timeout:        opts.StoreTimeout,
	}
}

// CreateOrGet looks the user up locally first. On a miss the profile is
// fetched from the user service, or taken from the token claims when no
// user service is configured.
func (s *userCacheService) CreateOrGet(ctx context.Context, claimed model.CachedUser, accessToken string) (*model.CachedUser, error) {
	if claimed.ID == uuid.Nil {
		return nil, model.ErrUnauthorized
	}

	cachedUser, err := s.FindByID(ctx, claimed.ID)
	if err == nil {
		return cachedUser, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	user := &claimed
	if s.userServiceAPI != "" {
		user, err = s.fetchUser(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		if user.ID != claimed.ID {
			s.logger.Sugar().Errorf("user-service returned user(%s) for token of user(%s)", user.ID.String(), claimed.ID.String())
			return nil, model.ErrUnauthorized
		}
	}
	if strings.TrimSpace(user.Username) == "" {
		return nil, model.ErrUnauthorized
	}

	if err := s.Create(ctx, *user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *userCacheService) fetchUser(ctx context.Context, accessToken string) (*model.CachedUser, error) {
	endpoint := "/users/@me"
	url := s.userServiceAPI + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Sugar().Errorf("failed to create request to user-service: %s", err.Error())
		return nil, model.ErrInternal
	}

	req.Header.Add("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Sugar().Errorf("failed to send request to user-service: %s", err.Error())
		return nil, model.Unavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Sugar().Errorf("failed to read response body from user-service: %s", err.Error())
		return nil, model.ErrInternal
	}

	if resp.StatusCode != http.StatusOK {
		var bodyJSON map[string]interface{}
		if err := json.Unmarshal(body, &bodyJSON); err != nil {
			s.logger.Sugar().Errorf("failed to decode error response from user-service: %s", err.Error())
		} else {
			s.logger.Sugar().Errorf("ERROR from user-service endpoint(%s), code(%d), details: %v", endpoint, resp.StatusCode, bodyJSON["details"])
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, model.ErrUnauthorized
		}
		return nil, model.Unavailable(fmt.Errorf("user-service responded with %d", resp.StatusCode))
	}

	var user model.CachedUser
	if err := json.Unmarshal(body, &user); err != nil {
		s.logger.Sugar().Errorf("failed to decode user response body from user-service: %s", err.Error())
		return nil, model.ErrInternal
	}

	return &user, nil
}

func (s *userCacheService) Create(ctx context.Context, user model.CachedUser) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.User.Create(ctx, user); err != nil {
		return internal(s.logger, err, "failed to create cached user(%s)", user.ID.String())
	}
	return nil
}

func (s *userCacheService) FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error) {
	key := redisrepo.UserCacheKey(id.String())
	if cached, ok := getCached[model.CachedUser](ctx, s.cache, key); ok {
		return cached, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.FindByID(ctx, id)
	if err != nil {
		return nil, internal(s.logger, err, "failed to get cached user(%s)", id.String())
	}

	s.cache.set(ctx, key, user)
	return user, nil
}

func (s *userCacheService) FindByUsername(ctx context.Context, username string) (*model.CachedUser, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.FindByUsername(ctx, username)
	if err != nil {
		return nil, internal(s.logger, err, "failed to get cached user(%s)", username)
	}
	return user, nil
}

func (s *userCacheService) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	before, err := s.repo.User.FindByID(ctx, id)
	if err != nil {
		return internal(s.logger, err, "failed to get cached user(%s)", id.String())
	}

	if err := s.repo.User.Update(ctx, id, updates); err != nil {
		return internal(s.logger, err, "failed to update cached user(%s)", id.String())
	}

	s.invalidateUser(ctx, id, before.Username)
	return nil
}

func (s *userCacheService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.FindByID(ctx, id)
	if err != nil {
		return internal(s.logger, err, "failed to get cached user(%s)", id.String())
	}

	if err := s.repo.User.Delete(ctx, id); err != nil {
		return internal(s.logger, err, "failed to delete cached user(%s)", id.String())
	}

	s.invalidateUser(ctx, id, user.Username)
	return nil
}

// invalidateUser drops the profile and every cached read embedding it.
func (s *userCacheService) invalidateUser(ctx context.Context, id uuid.UUID, username string) {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.cache.del(ctx, redisrepo.UserCacheKey(id.String()), redisrepo.ActivePostKey(username))
	s.cache.delPattern(ctx, redisrepo.POST_SLUG_PATTERN, redisrepo.FEED_PATTERN, redisrepo.HistoryPattern(id.String()))
}

func (s *userCacheService) StartConsume(ctx context.Context) {
	if s.consumer == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.consume(ctx, rabbitmq.USER_DELETED_QUEUE, s.handleUserDeleted)
	}()
	s.consume(ctx, rabbitmq.USER_INFO_UPDATED_QUEUE, s.handleUserUpdated)
	<-done
}

func (s *userCacheService) consume(ctx context.Context, queue string, handle func(ctx context.Context, body []byte) error) {
	msgs, err := s.consumer.Consume(queue)
	if err != nil {
		s.logger.Sugar().Errorf("failed to start consume from queue(%s): %s", queue, err.Error())
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			s.dispatch(ctx, queue, msg, handle)
		}
	}
}

func (s *userCacheService) dispatch(ctx context.Context, queue string, msg amqp.Delivery, handle func(ctx context.Context, body []byte) error) {
	err := handle(ctx, msg.Body)
	switch {
	case err == nil, model.IsKind(err, model.KindNotFound):
		// Unknown users were never cached here, nothing to do.
		msg.Ack(false)
		s.metrics.Event(queue, "ack")
	case errors.Is(err, errMalformedMessage), model.IsKind(err, model.KindValidation):
		s.logger.Sugar().Errorf("dropping message from queue(%s): %s", queue, err.Error())
		msg.Nack(false, false)
		s.metrics.Event(queue, "drop")
	default:
		msg.Nack(false, true)
		s.metrics.Event(queue, "requeue")
	}
}

func (s *userCacheService) handleUserUpdated(ctx context.Context, body []byte) error {
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("%w: %s", errMalformedMessage, err.Error())
	}

	userIDString, ok := data["user_id"].(string)
	if !ok {
		return fmt.Errorf("%w: 'user_id' field is not provided", errMalformedMessage)
	}
	userID, err := uuid.Parse(userIDString)
	if err != nil {
		return fmt.Errorf("%w: provided an invalid user_id", errMalformedMessage)
	}

	delete(data, "user_id")

	return s.Update(ctx, userID, data)
}

func (s *userCacheService) handleUserDeleted(ctx context.Context, body []byte) error {
	var msg dto.MQUserDeletedMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %s", errMalformedMessage, err.Error())
	}
	if msg.UserID == uuid.Nil {
		return fmt.Errorf("%w: 'user_id' field is not provided", errMalformedMessage)
	}

	return s.Delete(ctx, msg.UserID)
}
