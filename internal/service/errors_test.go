package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestInternal(t *testing.T) {
	logger := zap.NewNop()

	assert.Same(t, model.ErrInternal, internal(logger, errors.New("boom"), "op(%d)", 1))
	assert.Same(t, model.ErrPostNotFound, internal(logger, model.ErrPostNotFound, "op"))

	err := internal(logger, fmt.Errorf("query: %w", context.DeadlineExceeded), "op")
	assert.Equal(t, model.KindUnavailable, model.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
