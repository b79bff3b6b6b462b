package service

import (
	"context"
	"errors"

	"github.com/BloggingApp/currents-service/internal/model"
	"go.uber.org/zap"
)

var errMalformedMessage = errors.New("malformed message")

func errContentRequired() error {
	return model.NewValidationError(map[string]string{"content": "Please enter some content"})
}

// internal passes classified errors through and hides everything else
// behind model.ErrInternal after logging it.
func internal(logger *zap.Logger, err error, format string, args ...interface{}) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = model.Unavailable(err)
	}

	switch model.KindOf(err) {
	case model.KindInternal:
		logger.Sugar().Errorf(format+": %s", append(args, err.Error())...)
		return model.ErrInternal
	case model.KindUnavailable:
		logger.Sugar().Warnf(format+": %s", append(args, err.Error())...)
	}
	return err
}
