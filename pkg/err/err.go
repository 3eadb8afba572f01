package errprocess

import (
	"errors"
	"fmt"

	"conversation_sync_service/pkg/logger"

	"go.uber.org/zap"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log the cause with the operation name and return a wrapped error
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	logger.Log.Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
