package errprocess

import (
	"errors"
	"testing"

	"conversation_sync_service/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	logger.SetNewNop()
	cause := errors.New("connection refused")

	t.Run("nil 不包裝", func(t *testing.T) {
		assert.NoError(t, Wrap("find user", nil))
	})

	t.Run("保留原因", func(t *testing.T) {
		err := Wrap("find user", cause)
		assert.ErrorIs(t, err, cause)
		assert.EqualError(t, err, "find user: connection refused")
	})

	t.Run("Set", func(t *testing.T) {
		assert.EqualError(t, Set("unknown stream transport"), "unknown stream transport")
	})
}
