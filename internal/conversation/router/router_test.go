package router

import (
	"io"
	"net/http/httptest"
	"testing"

	"conversation_sync_service/internal/conversation/app"
	"conversation_sync_service/pkg/logger"
	t_token "conversation_sync_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	logger.SetNewNop()
	r := fiber.New()
	registry := app.NewSessionRegistry(nil, app.Options{}, nil, 0)
	RegisterRoutes(r, app.NewConversationWebsocketHandler(registry))
	return r
}

func TestRoutes(t *testing.T) {
	r := newTestApp()

	t.Run("connect check", func(t *testing.T) {
		resp, err := r.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("切換 debug", func(t *testing.T) {
		resp, err := r.Test(httptest.NewRequest("POST", "/debug?status=true", nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "debug mode is : true", string(body))
		assert.True(t, logger.Log.IsDebugMode())

		resp, err = r.Test(httptest.NewRequest("POST", "/debug?status=false", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.False(t, logger.Log.IsDebugMode())
	})

	t.Run("debug 參數錯誤", func(t *testing.T) {
		resp, err := r.Test(httptest.NewRequest("POST", "/debug?status=maybe", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ws 沒有 token", func(t *testing.T) {
		resp, err := r.Test(httptest.NewRequest("GET", "/ws", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ws 不是 upgrade 請求", func(t *testing.T) {
		tokenStr, err := t_token.GenerateJWT("m1", string(t_token.RoleMember), "test")
		require.NoError(t, err)
		resp, err := r.Test(httptest.NewRequest("GET", "/ws?auth="+tokenStr, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	})
}
