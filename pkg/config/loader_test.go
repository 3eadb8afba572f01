package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `port: ${TEST_CONVERSATION_PORT}
upstream:
  base_url: http://upstream.local/api/v1
  timeout: 3
stream:
  transport: redis
mongo:
  host: mongo
  port: 27017
  retry_count: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conversation_test.yaml"), []byte(yaml), 0644))
	t.Setenv("TEST_CONVERSATION_PORT", "9099")

	t.Run("展開環境變數", func(t *testing.T) {
		cfg, err := ReadConfig[Conversation]("conversation_test", dir)
		require.NoError(t, err)

		assert.Equal(t, "9099", cfg.Port)
		assert.Equal(t, "http://upstream.local/api/v1", cfg.Upstream.BaseURL)
		assert.Equal(t, 3, cfg.Upstream.Timeout)
		assert.Equal(t, "redis", cfg.Stream.Transport)
		assert.Equal(t, "mongo", cfg.MongoSQL.Host)
		assert.Equal(t, 2, cfg.MongoSQL.RetryCount)
	})

	t.Run("預設值", func(t *testing.T) {
		cfg, err := ReadConfig[Conversation]("conversation_test", dir)
		require.NoError(t, err)
		cfg.ApplyDefaults()

		assert.Equal(t, 4, cfg.List.ParticipantLimit)
		assert.Equal(t, 1, cfg.List.PreviewMessageLimit)
		assert.Equal(t, "chat:user:", cfg.Stream.Channel)
		assert.Equal(t, "redis", cfg.Stream.Transport)
	})

	t.Run("找不到設定檔", func(t *testing.T) {
		_, err := ReadConfig[Conversation]("missing", dir)
		assert.Error(t, err)
	})
}
