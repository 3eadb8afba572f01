package app

import (
	"os"
	"testing"

	"conversation_sync_service/pkg/logger"
)

// TestMain 整個 package 共用 no-op logger，背景 goroutine 不會與替換 logger 競爭
func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}
