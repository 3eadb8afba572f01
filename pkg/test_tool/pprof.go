package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"conversation_sync_service/pkg/config"
	"conversation_sync_service/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof 非 production 環境時啟動 pprof 監控伺服器，port 空字串時不啟動
//
//	curl http://localhost:6060/debug/pprof/goroutine?debug=1
//
// 每個會員 session 會有 stream 與訂閱的 goroutine，連線關閉後數量應該回落。
func StartPprof(port string) {
	if config.IsProduction() || port == "" {
		logger.Log.Info("pprof is disabled")
		return
	}

	go func() {
		addr := ":" + port
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Warn("pprof server failed", zap.Error(err))
		}
	}()
}
