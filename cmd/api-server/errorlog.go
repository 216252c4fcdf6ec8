package main

import (
	"log"
	"strings"

	"library-admin/pkg/logging"
)

// serverErrorWriter 把 http.Server 内部错误转写到结构化日志
// 客户端断开导致的 TLS 握手错误直接丢弃
type serverErrorWriter struct {
	logger *logging.Logger
}

func (w *serverErrorWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" || strings.Contains(msg, "TLS handshake error") {
		return len(p), nil
	}
	w.logger.Warn("http server error", "detail", msg)
	return len(p), nil
}

// newServerErrorLog 用于 http.Server.ErrorLog
func newServerErrorLog(logger *logging.Logger) *log.Logger {
	return log.New(&serverErrorWriter{logger: logger.Component("http")}, "", 0)
}
