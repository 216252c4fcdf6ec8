// Package httputil 各领域 HTTP 处理器共用的响应写入与参数绑定
package httputil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/storage"
)

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError 写入错误响应
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteAppError 按 apperr 类别写入错误响应，内部错误只记录日志不外泄
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
	}
	WriteError(w, status, apperr.PublicMessage(err))
}

// DecodeJSON 解析请求体
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// StoreError 存储层错误 → apperr
// 唯一键冲突视为校验错误并指明字段
func StoreError(entity string, err error) error {
	if err == nil {
		return nil
	}
	if field := storage.DuplicateField(err); field != "" {
		return apperr.Validation("%s with this %s already exists", entity, field)
	}
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return apperr.Validation("%s already exists", entity)
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("%s not found", entity)
	}
	return apperr.Internal("failed to save "+entity, err)
}

// GenerateID 生成带前缀的随机 ID
// 格式：prefix-xxxxxxxxxxxx（prefix + 12 字符 hex）
func GenerateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
