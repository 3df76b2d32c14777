package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

var kindToStatus = map[apperr.Kind]int{
	apperr.ValidationFailed: http.StatusBadRequest,
	apperr.EventNotFound:    http.StatusNotFound,
	apperr.NoTicketsAvail:   http.StatusConflict,
	apperr.LockUnavailable:  http.StatusServiceUnavailable,
	apperr.Internal:         http.StatusInternalServerError,
}

// CustomHTTPErrorHandler は apperr.Kind を一箇所でHTTPステータスへ変換する
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, message := statusAndMessage(err)

	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	resp := ErrorResponse{
		Status:    code,
		Error:     http.StatusText(code),
		Message:   message,
		Path:      c.Request().URL.Path,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err := c.JSON(code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

func statusAndMessage(err error) (int, string) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		code, ok := kindToStatus[appErr.Kind]
		if !ok || code == http.StatusInternalServerError {
			return http.StatusInternalServerError, "内部サーバーエラーが発生しました"
		}
		return code, appErr.Message
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	}

	return http.StatusInternalServerError, "内部サーバーエラーが発生しました"
}
