package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/application"
	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/auth"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// errorStatuses はドメインエラーとHTTPステータスの対応。上から順に判定する
var errorStatuses = []struct {
	err    error
	status int
}{
	{user.ErrUnauthenticated, http.StatusUnauthorized},
	{auth.ErrMissingToken, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},

	{application.ErrValidation, http.StatusBadRequest},
	{event.ErrInvalidAmountPaid, http.StatusBadRequest},
	{event.ErrAttendeeRequired, http.StatusBadRequest},

	{event.ErrPermissionDenied, http.StatusForbidden},
	{user.ErrAdminRequired, http.StatusForbidden},

	{event.ErrEventNotFound, http.StatusNotFound},
	{event.ErrTicketTypeNotFound, http.StatusNotFound},
	{user.ErrUserNotFound, http.StatusNotFound},
	{user.ErrNotificationNotFound, http.StatusNotFound},

	{event.ErrEventNotPublished, http.StatusConflict},
	{event.ErrAlreadyRegistered, http.StatusConflict},
	{event.ErrTicketUnavailable, http.StatusConflict},
	{event.ErrConcurrencyConflict, http.StatusConflict},
	{event.ErrInvalidStatusTransition, http.StatusConflict},
	{event.ErrEventTerminal, http.StatusConflict},
	{event.ErrTicketTypeInUse, http.StatusConflict},
	{application.ErrEventBusy, http.StatusConflict},
	{user.ErrUserAlreadyExists, http.StatusConflict},
}

// StatusFor はエラーに対応するHTTPステータスを返す。対応が無ければ 500
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusFor(err)
	message := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// 5xx は内部情報を返さずログにのみ出力する
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
		message = "内部サーバーエラー"
	}

	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
