package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-registration/internal/api/middleware"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// currentActor は認証ミドルウェアが格納したユーザーを返す
func currentActor(c echo.Context) (user.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return user.Actor{}, user.ErrUnauthenticated
	}
	return actor, nil
}
