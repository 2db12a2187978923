package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/application"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/auth"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
)

const actorContextKey = "actor"

// TokenVerifier はアクセストークンを検証する
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// ActorResolver はトークンの主体をユーザーに解決する
type ActorResolver interface {
	ResolveActor(ctx context.Context, id application.Identity) (user.Actor, error)
}

// RequireAuth は Bearer トークンを検証し、解決したユーザーをコンテキストに格納する
func RequireAuth(verifier TokenVerifier, resolver ActorResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return fmt.Errorf("%w: %w", user.ErrUnauthenticated, auth.ErrMissingToken)
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return fmt.Errorf("%w: %w", user.ErrUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				logger.Debug("トークン検証失敗", zap.Error(err))
				return fmt.Errorf("%w: %w", user.ErrUnauthenticated, err)
			}

			actor, err := resolver.ResolveActor(c.Request().Context(), application.Identity{
				UserID:    claims.Subject,
				Email:     claims.Email,
				FirstName: claims.FirstName,
				LastName:  claims.LastName,
				Roles:     claims.Roles,
			})
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					return fmt.Errorf("%w: %w", user.ErrUnauthenticated, err)
				}
				return fmt.Errorf("ユーザーの解決に失敗しました: %w", err)
			}

			SetActor(c, actor)
			return next(c)
		}
	}
}

// SetActor は認証済みユーザーをコンテキストに格納する
func SetActor(c echo.Context, actor user.Actor) {
	c.Set(actorContextKey, actor)
}

// ActorFrom はコンテキストから認証済みユーザーを取り出す
func ActorFrom(c echo.Context) (user.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(user.Actor)
	return actor, ok
}
