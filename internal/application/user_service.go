package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
)

// ListUsersInput はユーザー一覧の検索条件
type ListUsersInput struct {
	Name   string
	Role   string
	Email  string // 指定時は完全一致で1件に絞る
	Limit  int
	Offset int
}

// UpdateUserInput は管理者によるユーザー更新の入力。nil の項目は変更しない
type UpdateUserInput struct {
	Profile *user.ProfileUpdate
	Roles   []string
}

// UserService は管理者向けのユーザー管理を扱う
type UserService struct {
	userRepo user.Repository
	clock    clock.Clock
}

// NewUserService は UserService を作成する
func NewUserService(userRepo user.Repository, clk clock.Clock) *UserService {
	return &UserService{userRepo: userRepo, clock: clk}
}

// ListUsers は条件に一致するユーザーを返す
func (s *UserService) ListUsers(ctx context.Context, actor user.Actor, in ListUsersInput) ([]*user.User, error) {
	if !actor.IsAdmin() {
		return nil, user.ErrAdminRequired
	}

	filter := user.ListFilter{Name: in.Name, Limit: in.Limit, Offset: in.Offset}
	if in.Role != "" {
		roles := user.ParseRoles([]string{in.Role})
		if len(roles) == 0 {
			return nil, fmt.Errorf("%w: %w", ErrValidation, user.ErrInvalidRole)
		}
		filter.Role = roles[0]
	}

	if in.Email != "" {
		u, err := s.userRepo.GetByEmail(ctx, in.Email)
		if errors.Is(err, user.ErrUserNotFound) {
			return []*user.User{}, nil
		}
		if err != nil {
			return nil, err
		}
		if !filter.Matches(u) || filter.Offset > 0 {
			return []*user.User{}, nil
		}
		return []*user.User{u}, nil
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.userRepo.List(ctx, filter)
}

// GetUser はユーザーを返す
func (s *UserService) GetUser(ctx context.Context, actor user.Actor, userID string) (*user.User, error) {
	if !actor.IsAdmin() {
		return nil, user.ErrAdminRequired
	}
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateUser はユーザーのプロフィールとロールを更新する
func (s *UserService) UpdateUser(ctx context.Context, actor user.Actor, userID string, in UpdateUserInput) (*user.User, error) {
	if !actor.IsAdmin() {
		return nil, user.ErrAdminRequired
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if in.Profile != nil {
		u.UpdateProfile(*in.Profile, now)
	}
	if in.Roles != nil {
		roles := user.ParseRoles(in.Roles)
		if len(roles) != len(in.Roles) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, user.ErrInvalidRole)
		}
		if err := u.ReplaceRoles(roles, now); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("ユーザー更新に失敗しました: %w", err)
	}
	logger.Info("ユーザーを更新しました",
		zap.String("user_id", u.ID),
		zap.String("admin_id", actor.ID),
		zap.Strings("roles", user.RoleStrings(u.Roles)),
	)
	return u, nil
}

// DeleteUser はユーザーを削除する。参加登録の履歴はイベント側に残る
func (s *UserService) DeleteUser(ctx context.Context, actor user.Actor, userID string) error {
	if !actor.IsAdmin() {
		return user.ErrAdminRequired
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	logger.Info("ユーザーを削除しました", zap.String("user_id", userID), zap.String("admin_id", actor.ID))
	return nil
}
