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

// Identity は検証済みトークンから得たユーザー情報
type Identity struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	Roles     []string
}

// IdentityService は認証済みの利用者をユーザーストアと照合して Actor を組み立てる
type IdentityService struct {
	userRepo user.Repository
	clock    clock.Clock
}

// NewIdentityService は IdentityService を作成する
func NewIdentityService(userRepo user.Repository, clk clock.Clock) *IdentityService {
	return &IdentityService{userRepo: userRepo, clock: clk}
}

// ResolveActor はユーザーストアのロールで Actor を返す。
// 初回アクセスのユーザーはトークンの内容から作成する。メールアドレスの無いトークンでは作成しない
func (s *IdentityService) ResolveActor(ctx context.Context, id Identity) (user.Actor, error) {
	u, err := s.userRepo.GetByID(ctx, id.UserID)
	if err == nil {
		return u.Actor(), nil
	}
	if !errors.Is(err, user.ErrUserNotFound) || id.Email == "" {
		return user.Actor{}, err
	}

	u, err = s.provision(ctx, id)
	if err != nil {
		return user.Actor{}, err
	}
	return u.Actor(), nil
}

func (s *IdentityService) provision(ctx context.Context, id Identity) (*user.User, error) {
	roles := user.ParseRoles(id.Roles)
	if len(roles) == 0 {
		roles = []user.Role{user.RoleAttendee}
	}
	now := s.clock.Now()
	u := &user.User{
		ID:            id.UserID,
		Email:         id.Email,
		FirstName:     id.FirstName,
		LastName:      id.LastName,
		Roles:         roles,
		Notifications: []user.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		// 同時に初回アクセスした別リクエストが先に作成した
		if errors.Is(err, user.ErrUserAlreadyExists) {
			return s.userRepo.GetByID(ctx, id.UserID)
		}
		return nil, fmt.Errorf("ユーザー作成に失敗しました: %w", err)
	}
	logger.Info("ユーザーを作成しました", zap.String("user_id", u.ID), zap.Strings("roles", user.RoleStrings(roles)))
	return u, nil
}

// GetProfile はユーザーのプロフィールを返す
func (s *IdentityService) GetProfile(ctx context.Context, userID string) (*user.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfile は本人のプロフィールを更新する。ロールと受信箱は変更しない
func (s *IdentityService) UpdateProfile(ctx context.Context, userID string, p user.ProfileUpdate) (*user.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.UpdateProfile(p, s.clock.Now())
	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("プロフィール更新に失敗しました: %w", err)
	}
	return u, nil
}
