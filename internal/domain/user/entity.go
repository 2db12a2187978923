package user

import (
	"strings"
	"time"
)

// Role はユーザーのロールを表す
type Role string

const (
	RoleAttendee  Role = "ATTENDEE"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
)

// User はユーザーエンティティを表す（認証・プロフィール管理は外部のIDサービスが担当）
type User struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	PhoneNumber   string
	Roles         []Role
	Notifications []Notification
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName は表示用の氏名を返す
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasRole はロールを保持しているかを返す
func (u *User) HasRole(role Role) bool {
	return hasRole(u.Roles, role)
}

// ProfileUpdate は利用者が変更できるプロフィール項目
type ProfileUpdate struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

// UpdateProfile はプロフィールを置き換える
func (u *User) UpdateProfile(p ProfileUpdate, now time.Time) {
	u.FirstName = strings.TrimSpace(p.FirstName)
	u.LastName = strings.TrimSpace(p.LastName)
	u.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	u.UpdatedAt = now
}

// ReplaceRoles はロールを置き換える。ロールの無いユーザーは作らない
func (u *User) ReplaceRoles(roles []Role, now time.Time) error {
	if len(roles) == 0 {
		return ErrInvalidRole
	}
	u.Roles = append([]Role(nil), roles...)
	u.UpdatedAt = now
	return nil
}

// Actor はユーザーの現時点のスナップショットを返す
func (u *User) Actor() Actor {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return Actor{
		ID:    u.ID,
		Name:  u.FullName(),
		Email: u.Email,
		Roles: roles,
	}
}

// Actor は操作を行う主体。ビジネスロジックにはグローバルな認証状態ではなく明示的に渡す
type Actor struct {
	ID    string
	Name  string
	Email string
	Roles []Role
}

// HasRole はロールを保持しているかを返す
func (a Actor) HasRole(role Role) bool {
	return hasRole(a.Roles, role)
}

// IsAdmin は管理者かを返す
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// CanOrganize はイベントを作成できるかを返す
func (a Actor) CanOrganize() bool {
	return a.HasRole(RoleOrganizer) || a.HasRole(RoleAdmin)
}

func hasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRoles は文字列のロール一覧を変換する（未知のロールは無視）
func ParseRoles(values []string) []Role {
	roles := make([]Role, 0, len(values))
	for _, v := range values {
		switch r := Role(strings.ToUpper(strings.TrimSpace(v))); r {
		case RoleAttendee, RoleOrganizer, RoleAdmin:
			roles = append(roles, r)
		}
	}
	return roles
}

// RoleStrings はロールを文字列スライスに変換する
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
