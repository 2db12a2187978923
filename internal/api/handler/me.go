package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// MeHandler はログインユーザー自身のリソースを扱う
type MeHandler struct {
	profileService      ProfileServiceInterface
	eventService        EventServiceInterface
	notificationService NotificationServiceInterface
}

func NewMeHandler(profileService ProfileServiceInterface, eventService EventServiceInterface, notificationService NotificationServiceInterface) *MeHandler {
	return &MeHandler{
		profileService:      profileService,
		eventService:        eventService,
		notificationService: notificationService,
	}
}

// ProfileResponse はプロフィールのレスポンス
type ProfileResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Roles       []string `json:"roles"`
	UnreadCount int      `json:"unread_count"`
}

// Profile godoc
// @Summary プロフィールを取得
// @Tags me
// @Produce json
// @Success 200 {object} ProfileResponse
// @Router /me [get]
func (h *MeHandler) Profile(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	u, err := h.profileService.GetProfile(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(u))
}

// ProfileRequest はプロフィール更新のリクエスト
type ProfileRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=50" example:"太郎"`
	LastName    string `json:"last_name" validate:"required,min=2,max=50" example:"山田"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone" example:"+819012345678"`
}

func (r *ProfileRequest) toProfileUpdate() user.ProfileUpdate {
	return user.ProfileUpdate{FirstName: r.FirstName, LastName: r.LastName, PhoneNumber: r.PhoneNumber}
}

// UpdateProfile godoc
// @Summary プロフィールを更新
// @Tags me
// @Accept json
// @Produce json
// @Param request body ProfileRequest true "プロフィール"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /me [put]
func (h *MeHandler) UpdateProfile(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req ProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := h.profileService.UpdateProfile(c.Request().Context(), actor.ID, req.toProfileUpdate())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(u))
}

func toProfileResponse(u *user.User) ProfileResponse {
	return ProfileResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Roles:       nonNil(user.RoleStrings(u.Roles)),
		UnreadCount: len(user.Unread(u.Notifications)),
	}
}

// Events godoc
// @Summary 参加登録済みのイベント一覧
// @Tags me
// @Produce json
// @Success 200 {array} EventResponse
// @Router /me/events [get]
func (h *MeHandler) Events(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	events, err := h.eventService.ListMyEvents(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// Notifications godoc
// @Summary 通知一覧
// @Tags me
// @Produce json
// @Param unread query bool false "未読のみ"
// @Success 200 {array} user.Notification
// @Router /me/notifications [get]
func (h *MeHandler) Notifications(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var unreadOnly bool
	if err := echo.QueryParamsBinder(c).Bool("unread", &unreadOnly).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "クエリパラメータが不正です").SetInternal(err)
	}
	notifications, err := h.notificationService.ListNotifications(c.Request().Context(), actor.ID, unreadOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(notifications))
}

// MarkNotificationRead godoc
// @Summary 通知を既読にする
// @Tags me
// @Produce json
// @Param id path string true "通知ID"
// @Success 200 {object} user.Notification
// @Failure 404 {object} api.ErrorResponse
// @Router /me/notifications/{id}/read [post]
func (h *MeHandler) MarkNotificationRead(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	n, err := h.notificationService.MarkRead(c.Request().Context(), actor.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// MarkAllNotificationsRead godoc
// @Summary 全通知を既読にする
// @Tags me
// @Success 204
// @Router /me/notifications/read-all [post]
func (h *MeHandler) MarkAllNotificationsRead(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.notificationService.MarkAllRead(c.Request().Context(), actor.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteNotification godoc
// @Summary 通知を削除する
// @Tags me
// @Param id path string true "通知ID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /me/notifications/{id} [delete]
func (h *MeHandler) DeleteNotification(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.notificationService.Delete(c.Request().Context(), actor.ID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
