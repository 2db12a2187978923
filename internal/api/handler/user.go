package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-registration/internal/application"
)

// UserHandler は管理者向けのユーザー管理を扱う
type UserHandler struct {
	userService         UserServiceInterface
	notificationService NotificationServiceInterface
}

func NewUserHandler(userService UserServiceInterface, notificationService NotificationServiceInterface) *UserHandler {
	return &UserHandler{userService: userService, notificationService: notificationService}
}

// UpdateUserRequest は管理者によるユーザー更新のリクエスト
type UpdateUserRequest struct {
	Profile *ProfileRequest `json:"profile"`
	Roles   []string        `json:"roles" validate:"omitempty,min=1,dive,oneof=ATTENDEE ORGANIZER ADMIN"`
}

// NotificationRequest は通知作成のリクエスト
type NotificationRequest struct {
	Title           string `json:"title" validate:"required,max=200" example:"明日開催です"`
	Message         string `json:"message" validate:"required,max=2000" example:"Go Night は19時開始です"`
	Type            string `json:"type" validate:"omitempty,oneof=REGISTRATION_CONFIRMATION EVENT_REMINDER SYSTEM" example:"EVENT_REMINDER"`
	RelatedEntityID string `json:"related_entity_id"`
}

// List godoc
// @Summary ユーザー一覧（管理者のみ）
// @Tags users
// @Produce json
// @Param name query string false "姓または名の部分一致"
// @Param role query string false "ロール"
// @Param email query string false "メールアドレス"
// @Param limit query int false "取得件数"
// @Param offset query int false "オフセット"
// @Success 200 {array} ProfileResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /users [get]
func (h *UserHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in application.ListUsersInput
	err = echo.QueryParamsBinder(c).
		String("name", &in.Name).
		String("role", &in.Role).
		String("email", &in.Email).
		Int("limit", &in.Limit).
		Int("offset", &in.Offset).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "クエリパラメータが不正です").SetInternal(err)
	}

	users, err := h.userService.ListUsers(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	resp := make([]ProfileResponse, len(users))
	for i, u := range users {
		resp[i] = toProfileResponse(u)
	}
	return c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary ユーザー詳細（管理者のみ）
// @Tags users
// @Produce json
// @Param id path string true "ユーザーID"
// @Success 200 {object} ProfileResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	u, err := h.userService.GetUser(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(u))
}

// Update godoc
// @Summary ユーザーのプロフィールとロールを更新（管理者のみ）
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "ユーザーID"
// @Param request body UpdateUserRequest true "更新内容"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in := application.UpdateUserInput{Roles: req.Roles}
	if req.Profile != nil {
		p := req.Profile.toProfileUpdate()
		in.Profile = &p
	}
	u, err := h.userService.UpdateUser(c.Request().Context(), actor, c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(u))
}

// Delete godoc
// @Summary ユーザーを削除（管理者のみ）
// @Tags users
// @Param id path string true "ユーザーID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.userService.DeleteUser(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateNotification godoc
// @Summary ユーザーに通知を送る（管理者のみ）
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "ユーザーID"
// @Param request body NotificationRequest true "通知"
// @Success 201 {object} user.Notification
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /users/{id}/notifications [post]
func (h *UserHandler) CreateNotification(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req NotificationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	n, err := h.notificationService.CreateNotification(c.Request().Context(), actor, c.Param("id"), application.CreateNotificationInput{
		Title:           req.Title,
		Message:         req.Message,
		Type:            req.Type,
		RelatedEntityID: req.RelatedEntityID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}
