package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-registration/internal/application"
	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// EventRequest はイベント作成・更新のリクエスト。
// 更新時に speakers / agenda / ticket_types を省略すると既存の値を維持する
type EventRequest struct {
	Title       string              `json:"title" validate:"required,max=200" example:"Go カンファレンス 2026"`
	Description string              `json:"description" example:"Go の年次カンファレンス"`
	Location    string              `json:"location" example:"東京国際フォーラム"`
	StartDate   time.Time           `json:"start_date" validate:"required" example:"2026-12-01T10:00:00+09:00"`
	EndDate     time.Time           `json:"end_date" validate:"required,gtfield=StartDate" example:"2026-12-01T18:00:00+09:00"`
	Category    string              `json:"category" example:"TECH"`
	ImageURL    string              `json:"image_url" validate:"omitempty,url"`
	Metadata    map[string]string   `json:"metadata"`
	Speakers    []event.Speaker     `json:"speakers"`
	Agenda      []event.AgendaItem  `json:"agenda"`
	TicketTypes []TicketTypeRequest `json:"ticket_types" validate:"omitempty,dive"`
}

// TicketTypeRequest はチケット種別の指定。既存の種別を更新する場合は id を指定する
type TicketTypeRequest struct {
	ID            string     `json:"id"`
	Name          string     `json:"name" validate:"required" example:"一般"`
	Description   string     `json:"description"`
	Price         float64    `json:"price" validate:"gte=0" example:"5000"`
	Quantity      int        `json:"quantity" validate:"gte=-1" example:"100"`
	SaleStartDate *time.Time `json:"sale_start_date"`
	SaleEndDate   *time.Time `json:"sale_end_date"`
	IsAvailable   *bool      `json:"is_available"`
}

func (r *EventRequest) toDetails() event.Details {
	d := event.Details{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		Metadata:    r.Metadata,
		Speakers:    r.Speakers,
		Agenda:      r.Agenda,
	}
	if r.TicketTypes != nil {
		d.TicketTypes = make([]event.TicketType, len(r.TicketTypes))
		for i, t := range r.TicketTypes {
			available := true
			if t.IsAvailable != nil {
				available = *t.IsAvailable
			}
			d.TicketTypes[i] = event.TicketType{
				ID:            t.ID,
				Name:          t.Name,
				Description:   t.Description,
				Price:         t.Price,
				Quantity:      t.Quantity,
				SaleStartDate: t.SaleStartDate,
				SaleEndDate:   t.SaleEndDate,
				IsAvailable:   available,
			}
		}
	}
	return d
}

// EventResponse はイベントのレスポンス。参加者の個人情報を含む登録一覧は返さない
type EventResponse struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Location          string             `json:"location"`
	StartDate         string             `json:"start_date,omitempty"`
	EndDate           string             `json:"end_date,omitempty"`
	OrganizerID       string             `json:"organizer_id"`
	OrganizerName     string             `json:"organizer_name"`
	Category          string             `json:"category,omitempty"`
	ImageURL          string             `json:"image_url,omitempty"`
	Status            string             `json:"status"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
	Speakers          []event.Speaker    `json:"speakers"`
	Agenda            []event.AgendaItem `json:"agenda"`
	TicketTypes       []event.TicketType `json:"ticket_types"`
	RegistrationCount int                `json:"registration_count"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
	Version           int                `json:"version"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func toEventResponse(e *event.Event) *EventResponse {
	confirmed := 0
	for i := range e.Registrations {
		if e.Registrations[i].IsConfirmed() {
			confirmed++
		}
	}
	return &EventResponse{
		ID:                e.ID,
		Title:             e.Title,
		Description:       e.Description,
		Location:          e.Location,
		StartDate:         formatTime(e.StartDate),
		EndDate:           formatTime(e.EndDate),
		OrganizerID:       e.OrganizerID,
		OrganizerName:     e.OrganizerName,
		Category:          e.Category,
		ImageURL:          e.ImageURL,
		Status:            string(e.Status),
		Metadata:          e.Metadata,
		Speakers:          nonNil(e.Speakers),
		Agenda:            nonNil(e.Agenda),
		TicketTypes:       nonNil(e.TicketTypes),
		RegistrationCount: confirmed,
		CreatedAt:         formatTime(e.CreatedAt),
		UpdatedAt:         formatTime(e.UpdatedAt),
		Version:           e.Version,
	}
}

func toEventResponses(events []*event.Event) []*EventResponse {
	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return responses
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です").SetInternal(err)
	}
	return c.Validate(req)
}

// Create godoc
// @Summary イベントを作成
// @Description 下書き状態のイベントを作成します（主催者・管理者のみ）
// @Tags events
// @Accept json
// @Produce json
// @Param request body EventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req EventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), actor, req.toDetails())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	e, err := h.eventService.GetEvent(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Description 開始日時の昇順でイベントを返します
// @Tags events
// @Produce json
// @Param status query string false "状態（管理者・自分のイベントのみ有効）"
// @Param category query string false "カテゴリー"
// @Param q query string false "タイトル・説明の部分一致"
// @Param organizer_id query string false "主催者ID"
// @Param upcoming query bool false "開始前のイベントのみ"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var (
		in     application.ListEventsInput
		status string
	)
	err = echo.QueryParamsBinder(c).
		String("status", &status).
		String("category", &in.Category).
		String("organizer_id", &in.OrganizerID).
		String("q", &in.Query).
		Bool("upcoming", &in.Upcoming).
		Int("limit", &in.Limit).
		Int("offset", &in.Offset).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "クエリパラメータが不正です").SetInternal(err)
	}
	if status != "" {
		in.Status = event.Status(strings.ToUpper(status))
		if !in.Status.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "不正な状態です: "+status)
		}
	}

	events, err := h.eventService.ListEvents(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// Update godoc
// @Summary イベントを更新
// @Description 主催者本人または管理者のみ。中止・終了済みのイベントは表示項目のみ変更できます
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body EventRequest true "イベント情報"
// @Success 200 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req EventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), actor, c.Param("id"), req.toDetails())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除
// @Tags events
// @Param id path string true "イベントID"
// @Success 204
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.eventService.DeleteEvent(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Publish godoc
// @Summary イベントを公開
// @Tags events
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/publish [post]
func (h *EventHandler) Publish(c echo.Context) error {
	return h.transition(c, h.eventService.PublishEvent)
}

// Cancel godoc
// @Summary イベントを中止
// @Tags events
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.eventService.CancelEvent)
}

// Complete godoc
// @Summary イベントを終了
// @Tags events
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/complete [post]
func (h *EventHandler) Complete(c echo.Context) error {
	return h.transition(c, h.eventService.CompleteEvent)
}

func (h *EventHandler) transition(c echo.Context, apply func(ctx context.Context, actor user.Actor, id string) (*event.Event, error)) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	e, err := apply(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// ListRegistrations godoc
// @Summary イベントの参加登録一覧
// @Description 主催者本人または管理者のみ
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Param ticket_type_id query string false "チケット種別ID"
// @Success 200 {array} event.Registration
// @Failure 403 {object} api.ErrorResponse
// @Router /events/{id}/registrations [get]
func (h *EventHandler) ListRegistrations(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	regs, err := h.eventService.ListRegistrations(c.Request().Context(), actor, c.Param("id"), c.QueryParam("ticket_type_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(regs))
}
