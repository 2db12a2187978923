package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-registration/internal/application"
	"github.com/sanosuguru/go-event-registration/internal/domain/event"
)

type RegistrationHandler struct {
	registrationService RegistrationServiceInterface
	availabilityService AvailabilityServiceInterface
}

func NewRegistrationHandler(registrationService RegistrationServiceInterface, availabilityService AvailabilityServiceInterface) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
		availabilityService: availabilityService,
	}
}

// RegisterRequest は参加登録のリクエスト
type RegisterRequest struct {
	TicketTypeID string            `json:"ticket_type_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	AmountPaid   float64           `json:"amount_paid" validate:"gte=0" example:"5000"`
	SessionIDs   []string          `json:"session_ids"`
	AttendeeInfo map[string]string `json:"attendee_info"`
}

// RegistrationResponse は参加登録のレスポンス
type RegistrationResponse struct {
	EventID      string             `json:"event_id"`
	EventTitle   string             `json:"event_title"`
	Registration event.Registration `json:"registration"`
}

// AvailabilityResponse はチケットの販売状況のレスポンス
type AvailabilityResponse struct {
	EventID     string                     `json:"event_id"`
	TicketTypes []event.TicketAvailability `json:"ticket_types"`
}

// Register godoc
// @Summary イベントに参加登録
// @Description 公開中のイベントのチケットを1枚確保して参加登録します
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body RegisterRequest true "登録情報"
// @Success 201 {object} RegistrationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/registrations [post]
func (h *RegistrationHandler) Register(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.registrationService.RegisterForEvent(c.Request().Context(), application.RegisterForEventInput{
		EventID:      c.Param("id"),
		Attendee:     actor,
		TicketTypeID: req.TicketTypeID,
		AmountPaid:   req.AmountPaid,
		SessionIDs:   req.SessionIDs,
		AttendeeInfo: req.AttendeeInfo,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, RegistrationResponse{
		EventID:      result.Event.ID,
		EventTitle:   result.Event.Title,
		Registration: result.Registration,
	})
}

// Availability godoc
// @Summary チケットの販売状況
// @Tags registrations
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} AvailabilityResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/availability [get]
func (h *RegistrationHandler) Availability(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	eventID := c.Param("id")
	availability, err := h.availabilityService.GetAvailability(c.Request().Context(), actor, eventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{
		EventID:     eventID,
		TicketTypes: nonNil(availability),
	})
}
