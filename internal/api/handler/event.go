package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/ticket-reservation/internal/application"
	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/domain/event"
)

// EventHandler はイベント関連エンドポイントのハンドラー
type EventHandler struct {
	eventService EventServiceInterface
}

// NewEventHandler は EventHandler を作成する
func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// CreateEventRequest は POST /events のリクエストボディ
type CreateEventRequest struct {
	Name         string `json:"name" validate:"required,min=3,max=100" example:"東京ドームコンサート2026"`
	Venue        string `json:"venue" validate:"required,min=3,max=255" example:"東京ドーム"`
	EventDate    string `json:"eventDate" validate:"required" example:"2026-12-31T18:00:00+09:00"`
	TotalTickets int    `json:"totalTickets" validate:"required,gt=0" example:"50000"`
}

// EventResponse はイベントのレスポンス表現
type EventResponse struct {
	ID               int64  `json:"id" example:"1"`
	Name             string `json:"name" example:"東京ドームコンサート2026"`
	Venue            string `json:"venue" example:"東京ドーム"`
	EventDate        string `json:"eventDate" example:"2026-12-31T18:00:00+09:00"`
	TotalTickets     int    `json:"totalTickets" example:"50000"`
	AvailableTickets int    `json:"availableTickets" example:"49999"`
	CreatedAt        string `json:"createdAt" example:"2026-01-01T10:00:00+09:00"`
}

func toEventResponse(e *event.WithAvailability) *EventResponse {
	return &EventResponse{
		ID:               e.ID,
		Name:             e.Name,
		Venue:            e.Venue,
		EventDate:        e.EventDate.Format(time.RFC3339),
		TotalTickets:     e.TotalTickets,
		AvailableTickets: e.AvailableTickets,
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
	}
}

func newEventResponse(e *event.Event, availableTickets int) *EventResponse {
	return toEventResponse(&event.WithAvailability{Event: *e, AvailableTickets: availableTickets})
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントを作成し、totalTickets 枚の AVAILABLE チケットをシードする
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("request body is malformed")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		return apperr.Validation("eventDate must be RFC3339 formatted")
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Name:         req.Name,
		Venue:        req.Venue,
		EventDate:    eventDate,
		TotalTickets: req.TotalTickets,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newEventResponse(e, e.TotalTickets))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path int true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id, err := parseEventID(c)
	if err != nil {
		return err
	}

	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Tags events
// @Produce json
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.eventService.ListEvents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// ListPaged godoc
// @Summary イベント一覧をページングで取得
// @Tags events
// @Produce json
// @Param page query int false "ページ番号" default(1)
// @Param size query int false "ページサイズ" default(20)
// @Param sort query string false "並び順キー"
// @Success 200 {object} application.Page
// @Router /events/paged [get]
func (h *EventHandler) ListPaged(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	sortKey := c.QueryParam("sort")

	result, err := h.eventService.ListEventsPaged(c.Request().Context(), page, size, sortKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ListAvailable godoc
// @Summary AVAILABLEなチケットを1枚以上持つイベント一覧を取得
// @Tags events
// @Produce json
// @Success 200 {array} EventResponse
// @Router /events/available [get]
func (h *EventHandler) ListAvailable(c echo.Context) error {
	events, err := h.eventService.ListAvailableEvents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

func toEventResponses(events []*event.WithAvailability) []*EventResponse {
	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return responses
}

func parseEventID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id must be a positive integer")
	}
	return id, nil
}
