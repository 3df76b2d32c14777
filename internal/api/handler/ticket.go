package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/domain/ticket"
)

// TicketHandler はチケット関連エンドポイントのハンドラー
type TicketHandler struct {
	ticketService TicketServiceInterface
}

// NewTicketHandler は TicketHandler を作成する
func NewTicketHandler(ticketService TicketServiceInterface) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// ReserveTicketRequest は POST /tickets/reserve のリクエストボディ
type ReserveTicketRequest struct {
	EventID       int64  `json:"eventId" validate:"required,gt=0" example:"1"`
	CustomerEmail string `json:"customerEmail" validate:"required,email" example:"taro@example.com"`
}

// TicketResponse はチケットのレスポンス表現
type TicketResponse struct {
	ID             int64   `json:"id" example:"1"`
	EventID        int64   `json:"eventId" example:"1"`
	Status         string  `json:"status" example:"RESERVED"`
	CustomerEmail  *string `json:"customerEmail,omitempty" example:"taro@example.com"`
	ReservedUntil  *string `json:"reservedUntil,omitempty" example:"2026-01-01T10:10:00+09:00"`
	CreatedAt      string  `json:"createdAt" example:"2026-01-01T10:00:00+09:00"`
}

func toTicketResponse(t *ticket.Ticket) *TicketResponse {
	resp := &TicketResponse{
		ID:        t.ID,
		EventID:   t.EventID,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
	if t.CustomerEmail != nil {
		resp.CustomerEmail = t.CustomerEmail
	}
	if t.ReservedUntil != nil {
		formatted := t.ReservedUntil.Format(time.RFC3339)
		resp.ReservedUntil = &formatted
	}
	return resp
}

func toTicketResponses(tickets []*ticket.Ticket) []*TicketResponse {
	responses := make([]*TicketResponse, len(tickets))
	for i, t := range tickets {
		responses[i] = toTicketResponse(t)
	}
	return responses
}

// Reserve godoc
// @Summary チケットを予約する
// @Description 指定イベントのAVAILABLEなチケットを1枚確保し、一定時間後に失効する予約状態にする
// @Tags tickets
// @Accept json
// @Produce json
// @Param request body ReserveTicketRequest true "予約情報"
// @Success 201 {object} TicketResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /tickets/reserve [post]
func (h *TicketHandler) Reserve(c echo.Context) error {
	var req ReserveTicketRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("request body is malformed")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	t, err := h.ticketService.Reserve(c.Request().Context(), req.EventID, req.CustomerEmail)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTicketResponse(t))
}

// ListByEvent godoc
// @Summary イベントのAVAILABLEなチケット一覧を取得
// @Tags tickets
// @Produce json
// @Param eventId path int true "イベントID"
// @Success 200 {array} TicketResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tickets/event/{eventId} [get]
func (h *TicketHandler) ListByEvent(c echo.Context) error {
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil || eventID <= 0 {
		return apperr.Validation("eventId must be a positive integer")
	}

	tickets, err := h.ticketService.ListAvailableTickets(c.Request().Context(), eventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTicketResponses(tickets))
}

// ListByCustomer godoc
// @Summary 顧客のチケット一覧を取得
// @Tags tickets
// @Produce json
// @Param email path string true "顧客メールアドレス"
// @Success 200 {array} TicketResponse
// @Failure 400 {object} ErrorResponse
// @Router /tickets/customer/{email} [get]
func (h *TicketHandler) ListByCustomer(c echo.Context) error {
	email := c.Param("email")

	tickets, err := h.ticketService.ListByCustomer(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTicketResponses(tickets))
}
