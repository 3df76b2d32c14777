package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/domain/ticket"
)

// MockTicketService は TicketServiceInterface のモック
type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) Reserve(ctx context.Context, eventID int64, customerEmail string) (*ticket.Ticket, error) {
	args := m.Called(ctx, eventID, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockTicketService) ListAvailableTickets(ctx context.Context, eventID int64) ([]*ticket.Ticket, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Ticket), args.Error(1)
}

func (m *MockTicketService) ListByCustomer(ctx context.Context, email string) ([]*ticket.Ticket, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Ticket), args.Error(1)
}

func TestTicketHandler_Reserve(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に予約できる", func(t *testing.T) {
		mockService := new(MockTicketService)
		now := time.Now()
		until := now.Add(10 * time.Minute)
		email := "taro@example.com"
		expected := &ticket.Ticket{
			ID: 1, EventID: 1, Status: ticket.StatusReserved,
			CustomerEmail: &email, ReservedUntil: &until, CreatedAt: now,
		}

		mockService.On("Reserve", mock.Anything, int64(1), "taro@example.com").Return(expected, nil)

		handler := NewTicketHandler(mockService)

		reqBody := `{"eventId": 1, "customerEmail": "taro@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/tickets/reserve", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Reserve(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp TicketResponse
		err = json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "RESERVED", resp.Status)
		require.NotNil(t, resp.CustomerEmail)
		assert.Equal(t, "taro@example.com", *resp.CustomerEmail)

		mockService.AssertExpectations(t)
	})

	t.Run("不正なメールアドレスでエラー", func(t *testing.T) {
		mockService := new(MockTicketService)
		handler := NewTicketHandler(mockService)

		reqBody := `{"eventId": 1, "customerEmail": "invalid-email"}`
		req := httptest.NewRequest(http.MethodPost, "/tickets/reserve", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Reserve(c)

		require.Error(t, err)
	})

	t.Run("在庫がない場合はサービスのエラーを伝播する", func(t *testing.T) {
		mockService := new(MockTicketService)
		mockService.On("Reserve", mock.Anything, int64(1), "taro@example.com").
			Return(nil, apperr.NoTickets("予約可能なチケットがありません"))

		handler := NewTicketHandler(mockService)

		reqBody := `{"eventId": 1, "customerEmail": "taro@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/tickets/reserve", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Reserve(c)

		require.Error(t, err)
		ae, ok := err.(*apperr.Error)
		require.True(t, ok)
		assert.Equal(t, apperr.NoTicketsAvail, ae.Kind)

		mockService.AssertExpectations(t)
	})

	t.Run("ロック取得に失敗した場合はサービスのエラーを伝播する", func(t *testing.T) {
		mockService := new(MockTicketService)
		mockService.On("Reserve", mock.Anything, int64(1), "taro@example.com").
			Return(nil, apperr.LockBusy("現在混み合っています"))

		handler := NewTicketHandler(mockService)

		reqBody := `{"eventId": 1, "customerEmail": "taro@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/tickets/reserve", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Reserve(c)

		require.Error(t, err)
		ae, ok := err.(*apperr.Error)
		require.True(t, ok)
		assert.Equal(t, apperr.LockUnavailable, ae.Kind)

		mockService.AssertExpectations(t)
	})
}

func TestTicketHandler_ListByEvent(t *testing.T) {
	e := NewTestEcho()

	t.Run("AVAILABLEなチケット一覧を取得できる", func(t *testing.T) {
		mockService := new(MockTicketService)
		now := time.Now()
		tickets := []*ticket.Ticket{
			{ID: 1, EventID: 1, Status: ticket.StatusAvailable, CreatedAt: now},
			{ID: 2, EventID: 1, Status: ticket.StatusAvailable, CreatedAt: now},
		}

		mockService.On("ListAvailableTickets", mock.Anything, int64(1)).Return(tickets, nil)

		handler := NewTicketHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/tickets/event/1", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("eventId")
		c.SetParamValues("1")

		err := handler.ListByEvent(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp []*TicketResponse
		err = json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Len(t, resp, 2)

		mockService.AssertExpectations(t)
	})

	t.Run("不正なeventIdでエラー", func(t *testing.T) {
		mockService := new(MockTicketService)
		handler := NewTicketHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/tickets/event/abc", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("eventId")
		c.SetParamValues("abc")

		err := handler.ListByEvent(c)

		require.Error(t, err)
		ae, ok := err.(*apperr.Error)
		require.True(t, ok)
		assert.Equal(t, apperr.ValidationFailed, ae.Kind)
	})
}

func TestTicketHandler_ListByCustomer(t *testing.T) {
	e := NewTestEcho()

	t.Run("顧客のチケット一覧を取得できる", func(t *testing.T) {
		mockService := new(MockTicketService)
		now := time.Now()
		email := "taro@example.com"
		tickets := []*ticket.Ticket{
			{ID: 1, EventID: 1, Status: ticket.StatusReserved, CustomerEmail: &email, CreatedAt: now},
		}

		mockService.On("ListByCustomer", mock.Anything, "taro@example.com").Return(tickets, nil)

		handler := NewTicketHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/tickets/customer/taro@example.com", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("email")
		c.SetParamValues("taro@example.com")

		err := handler.ListByCustomer(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp []*TicketResponse
		err = json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Len(t, resp, 1)

		mockService.AssertExpectations(t)
	})
}
