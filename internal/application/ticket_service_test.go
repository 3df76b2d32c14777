package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/domain/event"
	"github.com/sanosuguru/ticket-reservation/internal/domain/ticket"
	"github.com/sanosuguru/ticket-reservation/internal/lock"
)

type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) Acquire(ctx context.Context, key string, waitBudget, leaseBudget time.Duration) (lock.Lock, error) {
	args := m.Called(ctx, key, waitBudget, leaseBudget)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(lock.Lock), args.Error(1)
}

func (m *MockLockManager) Release(ctx context.Context, l lock.Lock) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

type fakeLock struct {
	key   string
	token string
}

func (l *fakeLock) Key() string   { return l.key }
func (l *fakeLock) Token() string { return l.token }

func newTicketServiceForTest(eventRepo *MockEventRepository, ticketRepo *MockTicketRepository, lockManager *MockLockManager) *TicketService {
	eventService := NewEventService(nil, eventRepo, ticketRepo, nil, 0, nil)
	txManager := new(MockTxManager)
	txManager.On("Begin", mock.Anything).Return(&fakeTx{}, nil).Maybe()
	return NewTicketService(txManager, ticketRepo, lockManager, eventService, 0, 0, 0, nil)
}

func futureEvent(id int64) *event.Event {
	return &event.Event{ID: id, Name: "テストイベント", Venue: "会場", EventDate: time.Now().Add(time.Hour), TotalTickets: 10, CreatedAt: time.Now()}
}

func TestTicketService_Reserve(t *testing.T) {
	t.Run("ロック取得・予約・解放が成功する", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)
		l := &fakeLock{key: "ticket:reserve:event:1", token: "abc"}

		eventRepo.On("GetByID", mock.Anything, int64(1)).Return(futureEvent(1), nil)
		ticketRepo.On("CountAvailableByEvent", mock.Anything, int64(1)).Return(5, nil).Once()
		lockManager.On("Acquire", mock.Anything, "ticket:reserve:event:1", mock.Anything, mock.Anything).Return(l, nil)
		reserved := &ticket.Ticket{ID: 1, EventID: 1, Status: ticket.StatusReserved}
		ticketRepo.On("ReserveFirstAvailable", mock.Anything, mock.Anything, int64(1), "customer@example.com", mock.Anything).Return(reserved, nil)
		lockManager.On("Release", mock.Anything, l).Return(nil)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		tk, err := svc.Reserve(context.Background(), 1, "customer@example.com")

		require.NoError(t, err)
		assert.Equal(t, ticket.StatusReserved, tk.Status)
		lockManager.AssertExpectations(t)
	})

	t.Run("eventIdが不正なら検証エラー", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		_, err := svc.Reserve(context.Background(), 0, "customer@example.com")

		require.Error(t, err)
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
		eventRepo.AssertNotCalled(t, "GetByID")
	})

	t.Run("customerEmailが空白なら検証エラー", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		_, err := svc.Reserve(context.Background(), 1, "   ")

		require.Error(t, err)
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
	})

	t.Run("イベントが存在しない場合はロックを取得しない", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		eventRepo.On("GetByID", mock.Anything, int64(99)).Return(nil, apperr.NotFoundf("event %d not found", 99))

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		_, err := svc.Reserve(context.Background(), 99, "customer@example.com")

		require.Error(t, err)
		assert.Equal(t, apperr.EventNotFound, apperr.KindOf(err))
		lockManager.AssertNotCalled(t, "Acquire")
	})

	t.Run("ロック取得競合はLockUnavailableへ変換される", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		eventRepo.On("GetByID", mock.Anything, int64(1)).Return(futureEvent(1), nil)
		ticketRepo.On("CountAvailableByEvent", mock.Anything, int64(1)).Return(5, nil)
		lockManager.On("Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, lock.ErrUnavailable)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		_, err := svc.Reserve(context.Background(), 1, "customer@example.com")

		require.Error(t, err)
		assert.Equal(t, apperr.LockUnavailable, apperr.KindOf(err))
	})

	t.Run("在庫切れはNoTicketsAvailへ変換され、ロックは解放される", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)
		l := &fakeLock{key: "ticket:reserve:event:1", token: "abc"}

		eventRepo.On("GetByID", mock.Anything, int64(1)).Return(futureEvent(1), nil)
		ticketRepo.On("CountAvailableByEvent", mock.Anything, int64(1)).Return(0, nil)
		lockManager.On("Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(l, nil)
		ticketRepo.On("ReserveFirstAvailable", mock.Anything, mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return(nil, ticket.ErrNotAvailable)
		lockManager.On("Release", mock.Anything, l).Return(nil)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		_, err := svc.Reserve(context.Background(), 1, "customer@example.com")

		require.Error(t, err)
		assert.Equal(t, apperr.NoTicketsAvail, apperr.KindOf(err))
		lockManager.AssertExpectations(t)
	})
}

func TestTicketService_ListAvailableTickets(t *testing.T) {
	t.Run("イベント存在確認後に一覧を返す", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		eventRepo.On("GetByID", mock.Anything, int64(1)).Return(futureEvent(1), nil)
		ticketRepo.On("CountAvailableByEvent", mock.Anything, int64(1)).Return(3, nil)
		expected := []*ticket.Ticket{{ID: 1, EventID: 1, Status: ticket.StatusAvailable}}
		ticketRepo.On("ListAvailableByEvent", mock.Anything, int64(1)).Return(expected, nil)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		result, err := svc.ListAvailableTickets(context.Background(), 1)

		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("eventIdが不正なら検証エラー", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		_, err := svc.ListAvailableTickets(context.Background(), -1)

		require.Error(t, err)
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
	})
}

func TestTicketService_ListByCustomer(t *testing.T) {
	t.Run("顧客の全チケットを返す", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		expected := []*ticket.Ticket{{ID: 1, EventID: 1, Status: ticket.StatusReserved}}
		ticketRepo.On("ListByCustomerEmail", mock.Anything, "customer@example.com").Return(expected, nil)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		result, err := svc.ListByCustomer(context.Background(), "customer@example.com")

		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("emailが空白なら検証エラー", func(t *testing.T) {
		eventRepo := new(MockEventRepository)
		ticketRepo := new(MockTicketRepository)
		lockManager := new(MockLockManager)

		svc := newTicketServiceForTest(eventRepo, ticketRepo, lockManager)
		_, err := svc.ListByCustomer(context.Background(), "  ")

		require.Error(t, err)
		assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
	})
}
