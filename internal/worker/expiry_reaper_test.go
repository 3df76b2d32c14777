package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTicketReaper struct {
	mock.Mock
}

func (m *MockTicketReaper) ReapExpired(ctx context.Context, now time.Time) ([]int64, error) {
	args := m.Called(ctx, now)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

type MockCacheInvalidator struct {
	mock.Mock
}

func (m *MockCacheInvalidator) InvalidateReservationSideEffects(ctx context.Context, eventID int64) {
	m.Called(ctx, eventID)
}

func TestNewExpiryReaper(t *testing.T) {
	reaper := NewExpiryReaper(new(MockTicketReaper), new(MockCacheInvalidator), 5*time.Minute, 1*time.Minute)

	assert.NotNil(t, reaper)
	assert.Equal(t, 5*time.Minute, reaper.period)
	assert.Equal(t, 1*time.Minute, reaper.initialDelay)
	assert.NotNil(t, reaper.stopCh)
	assert.NotNil(t, reaper.doneCh)
}

func TestExpiryReaper_Reap(t *testing.T) {
	t.Run("回収対象があればキャッシュを無効化する", func(t *testing.T) {
		mockRepo := new(MockTicketReaper)
		mockCache := new(MockCacheInvalidator)
		mockRepo.On("ReapExpired", mock.Anything, mock.Anything).Return([]int64{1, 2}, nil)
		mockCache.On("InvalidateReservationSideEffects", mock.Anything, int64(1)).Return()
		mockCache.On("InvalidateReservationSideEffects", mock.Anything, int64(2)).Return()

		reaper := &ExpiryReaper{
			ticketRepo:   mockRepo,
			eventService: mockCache,
			stopCh:       make(chan struct{}),
			doneCh:       make(chan struct{}),
		}
		reaper.reap(context.Background())

		mockRepo.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("回収対象がなければキャッシュ無効化を呼ばない", func(t *testing.T) {
		mockRepo := new(MockTicketReaper)
		mockCache := new(MockCacheInvalidator)
		mockRepo.On("ReapExpired", mock.Anything, mock.Anything).Return([]int64{}, nil)

		reaper := &ExpiryReaper{
			ticketRepo:   mockRepo,
			eventService: mockCache,
			stopCh:       make(chan struct{}),
			doneCh:       make(chan struct{}),
		}
		reaper.reap(context.Background())

		mockRepo.AssertExpectations(t)
		mockCache.AssertNotCalled(t, "InvalidateReservationSideEffects")
	})

	t.Run("エラーが発生しても継続する", func(t *testing.T) {
		mockRepo := new(MockTicketReaper)
		mockCache := new(MockCacheInvalidator)
		mockRepo.On("ReapExpired", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		reaper := &ExpiryReaper{
			ticketRepo:   mockRepo,
			eventService: mockCache,
			stopCh:       make(chan struct{}),
			doneCh:       make(chan struct{}),
		}
		reaper.reap(context.Background())

		mockRepo.AssertExpectations(t)
		mockCache.AssertNotCalled(t, "InvalidateReservationSideEffects")
	})
}

func TestExpiryReaper_StartStop(t *testing.T) {
	t.Run("開始と停止が正常に動作する", func(t *testing.T) {
		mockRepo := new(MockTicketReaper)
		mockCache := new(MockCacheInvalidator)
		mockRepo.On("ReapExpired", mock.Anything, mock.Anything).Return([]int64{}, nil).Maybe()

		reaper := NewExpiryReaper(mockRepo, mockCache, 50*time.Millisecond, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go reaper.Start(ctx)
		time.Sleep(120 * time.Millisecond)
		reaper.Stop()

		select {
		case <-reaper.doneCh:
		case <-time.After(1 * time.Second):
			t.Error("reaper did not stop in time")
		}
	})

	t.Run("コンテキストキャンセルで停止する", func(t *testing.T) {
		mockRepo := new(MockTicketReaper)
		mockCache := new(MockCacheInvalidator)
		mockRepo.On("ReapExpired", mock.Anything, mock.Anything).Return([]int64{}, nil).Maybe()

		reaper := NewExpiryReaper(mockRepo, mockCache, 50*time.Millisecond, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			reaper.Start(ctx)
			close(done)
		}()

		time.Sleep(80 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.Error("reaper did not stop after context cancel")
		}
	})
}
