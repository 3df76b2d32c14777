package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/domain/ticket"
	"github.com/sanosuguru/ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/ticket-reservation/internal/lock"
	"github.com/sanosuguru/ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/ticket-reservation/internal/pkg/metrics"
)

const (
	defaultReservationWindow = 10 * time.Minute
	defaultLockWaitBudget    = 3 * time.Second
	defaultLockLeaseBudget   = 10 * time.Second
)

// TicketService はチケット予約のオーケストレーション（ロック取得→選択→
// コミット→キャッシュ無効化→ロック解放）を担う
type TicketService struct {
	txManager         transaction.Manager
	ticketRepo        ticket.Repository
	lockManager       lock.Manager
	eventService      *EventService
	reservationWindow time.Duration
	lockWaitBudget    time.Duration
	lockLeaseBudget   time.Duration
	metrics           *metrics.Metrics
}

// NewTicketService は TicketService を作成する。window/waitBudget/leaseBudget
// に0を渡した場合はデフォルト値が使われる。m は nil でよい（メトリクス記録をスキップする）
func NewTicketService(tm transaction.Manager, tr ticket.Repository, lm lock.Manager, es *EventService, window, waitBudget, leaseBudget time.Duration, m *metrics.Metrics) *TicketService {
	if window <= 0 {
		window = defaultReservationWindow
	}
	if waitBudget <= 0 {
		waitBudget = defaultLockWaitBudget
	}
	if leaseBudget <= 0 {
		leaseBudget = defaultLockLeaseBudget
	}
	return &TicketService{
		txManager:         tm,
		ticketRepo:        tr,
		lockManager:       lm,
		eventService:      es,
		reservationWindow: window,
		lockWaitBudget:    waitBudget,
		lockLeaseBudget:   leaseBudget,
		metrics:           m,
	}
}

// Reserve は eventId の中で最小のIDを持つ AVAILABLE チケットを
// customerEmail 名義で RESERVED にする
func (s *TicketService) Reserve(ctx context.Context, eventID int64, customerEmail string) (tk *ticket.Ticket, err error) {
	defer func() {
		if s.metrics != nil {
			s.metrics.ReservationsTotal.WithLabelValues(reservationOutcome(err)).Inc()
		}
	}()

	if eventID <= 0 {
		return nil, apperr.Validation("eventId must be a positive integer")
	}
	customerEmail = strings.TrimSpace(customerEmail)
	if customerEmail == "" {
		return nil, apperr.Validation("customerEmail must not be blank")
	}

	// 予約対象イベントの存在確認（ロック取得前、無駄なロック争いを避ける）
	if _, err := s.eventService.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	lockKey := fmt.Sprintf("ticket:reserve:event:%d", eventID)
	acquireStart := time.Now()
	l, err := s.lockManager.Acquire(ctx, lockKey, s.lockWaitBudget, s.lockLeaseBudget)
	s.observeLockDuration("acquire", err, time.Since(acquireStart))
	if err != nil {
		if errors.Is(err, lock.ErrUnavailable) {
			return nil, apperr.LockBusy("reservation lock is currently held by another request")
		}
		return nil, apperr.InternalWrap("ロック取得に失敗しました", err)
	}
	defer func() {
		releaseStart := time.Now()
		releaseErr := s.lockManager.Release(ctx, l)
		s.observeLockDuration("release", releaseErr, time.Since(releaseStart))
		if releaseErr != nil {
			logger.Warn("ロック解放エラー", zap.Error(releaseErr), zap.String("key", lockKey))
		}
	}()

	tk, err = s.reserveInTx(ctx, eventID, customerEmail)
	if err != nil {
		return nil, err
	}

	s.eventService.InvalidateReservationSideEffects(ctx, eventID)
	return tk, nil
}

// observeLockDuration は分散ロック操作の所要時間を記録する
func (s *TicketService) observeLockDuration(operation string, err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	s.metrics.DistributedLockDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// reservationOutcome は Reserve の結果を apperr.Kind に沿ったラベルへ変換する
func reservationOutcome(err error) string {
	if err == nil {
		return "success"
	}
	switch apperr.KindOf(err) {
	case apperr.NoTicketsAvail:
		return "no_tickets"
	case apperr.LockUnavailable:
		return "lock_unavailable"
	case apperr.EventNotFound:
		return "event_not_found"
	default:
		return "error"
	}
}

func (s *TicketService) reserveInTx(ctx context.Context, eventID int64, customerEmail string) (*ticket.Ticket, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, apperr.InternalWrap("トランザクション開始に失敗しました", err)
	}
	defer tx.Rollback()

	until := time.Now().Add(s.reservationWindow)
	tk, err := s.ticketRepo.ReserveFirstAvailable(ctx, tx, eventID, customerEmail, until)
	if err != nil {
		if errors.Is(err, ticket.ErrNotAvailable) {
			return nil, apperr.NoTickets("No tickets available for this event")
		}
		return nil, apperr.InternalWrap("チケット予約に失敗しました", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.InternalWrap("コミットに失敗しました", err)
	}
	return tk, nil
}

// ListAvailableTickets はイベントの AVAILABLE チケット一覧を返す
func (s *TicketService) ListAvailableTickets(ctx context.Context, eventID int64) ([]*ticket.Ticket, error) {
	if eventID <= 0 {
		return nil, apperr.Validation("eventId must be a positive integer")
	}
	if _, err := s.eventService.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.ticketRepo.ListAvailableByEvent(ctx, eventID)
}

// ListByCustomer は顧客が保持する全チケットを返す（ステータスによる
// 絞り込みはしない。source の挙動に一致させている）
func (s *TicketService) ListByCustomer(ctx context.Context, email string) ([]*ticket.Ticket, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Validation("email must not be blank")
	}
	return s.ticketRepo.ListByCustomerEmail(ctx, email)
}
