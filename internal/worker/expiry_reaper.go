package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/ticket-reservation/internal/pkg/logger"
)

// TicketReaper は期限切れ RESERVED チケットを回収するインターフェース
type TicketReaper interface {
	ReapExpired(ctx context.Context, now time.Time) ([]int64, error)
}

// CacheInvalidator は回収によって影響を受けたイベントのキャッシュを無効化する
type CacheInvalidator interface {
	InvalidateReservationSideEffects(ctx context.Context, eventID int64)
}

// ExpiryReaper は期限切れ RESERVED チケットを固定間隔で AVAILABLE に戻す
// バックグラウンドワーカー（I6 の担い手）
type ExpiryReaper struct {
	ticketRepo   TicketReaper
	eventService CacheInvalidator
	period       time.Duration
	initialDelay time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewExpiryReaper は新しい ExpiryReaper を作成する
func NewExpiryReaper(tr TicketReaper, es CacheInvalidator, period, initialDelay time.Duration) *ExpiryReaper {
	return &ExpiryReaper{
		ticketRepo:   tr,
		eventService: es,
		period:       period,
		initialDelay: initialDelay,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start はリーパーを開始する。initialDelay 経過後に最初のティックを行い、
// 以後は period 間隔で実行する
func (r *ExpiryReaper) Start(ctx context.Context) {
	logger.Info("期限切れチケットリーパー開始",
		zap.Duration("period", r.period),
		zap.Duration("initial_delay", r.initialDelay),
	)
	defer close(r.doneCh)

	timer := time.NewTimer(r.initialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		logger.Info("リーパー停止（コンテキストキャンセル）")
		return
	case <-r.stopCh:
		logger.Info("リーパー停止（シグナル受信）")
		return
	case <-timer.C:
		r.reap(ctx)
	}

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("リーパー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("リーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

// Stop はリーパーを停止する
func (r *ExpiryReaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reap は単一バッチUPDATEで期限切れチケットを回収する。失敗はログに
// 残すだけで、次のティックで再試行する（失敗を外へ伝播させない）
func (r *ExpiryReaper) reap(ctx context.Context) {
	log := logger.Get()

	affectedEventIDs, err := r.ticketRepo.ReapExpired(ctx, time.Now())
	if err != nil {
		log.Error("期限切れチケットの回収に失敗", zap.Error(err))
		return
	}

	if len(affectedEventIDs) == 0 {
		log.Debug("期限切れチケットなし")
		return
	}

	for _, eventID := range affectedEventIDs {
		r.eventService.InvalidateReservationSideEffects(ctx, eventID)
	}
	log.Info("期限切れチケットを回収", zap.Int64s("event_ids", affectedEventIDs))
}
