package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/domain/event"
	"github.com/sanosuguru/ticket-reservation/internal/domain/ticket"
	"github.com/sanosuguru/ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/ticket-reservation/internal/infrastructure/rediscache"
	"github.com/sanosuguru/ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/ticket-reservation/internal/pkg/metrics"
)

const defaultCacheTTL = 10 * time.Minute

// EventService はイベントの作成・参照と空席数の計算を担う読み取りパス
type EventService struct {
	txManager  transaction.Manager
	eventRepo  event.Repository
	ticketRepo ticket.Repository
	cache      *rediscache.Cache
	cacheTTL   time.Duration
	metrics    *metrics.Metrics
}

// NewEventService は EventService を作成する。ttl に0以下を渡した場合は
// デフォルト値が使われる。m は nil でよい（メトリクス記録をスキップする）
func NewEventService(tm transaction.Manager, er event.Repository, tr ticket.Repository, cache *rediscache.Cache, ttl time.Duration, m *metrics.Metrics) *EventService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &EventService{txManager: tm, eventRepo: er, ticketRepo: tr, cache: cache, cacheTTL: ttl, metrics: m}
}

// CreateEventInput は createEvent の入力
type CreateEventInput struct {
	Name         string
	Venue        string
	EventDate    time.Time
	TotalTickets int
}

// CreateEvent はイベントを検証・永続化し、totalTickets 枚の AVAILABLE な
// チケットを同じトランザクション内で一括シードする（I1）
func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Name, input.Venue, input.EventDate, input.TotalTickets)
	if err := e.Validate(time.Now()); err != nil {
		var ve *event.ValidationError
		if errors.As(err, &ve) {
			return nil, apperr.Validation(ve.Error())
		}
		return nil, apperr.InternalWrap("イベント検証に失敗しました", err)
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := s.eventRepo.Create(ctx, tx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	if err := s.ticketRepo.SeedAvailable(ctx, tx, e.ID, e.TotalTickets); err != nil {
		return nil, fmt.Errorf("チケットシードに失敗しました: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗しました: %w", err)
	}

	s.invalidateListCaches(ctx)
	return e, nil
}

// GetEvent はイベントを空席数付きで返す
func (s *EventService) GetEvent(ctx context.Context, id int64) (*event.WithAvailability, error) {
	cacheKey := eventCacheKey(id)
	var cached event.WithAvailability
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, rediscache.ErrMiss) {
			logger.Warn("イベントキャッシュ取得エラー", zap.Error(err))
		}
	}

	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.ticketRepo.CountAvailableByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("空席数取得に失敗しました: %w", err)
	}

	result := &event.WithAvailability{Event: *e, AvailableTickets: count}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			logger.Warn("イベントキャッシュ保存エラー", zap.Error(err))
		}
	}
	return result, nil
}

// ListEvents は全イベントを空席数付きで返す
func (s *EventService) ListEvents(ctx context.Context) ([]*event.WithAvailability, error) {
	cacheKey := "events-list"
	var cached []*event.WithAvailability
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, rediscache.ErrMiss) {
			logger.Warn("イベント一覧キャッシュ取得エラー", zap.Error(err))
		}
	}

	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.withAvailability(ctx, events)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			logger.Warn("イベント一覧キャッシュ保存エラー", zap.Error(err))
		}
	}
	return result, nil
}

// Page はページングされた結果を表す
type Page struct {
	Items      []*event.WithAvailability `json:"items"`
	Page       int                       `json:"page"`
	Size       int                       `json:"size"`
	TotalCount int                       `json:"totalCount"`
}

// ListEventsPaged はページ単位でイベントを空席数付きで返す
func (s *EventService) ListEventsPaged(ctx context.Context, page, size int, sortKey string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	gen := int64(0)
	if s.cache != nil {
		if g, err := s.cache.Generation(ctx, "events-paged"); err == nil {
			gen = g
		}
	}
	cacheKey := pagedCacheKey(gen, page, size, sortKey)

	var cached Page
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, rediscache.ErrMiss) {
			logger.Warn("ページングキャッシュ取得エラー", zap.Error(err))
		}
	}

	offset := (page - 1) * size
	events, err := s.eventRepo.ListPaged(ctx, size, offset, sortKey)
	if err != nil {
		return nil, err
	}
	items, err := s.withAvailability(ctx, events)
	if err != nil {
		return nil, err
	}
	total, err := s.eventRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント総数取得に失敗しました: %w", err)
	}

	result := &Page{Items: items, Page: page, Size: size, TotalCount: total}
	// 空のページはキャッシュしない（他の一覧キャッシュと同じく空結果は保存しない）
	if s.cache != nil && len(items) > 0 {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			logger.Warn("ページングキャッシュ保存エラー", zap.Error(err))
		}
	}
	return result, nil
}

// ListAvailableEvents は AVAILABLE なチケットを1枚以上持つイベントのみ返す
func (s *EventService) ListAvailableEvents(ctx context.Context) ([]*event.WithAvailability, error) {
	cacheKey := "available-events"
	var cached []*event.WithAvailability
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, rediscache.ErrMiss) {
			logger.Warn("予約可能イベントキャッシュ取得エラー", zap.Error(err))
		}
	}

	events, err := s.eventRepo.ListWithAvailableTickets(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.withAvailability(ctx, events)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			logger.Warn("予約可能イベントキャッシュ保存エラー", zap.Error(err))
		}
	}
	return result, nil
}

// GetAvailableCount はイベントの AVAILABLE チケット数を返す
func (s *EventService) GetAvailableCount(ctx context.Context, eventID int64) (int, error) {
	cacheKey := availableCountCacheKey(eventID)
	var cached int
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, rediscache.ErrMiss) {
			logger.Warn("空席数キャッシュ取得エラー", zap.Error(err))
		}
	}

	count, err := s.ticketRepo.CountAvailableByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, count, s.cacheTTL); err != nil {
			logger.Warn("空席数キャッシュ保存エラー", zap.Error(err))
		}
	}
	return count, nil
}

// InvalidateReservationSideEffects は予約・回収で影響を受ける全キャッシュを
// 無効化する。空席数は直接書き換えず、必ず無効化して次の読み取りで
// 再計算させる（compute-and-write は並行予約と競合するため禁止）
func (s *EventService) InvalidateReservationSideEffects(ctx context.Context, eventID int64) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, eventCacheKey(eventID)); err != nil {
			logger.Warn("イベントキャッシュ無効化エラー", zap.Error(err))
		}
		if err := s.cache.Invalidate(ctx, availableCountCacheKey(eventID)); err != nil {
			logger.Warn("空席数キャッシュ無効化エラー", zap.Error(err))
		}
		s.invalidateListCaches(ctx)
	}
	s.recordActiveReservations(ctx)
}

// recordActiveReservations はRESERVED状態のチケット総数をストアから
// 再算出し、active_reservations ゲージへ反映する。呼び出しごとに
// 正となる状態を読み直すため、増減のカウンタ的な管理によるドリフトが起きない
func (s *EventService) recordActiveReservations(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	count, err := s.ticketRepo.CountReserved(ctx)
	if err != nil {
		logger.Warn("予約中チケット数の取得に失敗", zap.Error(err))
		return
	}
	s.metrics.ActiveReservations.WithLabelValues("reserved").Set(float64(count))
}

func (s *EventService) invalidateListCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "events-list"); err != nil {
		logger.Warn("イベント一覧キャッシュ無効化エラー", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "available-events"); err != nil {
		logger.Warn("予約可能イベントキャッシュ無効化エラー", zap.Error(err))
	}
	if _, err := s.cache.BumpGeneration(ctx, "events-paged"); err != nil {
		logger.Warn("ページングキャッシュ世代更新エラー", zap.Error(err))
	}
}

func (s *EventService) withAvailability(ctx context.Context, events []*event.Event) ([]*event.WithAvailability, error) {
	result := make([]*event.WithAvailability, len(events))
	for i, e := range events {
		count, err := s.ticketRepo.CountAvailableByEvent(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("空席数取得に失敗しました: %w", err)
		}
		result[i] = &event.WithAvailability{Event: *e, AvailableTickets: count}
	}
	return result, nil
}

func eventCacheKey(id int64) string {
	return fmt.Sprintf("events:%d", id)
}

func availableCountCacheKey(id int64) string {
	return fmt.Sprintf("available-tickets-count:%d", id)
}

func pagedCacheKey(gen int64, page, size int, sortKey string) string {
	return fmt.Sprintf("events-paged:v%d:%d:%d:%s", gen, page, size, sortKey)
}
