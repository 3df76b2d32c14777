package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/ticket-reservation/internal/domain/apperr"
	"github.com/sanosuguru/ticket-reservation/internal/domain/event"
	"github.com/sanosuguru/ticket-reservation/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Venue        string    `db:"venue"`
	EventDate    time.Time `db:"event_date"`
	TotalTickets int       `db:"total_tickets"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:           r.ID,
		Name:         r.Name,
		Venue:        r.Venue,
		EventDate:    r.EventDate,
		TotalTickets: r.TotalTickets,
		CreatedAt:    r.CreatedAt,
	}
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する。呼び出し側がチケットの一括シードと
// 同じトランザクションを渡す想定
func (r *EventRepository) Create(ctx context.Context, tx transaction.Tx, e *event.Event) error {
	query := `
		INSERT INTO events (name, venue, event_date, total_tickets, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return UnwrapTx(tx).QueryRowxContext(ctx, query, e.Name, e.Venue, e.EventDate, e.TotalTickets, time.Now()).Scan(&e.ID, &e.CreatedAt)
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	query := `SELECT id, name, venue, event_date, total_tickets, created_at FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("イベントが見つかりません: id=%d", id)
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List はイベント一覧を開催日降順で取得する
func (r *EventRepository) List(ctx context.Context) ([]*event.Event, error) {
	query := `SELECT id, name, venue, event_date, total_tickets, created_at FROM events ORDER BY event_date DESC`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

// ListPaged はページ単位でイベント一覧を取得する
func (r *EventRepository) ListPaged(ctx context.Context, limit, offset int, sortKey string) ([]*event.Event, error) {
	order := "event_date DESC"
	if sortKey == "name" {
		order = "name ASC"
	}
	query := fmt.Sprintf(`SELECT id, name, venue, event_date, total_tickets, created_at FROM events ORDER BY %s LIMIT $1 OFFSET $2`, order)

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

// Count はイベントの総数を返す
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM events`); err != nil {
		return 0, fmt.Errorf("イベント数取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListWithAvailableTickets は AVAILABLE なチケットを1枚以上持つイベントのみ返す
// (original_source の findEventsWithAvailableTickets と同じ JOIN 方式)
func (r *EventRepository) ListWithAvailableTickets(ctx context.Context) ([]*event.Event, error) {
	query := `
		SELECT DISTINCT e.id, e.name, e.venue, e.event_date, e.total_tickets, e.created_at
		FROM events e
		INNER JOIN tickets t ON t.event_id = e.id
		WHERE t.status = 'AVAILABLE'
		ORDER BY e.event_date DESC
	`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("予約可能イベント一覧取得に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

// Delete はイベントを削除する（チケットはカスケード削除される）
func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFoundf("イベントが見つかりません: id=%d", id)
	}
	return nil
}

func toEvents(rows []eventRow) []*event.Event {
	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
