package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/ticket-reservation/internal/domain/ticket"
	"github.com/sanosuguru/ticket-reservation/internal/domain/transaction"
)

type ticketRow struct {
	ID            int64      `db:"id"`
	EventID       int64      `db:"event_id"`
	Status        string     `db:"status"`
	CustomerEmail *string    `db:"customer_email"`
	ReservedUntil *time.Time `db:"reserved_until"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r *ticketRow) toEntity() *ticket.Ticket {
	return &ticket.Ticket{
		ID:            r.ID,
		EventID:       r.EventID,
		Status:        ticket.Status(r.Status),
		CustomerEmail: r.CustomerEmail,
		ReservedUntil: r.ReservedUntil,
		CreatedAt:     r.CreatedAt,
	}
}

// TicketRepository はチケットリポジトリのPostgreSQL実装
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository はTicketRepositoryを作成する
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// SeedAvailable はイベント作成時に totalTickets 枚の AVAILABLE チケットを
// マルチバリューINSERTで一括作成する（I1）
func (r *TicketRepository) SeedAvailable(ctx context.Context, tx transaction.Tx, eventID int64, count int) error {
	if count <= 0 {
		return nil
	}

	sqlxTx := UnwrapTx(tx)
	now := time.Now()

	const batchSize = 1000
	for start := 0; start < count; start += batchSize {
		end := start + batchSize
		if end > count {
			end = count
		}
		if err := r.seedBatch(ctx, sqlxTx, eventID, end-start, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *TicketRepository) seedBatch(ctx context.Context, tx *sqlx.Tx, eventID int64, n int, createdAt time.Time) error {
	query := `INSERT INTO tickets (event_id, status, created_at) VALUES `
	args := make([]interface{}, 0, n*3)
	placeholders := make([]string, 0, n)

	for i := 0; i < n; i++ {
		base := i * 3
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, eventID, string(ticket.StatusAvailable), createdAt)
	}

	query += strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("チケット一括作成に失敗しました: %w", err)
	}
	return nil
}

// ReserveFirstAvailable はイベントの中で最小のIDを持つ AVAILABLE チケットを
// 選んで RESERVED に更新する。DBのペシミスティックロックは使わない
// （アプリケーション層の分散ロックが臨界区間を守るため不要、original_source
// TicketRepository.findFirstAvailableWithLock のコメント参照）
func (r *TicketRepository) ReserveFirstAvailable(ctx context.Context, tx transaction.Tx, eventID int64, customerEmail string, until time.Time) (*ticket.Ticket, error) {
	sqlxTx := UnwrapTx(tx)

	var row ticketRow
	selectQuery := `SELECT id, event_id, status, customer_email, reserved_until, created_at FROM tickets WHERE event_id = $1 AND status = 'AVAILABLE' ORDER BY id LIMIT 1`
	if err := sqlxTx.GetContext(ctx, &row, selectQuery, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrNotAvailable
		}
		return nil, fmt.Errorf("予約可能チケット検索に失敗しました: %w", err)
	}

	updateQuery := `UPDATE tickets SET status = $1, customer_email = $2, reserved_until = $3 WHERE id = $4 AND status = 'AVAILABLE'`
	result, err := sqlxTx.ExecContext(ctx, updateQuery, string(ticket.StatusReserved), customerEmail, until, row.ID)
	if err != nil {
		return nil, fmt.Errorf("チケット予約更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		// 分散ロックの下では基本的に起こらないが、保険として検知する
		return nil, ticket.ErrNotAvailable
	}

	row.Status = string(ticket.StatusReserved)
	row.CustomerEmail = &customerEmail
	row.ReservedUntil = &until
	return row.toEntity(), nil
}

// ListAvailableByEvent はイベントの AVAILABLE チケット一覧を返す
func (r *TicketRepository) ListAvailableByEvent(ctx context.Context, eventID int64) ([]*ticket.Ticket, error) {
	query := `SELECT id, event_id, status, customer_email, reserved_until, created_at FROM tickets WHERE event_id = $1 AND status = 'AVAILABLE' ORDER BY id`
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("予約可能チケット一覧取得に失敗しました: %w", err)
	}
	return toTickets(rows), nil
}

// ListByCustomerEmail は顧客が保持する全チケットを返す
func (r *TicketRepository) ListByCustomerEmail(ctx context.Context, email string) ([]*ticket.Ticket, error) {
	query := `SELECT id, event_id, status, customer_email, reserved_until, created_at FROM tickets WHERE customer_email = $1 ORDER BY id`
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, query, email); err != nil {
		return nil, fmt.Errorf("顧客チケット一覧取得に失敗しました: %w", err)
	}
	return toTickets(rows), nil
}

// CountAvailableByEvent はイベントの AVAILABLE チケット数を返す
// （availableTickets の唯一の正となる算出元、I4）
func (r *TicketRepository) CountAvailableByEvent(ctx context.Context, eventID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM tickets WHERE event_id = $1 AND status = 'AVAILABLE'`
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("予約可能チケット数取得に失敗しました: %w", err)
	}
	return count, nil
}

// ReapExpired は期限切れの RESERVED チケットを単一バッチUPDATEで AVAILABLE に戻し、
// 影響を受けたイベントIDの集合を返す（I6、境界含む: reservedUntil <= now）
func (r *TicketRepository) ReapExpired(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
		UPDATE tickets
		SET status = 'AVAILABLE', customer_email = NULL, reserved_until = NULL
		WHERE status = 'RESERVED' AND reserved_until <= $1
		RETURNING event_id
	`
	var eventIDs []int64
	if err := r.db.SelectContext(ctx, &eventIDs, query, now); err != nil {
		return nil, fmt.Errorf("期限切れチケット回収に失敗しました: %w", err)
	}
	return dedupeEventIDs(eventIDs), nil
}

// CountReserved は全イベントを通じた RESERVED チケットの総数を返す
func (r *TicketRepository) CountReserved(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM tickets WHERE status = 'RESERVED'`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("予約中チケット数取得に失敗しました: %w", err)
	}
	return count, nil
}

func dedupeEventIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func toTickets(rows []ticketRow) []*ticket.Ticket {
	tickets := make([]*ticket.Ticket, len(rows))
	for i, row := range rows {
		tickets[i] = row.toEntity()
	}
	return tickets
}

// インターフェースを満たしているか確認
var _ ticket.Repository = (*TicketRepository)(nil)
