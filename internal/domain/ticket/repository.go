package ticket

import (
	"context"
	"time"

	"github.com/sanosuguru/ticket-reservation/internal/domain/transaction"
)

// Repository はチケットリポジトリのインターフェース
type Repository interface {
	// SeedAvailable はイベント作成時に totalTickets 枚の AVAILABLE チケットを
	// 一括作成する（トランザクション必須、I1）
	SeedAvailable(ctx context.Context, tx transaction.Tx, eventID int64, count int) error

	// ReserveFirstAvailable はイベントの中で最小のIDを持つ AVAILABLE チケットを
	// 選んで RESERVED に更新する（トランザクション必須）。存在しなければ
	// ErrNotAvailable を返す
	ReserveFirstAvailable(ctx context.Context, tx transaction.Tx, eventID int64, customerEmail string, until time.Time) (*Ticket, error)

	// ListAvailableByEvent はイベントの AVAILABLE チケット一覧を返す
	ListAvailableByEvent(ctx context.Context, eventID int64) ([]*Ticket, error)

	// ListByCustomerEmail は顧客が保持する（または過去に保持した）全チケットを返す
	ListByCustomerEmail(ctx context.Context, email string) ([]*Ticket, error)

	// CountAvailableByEvent はイベントの AVAILABLE チケット数を返す
	CountAvailableByEvent(ctx context.Context, eventID int64) (int, error)

	// ReapExpired は期限切れの RESERVED チケットを一括で AVAILABLE に戻し、
	// 影響を受けたイベントIDの集合を返す（単一バッチUPDATE、I6）
	ReapExpired(ctx context.Context, now time.Time) ([]int64, error)

	// CountReserved は全イベントを通じた RESERVED チケットの総数を返す
	// （アクティブな予約数メトリクスの算出元）
	CountReserved(ctx context.Context) (int, error)
}
