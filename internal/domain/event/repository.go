package event

import (
	"context"

	"github.com/sanosuguru/ticket-reservation/internal/domain/transaction"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する。チケットの一括シードと同じ
	// トランザクション内で呼ばれる想定（I1）
	Create(ctx context.Context, tx transaction.Tx, e *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id int64) (*Event, error)

	// List はイベント一覧を取得する（新しい開催日順）
	List(ctx context.Context) ([]*Event, error)

	// ListPaged はページ単位でイベント一覧を取得する
	ListPaged(ctx context.Context, limit, offset int, sortKey string) ([]*Event, error)

	// Count はイベントの総数を返す（ページング用）
	Count(ctx context.Context) (int, error)

	// ListWithAvailableTickets は AVAILABLE なチケットを1枚以上持つイベントのみ返す
	ListWithAvailableTickets(ctx context.Context) ([]*Event, error)

	// Delete はイベントを削除する（運用者操作、チケットはカスケード削除される）
	Delete(ctx context.Context, id int64) error
}
