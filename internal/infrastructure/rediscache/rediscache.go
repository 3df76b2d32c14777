package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss はキーが存在しないことを示す
var ErrMiss = errors.New("キャッシュが見つかりません")

// Cache は任意の値をJSONエンコードしてRedisに保存する読み取り優先キャッシュ。
// 書き込み経路は値を直接更新せず、常に無効化して次の読み取りで再計算させる
// （stale read は許容、stale write は許容しない）
type Cache struct {
	client *redis.Client
}

// New は Cache を作成する
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get はキーに対応する値を dest にデコードする。キーが無ければ ErrMiss
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("キャッシュ取得に失敗しました: %w", err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("キャッシュ値のデコードに失敗しました: %w", err)
	}
	return nil
}

// Set は値をJSONエンコードして ttl 付きで保存する。空のスライス/マップは
// 保存しない（空結果のキャッシュはスタンピード時の誤誘導につながるため
// 明示的に skip する）
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if isEmptyCollection(value) {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("キャッシュ値のエンコードに失敗しました: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗しました: %w", err)
	}
	return nil
}

// Invalidate はキーを削除する。書き込み経路は必ずこれを呼び、値を直接
// 書き換えない
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗しました: %w", err)
	}
	return nil
}

// BumpGeneration は世代カウンタを1つ進める。ページングキャッシュのように
// キーの集合が動的な場合、個々のキーを追跡・削除する代わりに世代番号を
// キーに埋め込み、世代を進めるだけで古いエントリ全体を無効化したことにする
// （古いキーはTTLで自然消滅する）
func (c *Cache) BumpGeneration(ctx context.Context, name string) (int64, error) {
	gen, err := c.client.Incr(ctx, generationKey(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("世代カウンタ更新に失敗しました: %w", err)
	}
	return gen, nil
}

// Generation は現在の世代番号を返す（未初期化なら0）
func (c *Cache) Generation(ctx context.Context, name string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(name)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("世代カウンタ取得に失敗しました: %w", err)
	}
	return gen, nil
}

func generationKey(name string) string {
	return "cache:gen:" + name
}

func isEmptyCollection(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return false
	}
}
