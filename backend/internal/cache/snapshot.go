package cache

import (
	"context"
	"errors"
	"math/rand"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseTTL   = 24 * time.Hour
	Jitter           = 60 * time.Minute // 随机抖动范围
	NullTTL          = 5 * time.Minute
	EmptyCacheMarker = "-1" // 空值标记
)

// SnapshotCache 缓存每个文档最新快照的编码结果。
// 读路径：Redis 命中直接返回；未命中时 singleflight 合并并发回源，
// 回源结果写回缓存，不存在的文档写入空值标记。
type SnapshotCache struct {
	rdb     redis.UniversalClient
	sf      singleflight.Group
	baseTTL time.Duration
}

func NewSnapshotCache(rdb redis.UniversalClient, baseTTL time.Duration) *SnapshotCache {
	if baseTTL <= 0 {
		baseTTL = DefaultBaseTTL
	}
	return &SnapshotCache{rdb: rdb, baseTTL: baseTTL}
}

// 随机 TTL，防止缓存雪崩
func (c *SnapshotCache) randomTTL() time.Duration {
	return c.baseTTL + time.Duration(rand.Int63n(int64(Jitter)))
}

// readCache 返回 (payload, hit, null, err)。null 表示命中空值标记。
func (c *SnapshotCache) readCache(ctx context.Context, key string) ([]byte, bool, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}
	if string(b) == EmptyCacheMarker {
		return nil, false, true, nil
	}
	return b, true, false, nil
}

type loadResult struct {
	payload []byte
	found   bool
}

// Get 读取 docID 的快照；fetch 在缓存未命中时回源，返回 found=false 表示源端也没有。
// 合并后的回源不随任何单个调用方的 ctx 取消；调用方自己的 ctx 结束时只有它提前返回。
func (c *SnapshotCache) Get(ctx context.Context, docID string, fetch func(ctx context.Context) ([]byte, bool, error)) ([]byte, bool, error) {
	key := snapshotKey(docID)
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		b, hit, null, err := c.readCache(loadCtx, key)
		if err != nil {
			return nil, err
		}
		if hit {
			return loadResult{payload: b, found: true}, nil
		}
		if null {
			return loadResult{}, nil
		}

		b, found, err := fetch(loadCtx)
		if err != nil {
			return nil, err
		}
		if !found {
			_ = c.rdb.Set(loadCtx, key, EmptyCacheMarker, NullTTL).Err()
			return loadResult{}, nil
		}
		_ = c.rdb.Set(loadCtx, key, b, c.randomTTL()).Err()
		return loadResult{payload: b, found: true}, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if r.Err != nil {
		return nil, false, r.Err
	}
	res, ok := r.Val.(loadResult)
	if !ok {
		return nil, false, errors.New("internal type error")
	}
	return res.payload, res.found, nil
}

// Set 写入最新快照，同时覆盖可能存在的空值标记。
func (c *SnapshotCache) Set(ctx context.Context, docID string, payload []byte) error {
	return c.rdb.Set(ctx, snapshotKey(docID), payload, c.randomTTL()).Err()
}

func (c *SnapshotCache) Invalidate(ctx context.Context, docID string) error {
	return c.rdb.Del(ctx, snapshotKey(docID)).Err()
}
