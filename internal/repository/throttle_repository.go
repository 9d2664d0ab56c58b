// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ThrottleLedger 记录每个客户端（按网络地址）的连续离题次数与封禁时间。
//
// 封禁记录采用惰性过期：只有在下一次 IsBlocked 查询时才检查年龄并清理，
// 因此过期的记录最多会在内存中多停留一个封禁周期。
type ThrottleLedger interface {
	// IsBlocked 在封禁未过期时返回 true；已过期的记录会连同计数器一起删除。
	IsBlocked(ctx context.Context, id string) (bool, error)
	// RecordTurn 离题时计数加一并返回新值，否则清零并返回 0。
	RecordTurn(ctx context.Context, id string, offTopic bool) (int, error)
	// Block 以当前时间写入（或覆盖）封禁记录。
	Block(ctx context.Context, id string) error
	// Unblock 删除封禁记录与计数器，返回调用前是否存在封禁记录。幂等。
	Unblock(ctx context.Context, id string) (bool, error)
}

// LedgerOption 调整 ThrottleLedger 的可选参数。
type LedgerOption func(*ledgerOptions)

type ledgerOptions struct {
	now func() time.Time
}

// WithClock 替换时间来源，用于测试封禁过期。
func WithClock(now func() time.Time) LedgerOption {
	return func(o *ledgerOptions) {
		o.now = now
	}
}

func buildLedgerOptions(opts []LedgerOption) ledgerOptions {
	o := ledgerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type memoryThrottleLedger struct {
	mu            sync.Mutex
	counters      map[string]int
	blocks        map[string]time.Time
	blockDuration time.Duration
	now           func() time.Time
}

// NewMemoryThrottleLedger 创建进程内的 ThrottleLedger，状态随进程重启丢失。
func NewMemoryThrottleLedger(blockDuration time.Duration, opts ...LedgerOption) ThrottleLedger {
	o := buildLedgerOptions(opts)
	return &memoryThrottleLedger{
		counters:      make(map[string]int),
		blocks:        make(map[string]time.Time),
		blockDuration: blockDuration,
		now:           o.now,
	}
}

func (l *memoryThrottleLedger) IsBlocked(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	blockedAt, ok := l.blocks[id]
	if !ok {
		return false, nil
	}
	if l.now().Sub(blockedAt) > l.blockDuration {
		delete(l.blocks, id)
		delete(l.counters, id)
		return false, nil
	}
	return true, nil
}

func (l *memoryThrottleLedger) RecordTurn(_ context.Context, id string, offTopic bool) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !offTopic {
		l.counters[id] = 0
		return 0, nil
	}
	l.counters[id]++
	return l.counters[id], nil
}

func (l *memoryThrottleLedger) Block(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks[id] = l.now()
	return nil
}

func (l *memoryThrottleLedger) Unblock(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, wasBlocked := l.blocks[id]
	delete(l.blocks, id)
	delete(l.counters, id)
	return wasBlocked, nil
}

type redisThrottleLedger struct {
	redisClient   *redis.Client
	blockDuration time.Duration
	now           func() time.Time
}

// NewRedisThrottleLedger 创建基于 Redis 的 ThrottleLedger，多个实例可共享同一份封禁状态。
// 封禁记录保存的是封禁时刻的毫秒时间戳，过期判断与内存实现一致。
func NewRedisThrottleLedger(redisClient *redis.Client, blockDuration time.Duration, opts ...LedgerOption) ThrottleLedger {
	o := buildLedgerOptions(opts)
	return &redisThrottleLedger{
		redisClient:   redisClient,
		blockDuration: blockDuration,
		now:           o.now,
	}
}

func offTopicKey(id string) string {
	return fmt.Sprintf("throttle:offtopic:%s", id)
}

func blockKey(id string) string {
	return fmt.Sprintf("throttle:blocked:%s", id)
}

func (r *redisThrottleLedger) IsBlocked(ctx context.Context, id string) (bool, error) {
	raw, err := r.redisClient.Get(ctx, blockKey(id)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get block record: %w", err)
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// 无法解析的记录按过期处理
		millis = 0
	}
	if r.now().Sub(time.UnixMilli(millis)) > r.blockDuration {
		if err := r.redisClient.Del(ctx, blockKey(id), offTopicKey(id)).Err(); err != nil {
			return false, fmt.Errorf("failed to expire block record: %w", err)
		}
		return false, nil
	}
	return true, nil
}

func (r *redisThrottleLedger) RecordTurn(ctx context.Context, id string, offTopic bool) (int, error) {
	if !offTopic {
		if err := r.redisClient.Set(ctx, offTopicKey(id), 0, 0).Err(); err != nil {
			return 0, fmt.Errorf("failed to reset off-topic counter: %w", err)
		}
		return 0, nil
	}
	count, err := r.redisClient.Incr(ctx, offTopicKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment off-topic counter: %w", err)
	}
	return int(count), nil
}

func (r *redisThrottleLedger) Block(ctx context.Context, id string) error {
	if err := r.redisClient.Set(ctx, blockKey(id), r.now().UnixMilli(), 0).Err(); err != nil {
		return fmt.Errorf("failed to set block record: %w", err)
	}
	return nil
}

func (r *redisThrottleLedger) Unblock(ctx context.Context, id string) (bool, error) {
	var removed *redis.IntCmd
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, blockKey(id))
		pipe.Del(ctx, offTopicKey(id))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove block record: %w", err)
	}
	return removed.Val() > 0, nil
}
