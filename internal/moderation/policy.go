package moderation

import (
	"context"
	"fmt"
	"sync"

	"site-assistant-go/internal/repository"
)

// DefaultBlockThreshold 是触发封禁的连续离题次数。
const DefaultBlockThreshold = 3

// Outcome 是单条消息的策略判定结果。
type Outcome int

const (
	// OutcomeProceed 表示按原始系统提示继续对话。
	OutcomeProceed Outcome = iota
	// OutcomeWarn 表示继续对话，但系统提示需要追加离题提醒。
	OutcomeWarn
	// OutcomeNewlyBlocked 表示本条消息使离题次数达到阈值，已写入封禁记录。
	OutcomeNewlyBlocked
	// OutcomeBlocked 表示客户端仍在封禁期内。
	OutcomeBlocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeWarn:
		return "warn"
	case OutcomeNewlyBlocked:
		return "newly_blocked"
	case OutcomeBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision 是 Engine.Evaluate 的返回值。
type Decision struct {
	Outcome Outcome
	// WarnLevel 仅在 OutcomeWarn 时有效：1 为温和引导，2 为明确警告。
	WarnLevel int
	// OffTopicCount 是本次记录后的连续离题次数；OutcomeBlocked 时为 0（未评估）。
	OffTopicCount int
}

// Terminal 表示请求不应再转发给语言模型。
func (d Decision) Terminal() bool {
	return d.Outcome == OutcomeBlocked || d.Outcome == OutcomeNewlyBlocked
}

// RelevanceClassifier 判断一条消息是否与网站相关。
type RelevanceClassifier interface {
	IsRelevant(message string) bool
}

// Engine 串联分类器与 ThrottleLedger，对每条入站消息给出策略判定。
// 同一客户端的 Evaluate/Unblock 串行执行，保证“达到阈值”与“写入封禁”对调用方是原子的。
type Engine struct {
	classifier RelevanceClassifier
	ledger     repository.ThrottleLedger
	threshold  int
	locks      *keyedMutex
}

// NewEngine 创建策略引擎；threshold <= 0 时使用 DefaultBlockThreshold。
func NewEngine(classifier RelevanceClassifier, ledger repository.ThrottleLedger, threshold int) *Engine {
	if threshold <= 0 {
		threshold = DefaultBlockThreshold
	}
	return &Engine{
		classifier: classifier,
		ledger:     ledger,
		threshold:  threshold,
		locks:      newKeyedMutex(),
	}
}

// Evaluate 对客户端 id 的最新一条消息做出判定。
// 先检查封禁（顺带清理过期记录），再分类并更新计数器。
func (e *Engine) Evaluate(ctx context.Context, id, message string) (Decision, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	blocked, err := e.ledger.IsBlocked(ctx, id)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check block state: %w", err)
	}
	if blocked {
		return Decision{Outcome: OutcomeBlocked}, nil
	}

	offTopic := !e.classifier.IsRelevant(message)
	count, err := e.ledger.RecordTurn(ctx, id, offTopic)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to record turn: %w", err)
	}

	switch {
	case count >= e.threshold:
		if err := e.ledger.Block(ctx, id); err != nil {
			return Decision{}, fmt.Errorf("failed to block client: %w", err)
		}
		return Decision{Outcome: OutcomeNewlyBlocked, OffTopicCount: count}, nil
	case count >= 2:
		return Decision{Outcome: OutcomeWarn, WarnLevel: 2, OffTopicCount: count}, nil
	case count == 1:
		return Decision{Outcome: OutcomeWarn, WarnLevel: 1, OffTopicCount: count}, nil
	default:
		return Decision{Outcome: OutcomeProceed}, nil
	}
}

// Unblock 解除客户端封禁并清零计数器，返回调用前是否处于封禁状态。
func (e *Engine) Unblock(ctx context.Context, id string) (bool, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	wasBlocked, err := e.ledger.Unblock(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to unblock client: %w", err)
	}
	return wasBlocked, nil
}

// keyedMutex 为每个 key 提供独立的互斥锁，无人持有时回收。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
