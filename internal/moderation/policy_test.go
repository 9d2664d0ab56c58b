package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-assistant-go/internal/repository"
)

const (
	onTopic  = "what are your web development prices?"
	offTopic = "do you want to date sometime?"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine() (*Engine, *testClock) {
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	ledger := repository.NewMemoryThrottleLedger(time.Hour, repository.WithClock(clock.Now))
	return NewEngine(NewClassifier(nil, nil), ledger, DefaultBlockThreshold), clock
}

func TestEngine_EscalatesToBlock(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	d, err := engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)
	assert.Equal(t, Decision{Outcome: OutcomeWarn, WarnLevel: 1, OffTopicCount: 1}, d)

	d, err = engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)
	assert.Equal(t, Decision{Outcome: OutcomeWarn, WarnLevel: 2, OffTopicCount: 2}, d)

	d, err = engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNewlyBlocked, d.Outcome)
	assert.True(t, d.Terminal())

	// relevant content does not lift the block
	d, err = engine.Evaluate(ctx, "1.1.1.1", onTopic)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, d.Outcome)
	assert.True(t, d.Terminal())
}

func TestEngine_OnTopicResetsCounter(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	_, err := engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)
	_, err = engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)

	d, err := engine.Evaluate(ctx, "1.1.1.1", onTopic)
	require.NoError(t, err)
	assert.Equal(t, Decision{Outcome: OutcomeProceed}, d)
	assert.False(t, d.Terminal())

	d, err = engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)
	assert.Equal(t, 1, d.WarnLevel)
}

func TestEngine_BlockExpiresAfterDuration(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine()

	for i := 0; i < 3; i++ {
		_, err := engine.Evaluate(ctx, "1.1.1.1", offTopic)
		require.NoError(t, err)
	}

	clock.Advance(59 * time.Minute)
	d, err := engine.Evaluate(ctx, "1.1.1.1", onTopic)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, d.Outcome)

	clock.Advance(2 * time.Minute)
	d, err = engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)
	assert.Equal(t, Decision{Outcome: OutcomeWarn, WarnLevel: 1, OffTopicCount: 1}, d)
}

func TestEngine_UnblockResetsState(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	wasBlocked, err := engine.Unblock(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.False(t, wasBlocked)

	for i := 0; i < 3; i++ {
		_, err := engine.Evaluate(ctx, "1.1.1.1", offTopic)
		require.NoError(t, err)
	}

	wasBlocked, err = engine.Unblock(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, wasBlocked)

	d, err := engine.Evaluate(ctx, "1.1.1.1", offTopic)
	require.NoError(t, err)
	assert.Equal(t, Decision{Outcome: OutcomeWarn, WarnLevel: 1, OffTopicCount: 1}, d)
}

func TestEngine_IdentitiesAreIndependent(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	for i := 0; i < 3; i++ {
		_, err := engine.Evaluate(ctx, "1.1.1.1", offTopic)
		require.NoError(t, err)
	}
	d, err := engine.Evaluate(ctx, "2.2.2.2", onTopic)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, d.Outcome)
}

func TestEngine_ConcurrentOffTopicBlocksExactlyOnce(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	const workers = 20
	outcomes := make(chan Outcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := engine.Evaluate(ctx, "9.9.9.9", offTopic)
			assert.NoError(t, err)
			outcomes <- d.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 2, counts[OutcomeWarn])
	assert.Equal(t, 1, counts[OutcomeNewlyBlocked])
	assert.Equal(t, workers-3, counts[OutcomeBlocked])
	assert.Empty(t, engine.locks.locks, "per-identity locks are released")
}

type failingLedger struct {
	repository.ThrottleLedger
}

func (failingLedger) IsBlocked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestEngine_LedgerErrorSurfaces(t *testing.T) {
	engine := NewEngine(NewClassifier(nil, nil), failingLedger{}, 0)
	_, err := engine.Evaluate(context.Background(), "1.1.1.1", onTopic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Equal(t, DefaultBlockThreshold, engine.threshold)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "proceed", OutcomeProceed.String())
	assert.Equal(t, "warn", OutcomeWarn.String())
	assert.Equal(t, "newly_blocked", OutcomeNewlyBlocked.String())
	assert.Equal(t, "blocked", OutcomeBlocked.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
