package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	calls   chan struct{}
}

func (f *fakePruner) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	f.cutoffs = append(f.cutoffs, cutoff)
	f.mu.Unlock()
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return 3, f.err
}

func TestJoinRetention_Cutoff(t *testing.T) {
	p := &fakePruner{}
	w := NewJoinRetention(p, zap.NewNop(), time.Hour, 90*24*time.Hour)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.prune()

	want := now.Add(-90 * 24 * time.Hour)
	if len(p.cutoffs) != 1 || !p.cutoffs[0].Equal(want) {
		t.Errorf("cutoffs = %v, want [%v]", p.cutoffs, want)
	}
}

func TestJoinRetention_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := &fakePruner{err: errors.New("boom")}
	w := NewJoinRetention(p, zap.New(core), time.Hour, time.Hour)

	w.prune()

	if logs.FilterMessage("failed to prune join records").Len() != 1 {
		t.Errorf("log entries = %+v", logs.All())
	}
	if logs.FilterMessage("pruned join records").Len() != 0 {
		t.Error("failure should not log a prune count")
	}
}

func TestJoinRetention_StartStop(t *testing.T) {
	p := &fakePruner{calls: make(chan struct{}, 8)}
	w := NewJoinRetention(p, zap.NewNop(), 5*time.Millisecond, time.Hour)
	w.Start()

	for i := range 2 {
		select {
		case <-p.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("prune %d did not run", i+1)
		}
	}

	w.Stop()
	w.Stop()

	p.mu.Lock()
	n := len(p.cutoffs)
	p.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.cutoffs) != n {
		t.Error("worker kept pruning after Stop")
	}
}

func TestJoinRetention_StopWithoutStart(t *testing.T) {
	w := NewJoinRetention(&fakePruner{}, zap.NewNop(), time.Hour, time.Hour)
	w.Stop()
}
