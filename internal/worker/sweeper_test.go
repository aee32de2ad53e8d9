package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSweeps struct {
	ids       []int64
	listErr   error
	failing   map[int64]bool
	skipped   map[int64]bool
	passes    atomic.Int32
	processed []int64
}

func (s *stubSweeps) SweepCandidates(ctx context.Context) ([]int64, error) {
	s.passes.Add(1)
	return s.ids, s.listErr
}

func (s *stubSweeps) SweepAccount(ctx context.Context, id int64) (bool, error) {
	s.processed = append(s.processed, id)
	if s.failing[id] {
		return false, errors.New("deadlock detected")
	}
	return !s.skipped[id], nil
}

func TestSweepOnce_ContinuesAfterFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	stub := &stubSweeps{
		ids:     []int64{1, 2, 3, 4},
		failing: map[int64]bool{2: true},
		skipped: map[int64]bool{4: true},
	}

	rep, err := NewSweeper(stub, zap.New(core), time.Hour).SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Candidates: 4, Swept: 2, Skipped: 1, Failed: 1}, rep)
	assert.Equal(t, []int64{1, 2, 3, 4}, stub.processed)

	failed := logs.FilterMessage("sweep account failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].ContextMap()["account_id"])
}

func TestSweepOnce_ListError(t *testing.T) {
	stub := &stubSweeps{listErr: errors.New("connection refused")}

	_, err := NewSweeper(stub, nil, time.Hour).SweepOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list sweep candidates")
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	stub := &stubSweeps{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewSweeper(stub, nil, 10*time.Millisecond).Run(ctx) }()

	require.Eventually(t, func() bool { return stub.passes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestRun_DisabledWithZeroInterval(t *testing.T) {
	stub := &stubSweeps{}
	require.NoError(t, NewSweeper(stub, nil, 0).Run(context.Background()))
	assert.Zero(t, stub.passes.Load())
}
