package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingExecutor struct {
	mu       sync.Mutex
	executed []uint
	done     chan uint
	fail     map[uint]int // 剩余失败次数
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{
		done: make(chan uint, 16),
		fail: make(map[uint]int),
	}
}

func (e *recordingExecutor) ExecuteJob(ctx context.Context, jobID uint) error {
	e.mu.Lock()
	if e.fail[jobID] > 0 {
		e.fail[jobID]--
		e.mu.Unlock()
		return errors.New("transient failure")
	}
	e.executed = append(e.executed, jobID)
	e.mu.Unlock()
	e.done <- jobID
	return nil
}

func waitFor(t *testing.T, ch <-chan uint, want uint) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("executed jobID=%d, want %d", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for jobID=%d", want)
	}
}

func TestOrchestratorExecutesJob(t *testing.T) {
	exec := newRecordingExecutor()
	orch, err := NewOrchestrator(2, exec)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	defer orch.Stop()

	if err := orch.EnqueueJob(NewAnalysisJob(42)); err != nil {
		t.Fatalf("EnqueueJob error: %v", err)
	}
	waitFor(t, exec.done, 42)
}

func TestOrchestratorRetriesWithBackoff(t *testing.T) {
	exec := newRecordingExecutor()
	exec.fail[7] = 1 // 第一次失败，第二次成功

	orch, err := NewOrchestrator(1, exec)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	defer orch.Stop()

	if err := orch.EnqueueJob(NewAnalysisJob(7)); err != nil {
		t.Fatalf("EnqueueJob error: %v", err)
	}
	waitFor(t, exec.done, 7)
}

func TestOrchestratorRejectsAfterStop(t *testing.T) {
	exec := newRecordingExecutor()
	orch, err := NewOrchestrator(1, exec)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	orch.Stop()

	if err := orch.EnqueueJob(NewAnalysisJob(1)); !errors.Is(err, ErrOrchestratorStopped) {
		t.Fatalf("expected ErrOrchestratorStopped, got %v", err)
	}
}

func TestJobQueueRejectsWhenFull(t *testing.T) {
	q := newJobQueue(2)
	if err := q.Enqueue(NewAnalysisJob(1)); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if err := q.Enqueue(NewAnalysisJob(2)); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	if err := q.Enqueue(NewAnalysisJob(3)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestJobQueueCloseUnblocksDequeue(t *testing.T) {
	q := newJobQueue(2)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()
	time.Sleep(50 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("Dequeue on closed empty queue should return false")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Dequeue did not unblock after Close")
	}
}
