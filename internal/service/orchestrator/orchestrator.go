package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// Job 一次排队等待执行的文档生成任务
type Job struct {
	JobID      uint
	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
	Timeout    time.Duration
}

// JobExecutor 任务执行接口，由分析服务实现
type JobExecutor interface {
	ExecuteJob(ctx context.Context, jobID uint) error
}

var (
	ErrOrchestratorStopped = errors.New("orchestrator is stopped")
	ErrQueueFull           = errors.New("job queue is full")
)

// NewAnalysisJob 创建一个新的任务对象，初始化重试次数与超时
func NewAnalysisJob(jobID uint) *Job {
	return &Job{
		JobID:      jobID,
		EnqueuedAt: time.Now(),
		MaxRetries: 3,
		Timeout:    30 * time.Minute,
	}
}

// Orchestrator 基于 ants 协程池的任务调度器
type Orchestrator struct {
	queue    *jobQueue
	pool     *ants.Pool
	executor JobExecutor

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	activeCancellations map[uint]context.CancelFunc
	cancelMutex         sync.Mutex
}

func NewOrchestrator(maxWorkers int, executor JobExecutor) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pool, err := ants.NewPool(maxWorkers,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(1000),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		cancel()
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	return &Orchestrator{
		queue:               newJobQueue(120),
		pool:                pool,
		executor:            executor,
		ctx:                 ctx,
		cancel:              cancel,
		activeCancellations: make(map[uint]context.CancelFunc),
	}, nil
}

func (o *Orchestrator) Start() {
	go o.dispatchLoop()
}

// Stop 停止接收新任务，等待队列排空与在途任务完成
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		klog.V(6).Infof("Orchestrator stopping...")

		o.cancel()
		o.queue.Close()

		for o.queue.Len() > 0 {
			time.Sleep(100 * time.Millisecond)
			klog.V(6).Infof("Waiting for queue to empty: pending=%d", o.queue.Len())
		}

		// ReleaseTimeout 阻塞到所有在途任务完成或超时（覆盖 30 分钟任务超时）
		timeout := 35 * time.Minute
		if err := o.pool.ReleaseTimeout(timeout); err != nil {
			klog.Warningf("Timeout after %v: some running jobs may be forced to stop", timeout)
		}

		klog.V(6).Infof("Orchestrator stopped completely")
	})
}

func (o *Orchestrator) EnqueueJob(job *Job) error {
	select {
	case <-o.ctx.Done():
		return ErrOrchestratorStopped
	default:
	}

	if err := o.queue.Enqueue(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			klog.Warningf("Job queue full: jobID=%d", job.JobID)
		}
		return err
	}
	klog.V(6).Infof("Job enqueued: jobID=%d", job.JobID)
	return nil
}

// CancelJob 取消正在执行的任务，任务未在执行时返回 false
func (o *Orchestrator) CancelJob(jobID uint) bool {
	o.cancelMutex.Lock()
	cancel, ok := o.activeCancellations[jobID]
	o.cancelMutex.Unlock()
	if !ok {
		return false
	}
	klog.V(6).Infof("Cancelling job: jobID=%d", jobID)
	cancel()
	return true
}

func (o *Orchestrator) registerCancel(jobID uint, cancel context.CancelFunc) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	o.activeCancellations[jobID] = cancel
}

func (o *Orchestrator) unregisterCancel(jobID uint) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	delete(o.activeCancellations, jobID)
}

func (o *Orchestrator) dispatchLoop() {
	for {
		job, ok := o.queue.Dequeue()
		if !ok {
			return
		}
		// Submit 在阻塞模式下等待空闲 worker，无需单独的重试队列
		if err := o.pool.Submit(func() { o.executeJob(job) }); err != nil {
			klog.Errorf("提交任务到协程池失败: jobID=%d, err=%v", job.JobID, err)
		}
	}
}

// executeJob 统一控制重试与退避
func (o *Orchestrator) executeJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Job panic recovered: jobID=%d, err=%v", job.JobID, r)
			o.unregisterCancel(job.JobID)
		}
	}()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(o.ctx, timeout)
	defer cancel()
	runCtx, manualCancel := context.WithCancel(ctx)
	defer manualCancel()

	o.registerCancel(job.JobID, manualCancel)
	defer o.unregisterCancel(job.JobID)

	for i := job.RetryCount; i < job.MaxRetries; i++ {
		job.RetryCount = i

		err := o.executor.ExecuteJob(runCtx, job.JobID)
		if err == nil {
			klog.V(6).Infof("Job completed: jobID=%d", job.JobID)
			return
		}

		backoff := time.Second << i
		if backoff > 20*time.Minute {
			backoff = 20 * time.Minute
		}

		klog.Warningf("任务重试失败: jobID=%d, retry=%d/%d, err=%v, backoff=%v",
			job.JobID, i+1, job.MaxRetries, err, backoff)

		select {
		case <-runCtx.Done():
			klog.Warningf("任务被取消或超时: jobID=%d", job.JobID)
			return
		case <-time.After(backoff):
		}
	}

	klog.Errorf("任务执行失败且超过重试上限: jobID=%d", job.JobID)
}

type QueueStatus struct {
	QueueLength   int `json:"queue_length"`
	ActiveWorkers int `json:"active_workers"`
}

func (o *Orchestrator) GetQueueStatus() *QueueStatus {
	return &QueueStatus{
		QueueLength:   o.queue.Len(),
		ActiveWorkers: o.pool.Running(),
	}
}

// jobQueue 有界 FIFO 队列，满时拒绝新任务
type jobQueue struct {
	maxSize int
	items   []*Job
	mutex   sync.Mutex
	cond    *sync.Cond
	closed  bool
}

func newJobQueue(maxSize int) *jobQueue {
	q := &jobQueue{
		maxSize: maxSize,
		items:   make([]*Job, 0, maxSize),
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *jobQueue) Enqueue(job *Job) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrOrchestratorStopped
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return ErrQueueFull
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

// Dequeue 阻塞直到有任务或队列关闭
func (q *jobQueue) Dequeue() (*Job, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

func (q *jobQueue) Close() {
	q.mutex.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// -------------------- Global Orchestrator --------------------
var (
	globalOrchestrator *Orchestrator
	orchestratorOnce   sync.Once
)

func InitGlobalOrchestrator(maxWorkers int, executor JobExecutor) error {
	var initErr error
	orchestratorOnce.Do(func() {
		orch, err := NewOrchestrator(maxWorkers, executor)
		if err != nil {
			initErr = err
			return
		}
		globalOrchestrator = orch
		globalOrchestrator.Start()
		klog.V(6).Infof("Global orchestrator initialized: maxWorkers=%d", maxWorkers)
	})
	return initErr
}

func GetGlobalOrchestrator() *Orchestrator {
	return globalOrchestrator
}

func ShutdownGlobalOrchestrator() {
	if globalOrchestrator != nil {
		globalOrchestrator.Stop()
	}
}
