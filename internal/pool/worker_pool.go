package pool

import (
	"context"
	"sync"
)

// WorkerPool 固定大小的协程池
//
// 用于限制广播等后台任务的并发量，避免每个事件都起新协程。
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 工作协程数
//   - queueSize: 任务队列容量
func NewWorkerPool(maxWorkers, queueSize int) *WorkerPool {
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
	}
}

// Start 启动全部工作协程，ctx 取消后协程退出
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务，队列满时阻塞
func (p *WorkerPool) Submit(task func()) {
	p.taskQueue <- task
}

// TrySubmit 提交任务，队列满时立即返回 false，由调用方决定降级策略
func (p *WorkerPool) TrySubmit(task func()) bool {
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop 关闭队列并等待在途任务完成
func (p *WorkerPool) Stop() {
	close(p.taskQueue)
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

// run 执行单个任务，任务内 panic 不得击穿工作协程
func (p *WorkerPool) run(task func()) {
	defer func() {
		_ = recover()
	}()
	task()
}
