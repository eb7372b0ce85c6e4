package syncgroup

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicHandler 接收某个任务中被恢复的 panic
type PanicHandler func(name string, recovered interface{}, stack []byte)

type task struct {
	name string
	fn   func()
}

// SyncGroup 是 sync.WaitGroup 的包装器：先 Add 再一次性 Run，最后 Wait
// 每个任务在独立 goroutine 中运行，panic 会被恢复并交给 PanicHandler，不影响其他任务
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	tasks   []task
	onPanic PanicHandler
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// OnPanic 设置 panic 处理函数
func (g *SyncGroup) OnPanic(h PanicHandler) *SyncGroup {
	g.mu.Lock()
	g.onPanic = h
	g.mu.Unlock()
	return g
}

// Add 添加一个具名任务（在 Run 之前调用）
func (g *SyncGroup) Add(name string, fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.tasks = append(g.tasks, task{name: name, fn: fn})
	g.mu.Unlock()
}

// Run 同时启动所有已添加的任务并清空任务列表
func (g *SyncGroup) Run() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	onPanic := g.onPanic
	g.mu.Unlock()

	g.wg.Add(len(tasks))
	for _, t := range tasks {
		go func(t task) {
			defer g.wg.Done()
			defer func() {
				if r := recover(); r != nil && onPanic != nil {
					onPanic(t.name, r, debug.Stack())
				}
			}()
			t.fn()
		}(t)
	}
}

// Wait 等待所有已启动的任务完成
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// RunAndWait Run + Wait
func (g *SyncGroup) RunAndWait() {
	g.Run()
	g.Wait()
}

// PanicError 将 recover 到的值转换为 error
func PanicError(recovered interface{}) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", recovered)
}
