package shutdown

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "shutdown")

// Handler 关闭处理函数；ctx 带有整体超时
type Handler func(ctx context.Context) error

type entry struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器
//
// 回调按注册的逆序分阶段执行：同一 stage 内并发，stage 之间串行。
// 这样先注册的底层资源（数据库、密钥库）会在上层组件停止之后才关闭。
type Manager struct {
	mu     sync.Mutex
	stages [][]entry
	done   bool
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册一个独立 stage 的关闭回调
func (m *Manager) OnShutdown(name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, []entry{{name: name, fn: h}})
}

// OnShutdownParallel 把回调加入最近一个 stage，与其并发执行
func (m *Manager) OnShutdownParallel(name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stages) == 0 {
		m.stages = append(m.stages, nil)
	}
	last := len(m.stages) - 1
	m.stages[last] = append(m.stages[last], entry{name: name, fn: h})
}

// Shutdown 执行所有关闭回调（阻塞），只会执行一次
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	stages := m.stages
	m.mu.Unlock()

	if len(stages) == 0 {
		log.Info("没有注册的关闭回调")
		return
	}
	log.Infof("开始优雅关闭，共 %d 个阶段", len(stages))

	for i := len(stages) - 1; i >= 0; i-- {
		if !runStage(ctx, stages[i]) {
			log.Warnf("关闭超时: %v", ctx.Err())
			return
		}
	}
	log.Info("所有关闭回调已完成")
}

func runStage(ctx context.Context, entries []entry) bool {
	var wg sync.WaitGroup
	wg.Add(len(entries))
	for _, e := range entries {
		go func(e entry) {
			defer wg.Done()
			if err := e.fn(ctx); err != nil {
				log.Errorf("关闭 %s 失败: %v", e.name, err)
				return
			}
			log.Debugf("已关闭 %s", e.name)
		}(e)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
