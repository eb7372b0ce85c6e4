package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/metrics"
	"github.com/betbot/copytrade/internal/ports"
	"github.com/betbot/copytrade/pkg/persistence"
	"github.com/betbot/copytrade/pkg/sigchan"
)

var log = logrus.WithField("component", "monitor")

const DefaultPollInterval = 500 * time.Millisecond

var ErrAlreadyStarted = errors.New("monitor already started")

type Options struct {
	PollInterval time.Duration
	// Symbol 只跟踪该合约；为空表示全部
	Symbol string
	// SnapshotStore 可选；配置后启动时以上次保存的快照为基线，
	// 停机期间发生的新增/撤单会在第一轮被检测到
	SnapshotStore persistence.Store
	Now           func() time.Time
}

// Monitor 轮询主账户挂单，检测变化并逐个交给 handler
type Monitor struct {
	lister  ports.OrderLister
	handler ports.EventHandler
	opts    Options

	mu       sync.RWMutex
	snapshot domain.Snapshot
	lastPoll time.Time

	running atomic.Bool
	started atomic.Bool
	wake    *sigchan.Chan
	done    chan struct{}
}

func New(lister ports.OrderLister, handler ports.EventHandler, opts Options) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Monitor{
		lister:   lister,
		handler:  handler,
		opts:     opts,
		snapshot: domain.Snapshot{},
		wake:     sigchan.New(1),
		done:     make(chan struct{}),
	}
	m.running.Store(true)
	return m
}

// Run 阻塞运行轮询循环，直到 Stop 被调用或 ctx 结束
// 一个 Monitor 只能 Run 一次
func (m *Monitor) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(m.done)

	m.restoreSnapshot()
	log.Infof("👀 [订单监控] 启动，轮询间隔=%s symbol=%q", m.opts.PollInterval, m.opts.Symbol)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if !m.running.Load() || ctx.Err() != nil {
			break
		}
		m.poll(ctx)
		if !m.running.Load() {
			break
		}

		timer.Reset(m.opts.PollInterval)
		select {
		case <-ctx.Done():
		case <-m.wake.C():
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	log.Infof("👀 [订单监控] 已停止")
	return nil
}

// Stop 请求循环在下一轮之前退出；不会打断正在执行的 handler
func (m *Monitor) Stop() {
	if m.running.CompareAndSwap(true, false) {
		m.wake.Emit()
	}
}

// Done 循环退出后关闭
func (m *Monitor) Done() <-chan struct{} { return m.done }

// Snapshot 当前快照的副本
func (m *Monitor) Snapshot() domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot.Clone()
}

// LastPoll 最近一次成功拉取的时间
func (m *Monitor) LastPoll() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPoll
}

// poll 执行一轮：拉取 -> 对比 -> 逐个投递 -> 整体替换快照 -> 持久化
func (m *Monitor) poll(ctx context.Context) {
	metrics.PollRuns.Add(1)

	orders, err := m.lister.ListOpenOrders(ctx, m.opts.Symbol)
	if err != nil {
		metrics.PollErrors.Add(1)
		log.Errorf("❌ [订单监控] 获取挂单失败，保留上一轮快照: %v", err)
		return
	}

	next, dups := buildSnapshot(orders)
	if len(dups) > 0 {
		log.Warnf("⚠️ [订单监控] 同一批结果中存在重复订单 ID，以最后一个为准: %v", dups)
	}

	prev := m.Snapshot()
	now := m.opts.Now()
	events := Diff(prev, next, now)
	for _, ev := range events {
		m.deliver(ctx, ev)
	}

	m.mu.Lock()
	m.snapshot = next
	m.lastPoll = now
	m.mu.Unlock()

	if m.opts.SnapshotStore != nil && !prev.Equal(next) {
		if err := m.opts.SnapshotStore.Save(next); err != nil {
			log.Warnf("⚠️ [订单监控] 保存快照失败: %v", err)
		} else {
			metrics.SnapshotSaves.Add(1)
		}
	}
}

// deliver 同步调用 handler；错误和 panic 只记录，不影响本轮剩余事件
func (m *Monitor) deliver(ctx context.Context, ev domain.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerErrors.Add(1)
			log.Errorf("❌ [订单监控] 处理 %s 事件 panic: order=%s err=%v\n%s", ev.Kind, ev.Order.ID, r, debug.Stack())
		}
	}()

	var err error
	switch ev.Kind {
	case domain.EventPlaced:
		metrics.EventsPlaced.Add(1)
		log.Infof("🆕 [订单监控] 新订单: %s %s %s qty=%s", ev.Order.ID, ev.Order.Symbol, ev.Order.Side, ev.Order.Quantity)
		err = m.handler.OnPlaced(ctx, ev.Order)
	case domain.EventModified:
		metrics.EventsModified.Add(1)
		log.Infof("✏️ [订单监控] 订单变化: %s", ev.Order.ID)
		err = m.handler.OnModified(ctx, *ev.Previous, ev.Order)
	case domain.EventCancelled:
		metrics.EventsCancelled.Add(1)
		log.Infof("🗑️ [订单监控] 订单消失: %s %s", ev.Order.ID, ev.Order.Symbol)
		err = m.handler.OnCancelled(ctx, ev.Order)
	default:
		err = fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if err != nil {
		metrics.HandlerErrors.Add(1)
		log.Errorf("❌ [订单监控] 处理 %s 事件失败: order=%s err=%v", ev.Kind, ev.Order.ID, err)
	}
}

func (m *Monitor) restoreSnapshot() {
	if m.opts.SnapshotStore == nil {
		return
	}
	var snap domain.Snapshot
	if err := m.opts.SnapshotStore.Load(&snap); err != nil {
		if !errors.Is(err, persistence.ErrNotExists) {
			log.Warnf("⚠️ [订单监控] 加载快照失败，从空快照开始: %v", err)
		}
		return
	}
	if snap == nil {
		return
	}
	metrics.SnapshotLoads.Add(1)
	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()
	log.Infof("👀 [订单监控] 已恢复上次快照: %d 个挂单", len(snap))
}
