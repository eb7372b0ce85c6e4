package copytrade

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/accounts"
	"github.com/betbot/copytrade/internal/execution"
	"github.com/betbot/copytrade/internal/monitor"
	"github.com/betbot/copytrade/internal/ports"
	"github.com/betbot/copytrade/internal/strategy"
	"github.com/betbot/copytrade/pkg/cache"
	"github.com/betbot/copytrade/pkg/persistence"
)

var log = logrus.WithField("component", "copytrade")

// ErrStopInProgress 上一次 Stop 超时后旧的监控循环仍未退出
var ErrStopInProgress = errors.New("copytrade: previous monitor loop has not exited yet")

// State 生命周期状态
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Deps 跟单所需的协作者；Ledger/Reporter/SnapshotStore/PriceCache 可选
type Deps struct {
	Primary       ports.ExchangeClient
	Registry      *accounts.Registry
	Strategy      strategy.Strategy
	Engine        *execution.Engine
	Ledger        ports.Ledger
	Reporter      ports.Reporter
	SnapshotStore persistence.Store
	PriceCache    *cache.PriceCache
}

type Options struct {
	PollInterval time.Duration
	Enabled      bool
	Symbol       string
	TraderID     int
}

// Stats 自启动以来的累计计数
type Stats struct {
	Placed           int64 `json:"placed"`
	Modified         int64 `json:"modified"`
	Cancelled        int64 `json:"cancelled"`
	Rejected         int64 `json:"rejected"`
	Skipped          int64 `json:"skipped"`
	AccountSuccesses int64 `json:"account_successes"`
	AccountFailures  int64 `json:"account_failures"`
}

// Status 供控制面/看板查询
type Status struct {
	State       State     `json:"state"`
	Running     bool      `json:"running"`
	Enabled     bool      `json:"enabled"`
	Accounts    []string  `json:"accounts"`
	Strategy    string    `json:"strategy"`
	Multiplier  string    `json:"multiplier"`
	Symbol      string    `json:"symbol,omitempty"`
	OpenOrders  int       `json:"open_orders"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	LastPollAt  time.Time `json:"last_poll_at,omitempty"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
	Stats       Stats     `json:"stats"`
}

type counters struct {
	placed, modified, cancelled  atomic.Int64
	rejected, skipped            atomic.Int64
	accountSuccess, accountFails atomic.Int64
}

// Orchestrator 持有唯一的运行状态：启动时创建订单监控，并把三类变化
// 经策略交给复制引擎
type Orchestrator struct {
	deps Deps
	opts Options

	enabled atomic.Bool
	stats   counters

	mu        sync.Mutex
	state     State
	mon       *monitor.Monitor
	cancelRun context.CancelFunc
	// stopping 最近一次被停止的监控；退出前不允许再次 Start（两者共用快照存储）
	stopping  *monitor.Monitor
	startedAt time.Time

	eventMu     sync.RWMutex
	lastEventAt time.Time

	now func() time.Time
}

var _ ports.EventHandler = (*Orchestrator)(nil)

func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Primary == nil {
		return nil, errors.New("copytrade: primary client is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("copytrade: account registry is required")
	}
	if deps.Strategy == nil {
		return nil, errors.New("copytrade: strategy is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("copytrade: engine is required")
	}
	o := &Orchestrator{
		deps:  deps,
		opts:  opts,
		state: StateStopped,
		now:   time.Now,
	}
	o.enabled.Store(opts.Enabled)
	return o, nil
}

// Start Stopped -> Running；已在运行时仅告警
// 监控循环使用与调用方 ctx 解耦的上下文，只能通过 Stop 结束
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateRunning {
		log.Warnf("⚠️ [跟单] 已在运行中，忽略重复启动")
		return nil
	}
	if o.stopping != nil {
		select {
		case <-o.stopping.Done():
			o.stopping = nil
		default:
			return ErrStopInProgress
		}
	}

	mon := monitor.New(o.deps.Primary, o, monitor.Options{
		PollInterval:  o.opts.PollInterval,
		Symbol:        o.opts.Symbol,
		SnapshotStore: o.deps.SnapshotStore,
	})
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		if err := mon.Run(runCtx); err != nil {
			log.Errorf("❌ [跟单] 订单监控退出: %v", err)
		}
	}()

	o.mon = mon
	o.cancelRun = cancel
	o.state = StateRunning
	o.startedAt = o.now()
	log.Infof("🚀 [跟单] 已启动: 策略=%s 账户=%d 倍数=%s 复制开关=%v",
		o.deps.Strategy.Name(), o.deps.Registry.Len(), o.deps.Engine.Multiplier(), o.Enabled())
	return nil
}

// Stop Running -> Stopped；状态切换后释放锁再等待监控循环退出（正在处理的事件会处理完），
// ctx 到期则强制取消并返回 ctx 的错误
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateStopped {
		o.mu.Unlock()
		return nil
	}
	mon, cancel := o.mon, o.cancelRun
	o.mon, o.cancelRun = nil, nil
	o.stopping = mon
	o.state = StateStopped
	o.mu.Unlock()

	mon.Stop()
	var err error
	select {
	case <-mon.Done():
	case <-ctx.Done():
		err = ctx.Err()
		log.Warnf("⚠️ [跟单] 等待监控退出超时，强制取消")
	}
	cancel()
	log.Infof("🛑 [跟单] 已停止")
	return err
}

// Running 是否处于运行状态
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateRunning
}

// SetEnabled 全局复制开关；关闭后监控继续运行，但回调不再做任何复制
func (o *Orchestrator) SetEnabled(enabled bool) {
	if o.enabled.Swap(enabled) != enabled {
		log.Infof("🔀 [跟单] 复制开关: %v", enabled)
	}
}

func (o *Orchestrator) Enabled() bool { return o.enabled.Load() }

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	st := Status{
		State:     o.state,
		Running:   o.state == StateRunning,
		StartedAt: o.startedAt,
	}
	if o.mon != nil {
		st.OpenOrders = len(o.mon.Snapshot())
		st.LastPollAt = o.mon.LastPoll()
	}
	o.mu.Unlock()

	o.eventMu.RLock()
	st.LastEventAt = o.lastEventAt
	o.eventMu.RUnlock()

	st.Enabled = o.Enabled()
	st.Accounts = o.deps.Registry.Names()
	st.Strategy = o.deps.Strategy.Name()
	st.Multiplier = o.deps.Engine.Multiplier().String()
	st.Symbol = o.opts.Symbol
	st.Stats = Stats{
		Placed:           o.stats.placed.Load(),
		Modified:         o.stats.modified.Load(),
		Cancelled:        o.stats.cancelled.Load(),
		Rejected:         o.stats.rejected.Load(),
		Skipped:          o.stats.skipped.Load(),
		AccountSuccesses: o.stats.accountSuccess.Load(),
		AccountFailures:  o.stats.accountFails.Load(),
	}
	return st
}

// Recent 最近的复制记录；未配置 ledger 时返回空
func (o *Orchestrator) Recent(ctx context.Context, limit int) ([]ports.RecordSummary, error) {
	if o.deps.Ledger == nil {
		return nil, nil
	}
	return o.deps.Ledger.Recent(ctx, limit)
}

func (o *Orchestrator) touch() {
	o.eventMu.Lock()
	o.lastEventAt = o.now()
	o.eventMu.Unlock()
}
