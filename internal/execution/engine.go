package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/accounts"
	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/metrics"
	"github.com/betbot/copytrade/internal/ports"
	"github.com/betbot/copytrade/pkg/syncgroup"
)

var log = logrus.WithField("component", "execution")

var (
	ErrInvalidMultiplier = errors.New("copy multiplier must be greater than zero")
	ErrNoLinkedOrder     = errors.New("no linked order for this account")
	ErrNothingToModify   = errors.New("modify without changes")
	ErrQuantityTooSmall  = errors.New("scaled quantity rounds to zero")
	ErrUnknownAction     = errors.New("unknown action")
)

type Options struct {
	// RoundQuantity 为 true 时缩放后数量按 QuantityPrecision 位小数向下取整
	RoundQuantity     bool
	QuantityPrecision int32
	// AccountTimeout 单账户调用超时；0 表示依赖客户端自身超时
	AccountTimeout time.Duration
}

// Engine 复制引擎：把一个信号同时施加到所有从账户。
//
// - 每个账户一个 goroutine，同时启动、全部等待
// - 单账户的错误或 panic 只影响该账户的结果，不取消其他账户
// - 结果条目数恒等于账户数
// - 不做重试
type Engine struct {
	registry   *accounts.Registry
	multiplier decimal.Decimal
	links      ports.OrderLinkResolver
	opts       Options
}

func NewEngine(registry *accounts.Registry, multiplier decimal.Decimal, links ports.OrderLinkResolver, opts Options) (*Engine, error) {
	if !multiplier.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMultiplier, multiplier)
	}
	if registry == nil {
		return nil, accounts.ErrNoAccounts
	}
	e := &Engine{
		registry:   registry,
		multiplier: multiplier,
		links:      links,
		opts:       opts,
	}
	return e, nil
}

func (e *Engine) Multiplier() decimal.Decimal { return e.multiplier }

// SetLinks 注入订单关联解析器（ledger 晚于引擎创建时使用）
func (e *Engine) SetLinks(links ports.OrderLinkResolver) { e.links = links }

// ScaleQuantity 数量 × 倍数，每次都由原始数量计算，不累积
func (e *Engine) ScaleQuantity(q decimal.Decimal) (decimal.Decimal, error) {
	scaled := q.Mul(e.multiplier)
	if e.opts.RoundQuantity {
		scaled = scaled.Truncate(e.opts.QuantityPrecision)
	}
	if !scaled.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s × %s", ErrQuantityTooSmall, q, e.multiplier)
	}
	return scaled, nil
}

// Apply 把信号施加到所有账户。changes 仅 modify 使用。
func (e *Engine) Apply(ctx context.Context, sig domain.Signal, action domain.ActionKind, changes *domain.OrderChanges) domain.ReplicationResult {
	accs := e.registry.All()
	result := make(domain.ReplicationResult, len(accs))

	if err := e.precheck(action, changes); err != nil {
		for _, acc := range accs {
			result[acc.Name] = domain.AccountOutcome{Account: acc.Name, Err: err.Error()}
		}
		log.Warnf("⚠️ [复制] %s 未执行: primary=%s err=%v", action, sig.PrimaryOrderID, err)
		return result
	}

	var mu sync.Mutex
	set := func(o domain.AccountOutcome) {
		mu.Lock()
		result[o.Account] = o
		mu.Unlock()
	}

	sg := syncgroup.NewSyncGroup().OnPanic(func(name string, r interface{}, stack []byte) {
		err := syncgroup.PanicError(r)
		log.Errorf("❌ [复制] 账户 %s panic: %v\n%s", name, err, stack)
		set(domain.AccountOutcome{Account: name, Err: err.Error()})
	})
	for _, acc := range accs {
		acc := acc
		sg.Add(acc.Name, func() {
			set(e.applyOne(ctx, acc, sig, action, changes))
		})
	}
	sg.RunAndWait()

	ok := result.SuccessCount()
	metrics.Replications.Add(1)
	metrics.AccountSuccesses.Add(int64(ok))
	metrics.AccountFailures.Add(int64(result.Total() - ok))
	return result
}

func (e *Engine) precheck(action domain.ActionKind, changes *domain.OrderChanges) error {
	switch action {
	case domain.ActionPlace, domain.ActionCancel:
		return nil
	case domain.ActionModify:
		if changes == nil || changes.Empty() {
			return ErrNothingToModify
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (e *Engine) applyOne(ctx context.Context, acc accounts.Account, sig domain.Signal, action domain.ActionKind, changes *domain.OrderChanges) domain.AccountOutcome {
	if e.opts.AccountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.AccountTimeout)
		defer cancel()
	}

	out := domain.AccountOutcome{Account: acc.Name}
	var err error
	switch action {
	case domain.ActionPlace:
		out.OrderID, out.Quantity, err = e.place(ctx, acc, sig)
	case domain.ActionCancel:
		out.OrderID, err = e.cancel(ctx, acc, sig)
	case domain.ActionModify:
		out.OrderID, out.Quantity, err = e.modify(ctx, acc, sig, *changes)
	}
	if err != nil {
		out.Err = err.Error()
		log.Warnf("⚠️ [复制] 账户 %s %s 失败: primary=%s symbol=%s err=%v", acc.Name, action, sig.PrimaryOrderID, sig.Symbol, err)
		return out
	}
	out.OK = true
	log.Debugf("✅ [复制] 账户 %s %s 成功: primary=%s secondary=%s", acc.Name, action, sig.PrimaryOrderID, out.OrderID)
	return out
}

func (e *Engine) place(ctx context.Context, acc accounts.Account, sig domain.Signal) (string, decimal.Decimal, error) {
	qty, err := e.ScaleQuantity(sig.Quantity)
	if err != nil {
		return "", decimal.Zero, err
	}
	res, err := acc.Client.PlaceOrder(ctx, ports.PlaceOrderRequest{
		Symbol:        sig.Symbol,
		Side:          sig.Side,
		Type:          sig.OrderType,
		Quantity:      qty,
		Price:         sig.Price,
		StopPrice:     sig.StopPrice,
		ReduceOnly:    sig.ReduceOnly,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return "", qty, err
	}
	return res.OrderID, qty, nil
}

func (e *Engine) resolve(ctx context.Context, acc accounts.Account, primaryOrderID string) (string, error) {
	if e.links == nil || primaryOrderID == "" {
		return "", ErrNoLinkedOrder
	}
	id, ok, err := e.links.SecondaryOrderID(ctx, acc.Name, primaryOrderID)
	if err != nil {
		return "", fmt.Errorf("resolve linked order: %w", err)
	}
	if !ok || id == "" {
		return "", ErrNoLinkedOrder
	}
	return id, nil
}

func (e *Engine) cancel(ctx context.Context, acc accounts.Account, sig domain.Signal) (string, error) {
	id, err := e.resolve(ctx, acc, sig.PrimaryOrderID)
	if err != nil {
		return "", err
	}
	return id, acc.Client.CancelOrder(ctx, id, sig.Symbol)
}

func (e *Engine) modify(ctx context.Context, acc accounts.Account, sig domain.Signal, changes domain.OrderChanges) (string, decimal.Decimal, error) {
	id, err := e.resolve(ctx, acc, sig.PrimaryOrderID)
	if err != nil {
		return "", decimal.Zero, err
	}
	req := ports.ModifyOrderRequest{OrderID: id, Symbol: sig.Symbol, Price: changes.Price}
	var qty decimal.Decimal
	if changes.Quantity != nil {
		qty, err = e.ScaleQuantity(*changes.Quantity)
		if err != nil {
			return id, decimal.Zero, err
		}
		req.Quantity = &qty
	}
	return id, qty, acc.Client.ModifyOrder(ctx, req)
}
