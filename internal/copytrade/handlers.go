package copytrade

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/metrics"
	"github.com/betbot/copytrade/internal/ports"
	"github.com/betbot/copytrade/internal/strategy"
)

// OnPlaced 主账户新挂单：去重 -> 策略 -> 复制 place
func (o *Orchestrator) OnPlaced(ctx context.Context, order domain.Order) error {
	if !o.Enabled() {
		o.stats.skipped.Add(1)
		return nil
	}

	if o.deps.Ledger != nil {
		done, err := o.deps.Ledger.IsReplicated(ctx, order.ID)
		if err != nil {
			log.Warnf("⚠️ [跟单] 查询复制记录失败，继续处理: primary=%s err=%v", order.ID, err)
		} else if done {
			o.stats.skipped.Add(1)
			log.Infof("⏭️ [跟单] 主订单已复制过，跳过: primary=%s", order.ID)
			return nil
		}
	}

	now := o.now()
	in := strategy.Input{
		Event:     domain.ChangeEvent{Kind: domain.EventPlaced, Order: order, DetectedAt: now},
		Timestamp: now,
	}
	if order.Price == nil {
		in.MarkPrice = o.markPrice(ctx, order.Symbol)
	}

	sig, ok := o.analyze(ctx, in)
	if !ok {
		return nil
	}

	result := o.deps.Engine.Apply(ctx, *sig, domain.ActionPlace, nil)
	o.stats.placed.Add(1)
	o.finish(ctx, domain.ActionPlace, *sig, result)
	return nil
}

// OnModified 主账户改单：只同步数量/价格的变化；部分成交等状态变化不复制
func (o *Orchestrator) OnModified(ctx context.Context, prev, next domain.Order) error {
	if !o.Enabled() {
		o.stats.skipped.Add(1)
		return nil
	}

	changes := domain.DiffOrders(prev, next)
	if changes.Empty() {
		o.stats.skipped.Add(1)
		log.Debugf("⏭️ [跟单] 订单变化不涉及数量/价格，跳过: primary=%s status=%s filled=%s",
			next.ID, next.Status, next.FilledQuantity)
		return nil
	}

	if o.neverReplicated(ctx, next.ID) {
		o.stats.skipped.Add(1)
		log.Debugf("⏭️ [跟单] 主订单从未复制，无需改单: primary=%s", next.ID)
		return nil
	}

	now := o.now()
	prevCopy := prev
	sig, ok := o.analyze(ctx, strategy.Input{
		Event:     domain.ChangeEvent{Kind: domain.EventModified, Order: next, Previous: &prevCopy, DetectedAt: now},
		Timestamp: now,
	})
	if !ok {
		return nil
	}

	result := o.deps.Engine.Apply(ctx, *sig, domain.ActionModify, &changes)
	o.stats.modified.Add(1)
	o.finish(ctx, domain.ActionModify, *sig, result)
	return nil
}

// OnCancelled 主订单从挂单列表消失：区分成交与撤单，撤单不经过策略过滤
func (o *Orchestrator) OnCancelled(ctx context.Context, order domain.Order) error {
	if !o.Enabled() {
		o.stats.skipped.Add(1)
		return nil
	}

	if getter, ok := o.deps.Primary.(ports.OrderStatusGetter); ok {
		final, err := getter.GetOrder(ctx, order.ID, order.Symbol)
		switch {
		case err != nil:
			log.Debugf("⚠️ [跟单] 查询主订单终态失败，按撤单处理: primary=%s err=%v", order.ID, err)
		case final.Status == domain.OrderStatusFilled:
			o.stats.skipped.Add(1)
			log.Infof("✅ [跟单] 主订单已成交，不撤从账户订单: primary=%s", order.ID)
			return nil
		}
	}

	if o.neverReplicated(ctx, order.ID) {
		o.stats.skipped.Add(1)
		log.Debugf("⏭️ [跟单] 主订单从未复制，无需撤单: primary=%s", order.ID)
		return nil
	}

	sig := domain.SignalFromOrder(o.opts.TraderID, order, o.now())
	result := o.deps.Engine.Apply(ctx, sig, domain.ActionCancel, nil)
	o.stats.cancelled.Add(1)
	o.finish(ctx, domain.ActionCancel, sig, result)
	return nil
}

// neverReplicated ledger 明确记录该主订单没有 place 复制过；查询失败时按已复制处理
func (o *Orchestrator) neverReplicated(ctx context.Context, primaryOrderID string) bool {
	if o.deps.Ledger == nil {
		return false
	}
	done, err := o.deps.Ledger.IsReplicated(ctx, primaryOrderID)
	return err == nil && !done
}

// analyze 执行策略；拒绝只计数并记 debug 日志
func (o *Orchestrator) analyze(ctx context.Context, in strategy.Input) (*domain.Signal, bool) {
	sig, err := o.deps.Strategy.Analyze(ctx, in)
	if err == nil && sig != nil {
		return sig, true
	}
	o.stats.rejected.Add(1)
	metrics.SignalsRejected.Add(1)
	if err == nil || strategy.IsRejection(err) {
		log.Debugf("🚫 [策略] %s 拒绝: primary=%s reason=%v", o.deps.Strategy.Name(), in.Event.Order.ID, err)
	} else {
		log.Warnf("⚠️ [策略] %s 执行失败: primary=%s err=%v", o.deps.Strategy.Name(), in.Event.Order.ID, err)
	}
	return nil, false
}

// markPrice 市价单估算名义价值用；取不到返回 nil
func (o *Orchestrator) markPrice(ctx context.Context, symbol string) *decimal.Decimal {
	var (
		p   decimal.Decimal
		err error
	)
	switch getter, ok := o.deps.Primary.(ports.MarkPriceGetter); {
	case o.deps.PriceCache != nil:
		p, err = o.deps.PriceCache.GetOrLoad(ctx, symbol)
	case ok:
		p, err = getter.MarkPrice(ctx, symbol)
	default:
		return nil
	}
	if err != nil || !p.IsPositive() {
		log.Debugf("⚠️ [跟单] 获取标记价格失败: symbol=%s err=%v", symbol, err)
		return nil
	}
	return &p
}

// finish 汇总日志、写入 ledger、推送报告；这两步的错误只记录不传播
func (o *Orchestrator) finish(ctx context.Context, action domain.ActionKind, sig domain.Signal, result domain.ReplicationResult) {
	ok, total := result.SuccessCount(), result.Total()
	o.stats.accountSuccess.Add(int64(ok))
	o.stats.accountFails.Add(int64(total - ok))
	o.touch()

	summary := fmt.Sprintf("%d/%d", ok, total)
	if ok == total {
		log.Infof("📋 [跟单] %s 复制完成 %s: primary=%s %s %s qty=%s", action, summary, sig.PrimaryOrderID, sig.Symbol, sig.Side, sig.Quantity)
	} else {
		log.Warnf("📋 [跟单] %s 部分失败 %s: primary=%s %s failed=%v", action, summary, sig.PrimaryOrderID, sig.Symbol, result.Failed())
	}

	at := o.now()
	if o.deps.Ledger != nil {
		if err := o.deps.Ledger.Record(ctx, ports.Record{Action: action, Signal: sig, Result: result, Recorded: at}); err != nil {
			log.Errorf("❌ [跟单] 写入复制记录失败: primary=%s err=%v", sig.PrimaryOrderID, err)
		}
	}
	if o.deps.Reporter != nil {
		o.deps.Reporter.OnReplicated(ports.Report{
			Action:         action,
			PrimaryOrderID: sig.PrimaryOrderID,
			Symbol:         sig.Symbol,
			Side:           sig.Side,
			SuccessCount:   ok,
			Total:          total,
			Outcomes:       result.Outcomes(),
			At:             at,
		})
	}
}
