package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/copytrade/internal/domain"
)

// Input 一次决策的输入：检测到的变化 + 可选的市场上下文
type Input struct {
	Event domain.ChangeEvent
	// MarkPrice 标记价格；订单自身没有价格（市价单）时用于估算名义价值
	MarkPrice *decimal.Decimal
	Timestamp time.Time
}

// Strategy 决定一个订单变化是否需要复制
// 必须无状态（构造参数除外），可被并发调用
type Strategy interface {
	// Analyze 返回 (signal, nil) 表示复制；(nil, *Rejection) 表示拒绝
	Analyze(ctx context.Context, in Input) (*domain.Signal, error)
	Name() string
}

// Rejection 策略拒绝的原因；不是故障
type Rejection struct {
	Strategy string
	Reason   string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Strategy, r.Reason)
}

// IsRejection 判断 err 是否为策略拒绝
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

func reject(name, format string, args ...interface{}) error {
	return &Rejection{Strategy: name, Reason: fmt.Sprintf(format, args...)}
}

// validate 基础校验：合约非空、方向合法、数量为正
func validate(name string, o domain.Order) error {
	if strings.TrimSpace(o.Symbol) == "" {
		return reject(name, "missing symbol")
	}
	if !o.Side.Valid() {
		return reject(name, "invalid side %q", o.Side)
	}
	if !o.Quantity.IsPositive() {
		return reject(name, "invalid quantity %s", o.Quantity)
	}
	return nil
}

func normalizeSymbols(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}
