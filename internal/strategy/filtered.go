package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/betbot/copytrade/internal/domain"
)

const IDFiltered = "filtered"

func init() {
	RegisterStrategy(IDFiltered, func(p Params) (Strategy, error) {
		return NewFiltered(p)
	})
}

// Filtered 基础校验之后依次检查：
//  1. 名义价值下限（数量 × 价格，价格缺失时用标记价格，都没有按 0 计）
//  2. 白名单（非空时必须命中）
//  3. 黑名单（命中即拒绝，优先于白名单）
type Filtered struct {
	traderID    int
	minNotional decimal.Decimal
	allowed     map[string]struct{}
	excluded    map[string]struct{}
}

func NewFiltered(p Params) (*Filtered, error) {
	if p.MinNotional.IsNegative() {
		return nil, fmt.Errorf("min notional must not be negative: %s", p.MinNotional)
	}
	return &Filtered{
		traderID:    p.TraderID,
		minNotional: p.MinNotional,
		allowed:     normalizeSymbols(p.AllowedSymbols),
		excluded:    normalizeSymbols(p.ExcludedSymbols),
	}, nil
}

func (s *Filtered) Name() string {
	return fmt.Sprintf("Filtered (trader %d)", s.traderID)
}

func (s *Filtered) Analyze(ctx context.Context, in Input) (*domain.Signal, error) {
	o := in.Event.Order
	name := s.Name()
	if err := validate(name, o); err != nil {
		return nil, err
	}

	if s.minNotional.IsPositive() {
		notional := o.Notional(in.MarkPrice)
		if notional.LessThan(s.minNotional) {
			return nil, reject(name, "notional %s below minimum %s", notional, s.minNotional)
		}
	}

	symbol := strings.ToUpper(o.Symbol)
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[symbol]; !ok {
			return nil, reject(name, "symbol %s not in allowed list", o.Symbol)
		}
	}
	if _, ok := s.excluded[symbol]; ok {
		return nil, reject(name, "symbol %s is excluded", o.Symbol)
	}

	sig := domain.SignalFromOrder(s.traderID, o, in.Timestamp)
	return &sig, nil
}
