package strategy

import (
	"context"
	"fmt"

	"github.com/betbot/copytrade/internal/domain"
)

const (
	IDSimple     = "simple"
	IDUnfiltered = "unfiltered"
)

func init() {
	RegisterStrategy(IDSimple, newUnfiltered)
	RegisterStrategy(IDUnfiltered, newUnfiltered)
}

// Unfiltered 只做基础校验，其余原样复制
type Unfiltered struct {
	traderID int
}

func NewUnfiltered(traderID int) *Unfiltered {
	return &Unfiltered{traderID: traderID}
}

func newUnfiltered(p Params) (Strategy, error) {
	return NewUnfiltered(p.TraderID), nil
}

func (s *Unfiltered) Name() string {
	return fmt.Sprintf("Unfiltered (trader %d)", s.traderID)
}

func (s *Unfiltered) Analyze(ctx context.Context, in Input) (*domain.Signal, error) {
	o := in.Event.Order
	if err := validate(s.Name(), o); err != nil {
		return nil, err
	}
	sig := domain.SignalFromOrder(s.traderID, o, in.Timestamp)
	return &sig, nil
}
