package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrUnknownStrategy 未注册的策略名
var ErrUnknownStrategy = errors.New("unknown strategy")

// Params 构造参数
type Params struct {
	TraderID        int
	MinNotional     decimal.Decimal
	AllowedSymbols  []string
	ExcludedSymbols []string
}

// Constructor 策略构造函数
type Constructor func(Params) (Strategy, error)

var (
	constructors   = make(map[string]Constructor)
	constructorsMu sync.RWMutex
)

// RegisterStrategy 注册策略构造函数，应在 init() 中调用；重复注册直接 panic
func RegisterStrategy(id string, c Constructor) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()
	id = strings.ToLower(id)
	if _, exists := constructors[id]; exists {
		panic(fmt.Errorf("strategy %s already registered", id))
	}
	constructors[id] = c
}

// New 按名称构造策略；未知名称是构造期错误
func New(name string, p Params) (Strategy, error) {
	constructorsMu.RLock()
	c, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	constructorsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownStrategy, name, strings.Join(Registered(), ", "))
	}
	return c(p)
}

// Registered 已注册的策略名（排序）
func Registered() []string {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()
	ids := make([]string, 0, len(constructors))
	for id := range constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
