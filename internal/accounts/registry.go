package accounts

import (
	"errors"
	"fmt"

	"github.com/betbot/copytrade/internal/ports"
)

var (
	ErrNoAccounts       = errors.New("no secondary accounts configured")
	ErrEmptyAccountName = errors.New("account name is empty")
	ErrDuplicateAccount = errors.New("duplicate account name")
	ErrNilClient        = errors.New("account client is nil")
)

// Credentials API 凭证
type Credentials struct {
	APIKey    string
	APISecret string
}

// Account 一个从账户及其交易客户端
type Account struct {
	Name        string
	Credentials Credentials
	Client      ports.ExchangeClient
}

// Registry 从账户注册表
//
// 构造后不可变，可被多个 goroutine 并发读取；顺序与配置一致。
type Registry struct {
	accounts []Account
	byName   map[string]int
}

// NewRegistry 校验并构造注册表，配置错误在这里直接返回
func NewRegistry(accounts []Account) (*Registry, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	r := &Registry{
		accounts: make([]Account, 0, len(accounts)),
		byName:   make(map[string]int, len(accounts)),
	}
	for i, acc := range accounts {
		if acc.Name == "" {
			return nil, fmt.Errorf("account #%d: %w", i+1, ErrEmptyAccountName)
		}
		if _, dup := r.byName[acc.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, acc.Name)
		}
		if acc.Client == nil {
			return nil, fmt.Errorf("account %s: %w", acc.Name, ErrNilClient)
		}
		r.byName[acc.Name] = len(r.accounts)
		r.accounts = append(r.accounts, acc)
	}
	return r, nil
}

// All 全部账户（副本）
func (r *Registry) All() []Account {
	out := make([]Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Names 账户名列表
func (r *Registry) Names() []string {
	names := make([]string, len(r.accounts))
	for i, acc := range r.accounts {
		names[i] = acc.Name
	}
	return names
}

// Get 按名称查找
func (r *Registry) Get(name string) (Account, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Account{}, false
	}
	return r.accounts[i], true
}

func (r *Registry) Len() int { return len(r.accounts) }
