package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AccountOutcome 单个从账户的复制结果
type AccountOutcome struct {
	Account  string          `json:"account"`
	OK       bool            `json:"ok"`
	Err      string          `json:"error,omitempty"`
	OrderID  string          `json:"order_id,omitempty"` // 从账户上的订单 ID
	Quantity decimal.Decimal `json:"quantity"`
}

// ReplicationResult 一次复制的全部结果，按账户名索引，条目数恒等于账户数
type ReplicationResult map[string]AccountOutcome

// Total 账户总数
func (r ReplicationResult) Total() int { return len(r) }

// SuccessCount 成功的账户数
func (r ReplicationResult) SuccessCount() int {
	n := 0
	for _, o := range r {
		if o.OK {
			n++
		}
	}
	return n
}

// Failed 失败的账户名（排序后返回）
func (r ReplicationResult) Failed() []string {
	var names []string
	for name, o := range r {
		if !o.OK {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Outcomes 按账户名排序的结果列表
func (r ReplicationResult) Outcomes() []AccountOutcome {
	out := make([]AccountOutcome, 0, len(r))
	for _, o := range r {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
