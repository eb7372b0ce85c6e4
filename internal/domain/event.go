package domain

import "time"

// EventKind 订单变化类型
type EventKind string

const (
	EventPlaced    EventKind = "placed"
	EventModified  EventKind = "modified"
	EventCancelled EventKind = "cancelled"
)

// ChangeEvent 相邻两次快照之间检测到的单个订单变化
// Modified 事件的 Previous 为旧版本订单；Cancelled 事件的 Order 为最后一次看到的订单
type ChangeEvent struct {
	Kind       EventKind
	Order      Order
	Previous   *Order
	DetectedAt time.Time
}

// Snapshot 某一时刻主账户的全部挂单，按订单 ID 索引
type Snapshot map[string]Order

// Clone 浅拷贝（Order 为值类型，指针字段只读）
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, o := range s {
		out[id] = o
	}
	return out
}

// Equal 两个快照是否完全一致
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for id, o := range s {
		p, ok := other[id]
		if !ok || !o.Equal(p) {
			return false
		}
	}
	return true
}
