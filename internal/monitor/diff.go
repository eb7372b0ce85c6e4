package monitor

import (
	"sort"
	"time"

	"github.com/betbot/copytrade/internal/domain"
)

// Diff 比较相邻两次快照，返回事件列表：先全部 Placed，再全部 Modified，最后全部 Cancelled
// 每组内按订单 ID 排序。每个订单 ID 只会落在 新增/变化/消失/不变 其中之一。
func Diff(prev, next domain.Snapshot, at time.Time) []domain.ChangeEvent {
	var placed, modified, cancelled []domain.ChangeEvent

	for id, o := range next {
		old, existed := prev[id]
		switch {
		case !existed:
			placed = append(placed, domain.ChangeEvent{Kind: domain.EventPlaced, Order: o, DetectedAt: at})
		case !old.Equal(o):
			p := old
			modified = append(modified, domain.ChangeEvent{Kind: domain.EventModified, Order: o, Previous: &p, DetectedAt: at})
		}
	}
	for id, o := range prev {
		if _, still := next[id]; !still {
			cancelled = append(cancelled, domain.ChangeEvent{Kind: domain.EventCancelled, Order: o, DetectedAt: at})
		}
	}

	byID := func(evs []domain.ChangeEvent) {
		sort.Slice(evs, func(i, j int) bool { return evs[i].Order.ID < evs[j].Order.ID })
	}
	byID(placed)
	byID(modified)
	byID(cancelled)

	events := make([]domain.ChangeEvent, 0, len(placed)+len(modified)+len(cancelled))
	events = append(events, placed...)
	events = append(events, modified...)
	events = append(events, cancelled...)
	return events
}

// buildSnapshot 由一次拉取结果构造快照；同一批结果中重复的 ID 以最后一个为准
func buildSnapshot(orders []domain.Order) (domain.Snapshot, []string) {
	snap := make(domain.Snapshot, len(orders))
	var dups []string
	for _, o := range orders {
		if o.ID == "" {
			continue
		}
		if _, ok := snap[o.ID]; ok {
			dups = append(dups, o.ID)
		}
		snap[o.ID] = o
	}
	return snap, dups
}
