package ports

import (
	"context"
	"time"

	"github.com/betbot/copytrade/internal/domain"
)

// EventHandler receives order changes from the monitor.
//
// Calls are serial: the monitor waits for each call to return before delivering
// the next event, so a slow handler slows the poll loop instead of queueing.
type EventHandler interface {
	OnPlaced(ctx context.Context, order domain.Order) error
	OnModified(ctx context.Context, prev, next domain.Order) error
	OnCancelled(ctx context.Context, order domain.Order) error
}

// OrderLinkResolver maps a primary order id to the order an account placed for it.
type OrderLinkResolver interface {
	SecondaryOrderID(ctx context.Context, account, primaryOrderID string) (string, bool, error)
}

// Record is one replication attempt as persisted by the ledger.
type Record struct {
	Action   domain.ActionKind
	Signal   domain.Signal
	Result   domain.ReplicationResult
	Recorded time.Time
}

// RecordSummary is a read-back row for status surfaces.
type RecordSummary struct {
	ID             string                  `json:"id"`
	Action         domain.ActionKind       `json:"action"`
	PrimaryOrderID string                  `json:"primary_order_id"`
	Symbol         string                  `json:"symbol"`
	Side           domain.Side             `json:"side"`
	Quantity       string                  `json:"quantity"`
	SuccessCount   int                     `json:"success_count"`
	Total          int                     `json:"total"`
	CreatedAt      time.Time               `json:"created_at"`
	Outcomes       []domain.AccountOutcome `json:"outcomes,omitempty"`
}

// Ledger persists replication history.
type Ledger interface {
	OrderLinkResolver
	Record(ctx context.Context, rec Record) error
	IsReplicated(ctx context.Context, primaryOrderID string) (bool, error)
	Recent(ctx context.Context, limit int) ([]RecordSummary, error)
}

// Report is pushed to subscribers after every replication.
type Report struct {
	Action         domain.ActionKind       `json:"action"`
	PrimaryOrderID string                  `json:"primary_order_id"`
	Symbol         string                  `json:"symbol"`
	Side           domain.Side             `json:"side"`
	SuccessCount   int                     `json:"success_count"`
	Total          int                     `json:"total"`
	Outcomes       []domain.AccountOutcome `json:"outcomes"`
	At             time.Time               `json:"at"`
}

// Reporter fans replication reports out to observers (control plane, dashboard).
type Reporter interface {
	OnReplicated(report Report)
}
