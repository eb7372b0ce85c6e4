package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/ports"
)

var log = logrus.WithField("component", "ledger")

// Ledger 复制记录（SQLite）：每次复制一行，每个账户的结果一行，
// 以及主订单 -> 从账户订单的关联（供撤单/改单定位从账户订单）
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.Ledger = (*Ledger)(nil)

// Open 打开（或创建）数据库并执行迁移；path 为 ":memory:" 时使用内存库
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db, now: time.Now}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Infof("🗄️ [ledger] 已打开: %s", path)
	return l, nil
}

func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record 在一个事务中写入复制记录、各账户结果，并维护订单关联
func (l *Ledger) Record(ctx context.Context, rec ports.Record) error {
	at := rec.Recorded
	if at.IsZero() {
		at = l.now()
	}
	ts := at.UTC().Format(time.RFC3339Nano)
	sig := rec.Signal
	id := uuid.NewString()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO replications (id,action,primary_order_id,trader_id,symbol,side,order_type,quantity,price,success_count,total,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, id, string(rec.Action), sig.PrimaryOrderID, sig.TraderID, sig.Symbol, string(sig.Side), string(sig.OrderType),
		sig.Quantity.String(), decimalOrNull(sig.Price), rec.Result.SuccessCount(), rec.Result.Total(), ts)
	if err != nil {
		return fmt.Errorf("insert replication: %w", err)
	}

	for _, o := range rec.Result.Outcomes() {
		_, err = tx.ExecContext(ctx, `
INSERT INTO replication_outcomes (replication_id,account,ok,error,secondary_order_id,quantity)
VALUES (?,?,?,?,?,?)
`, id, o.Account, boolToInt(o.OK), nullString(o.Err), nullString(o.OrderID), o.Quantity.String())
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Account, err)
		}

		if !o.OK || o.OrderID == "" {
			continue
		}
		switch rec.Action {
		case domain.ActionPlace:
			_, err = tx.ExecContext(ctx, `
INSERT INTO order_links (primary_order_id,account,secondary_order_id,symbol,created_at)
VALUES (?,?,?,?,?)
ON CONFLICT(primary_order_id,account) DO UPDATE SET secondary_order_id=excluded.secondary_order_id, created_at=excluded.created_at
`, sig.PrimaryOrderID, o.Account, o.OrderID, sig.Symbol, ts)
		case domain.ActionCancel:
			_, err = tx.ExecContext(ctx, `DELETE FROM order_links WHERE primary_order_id=? AND account=?`, sig.PrimaryOrderID, o.Account)
		}
		if err != nil {
			return fmt.Errorf("update order link %s: %w", o.Account, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsReplicated 主订单是否已经做过 place 复制（无论成功与否，复制不重试）
func (l *Ledger) IsReplicated(ctx context.Context, primaryOrderID string) (bool, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM replications WHERE primary_order_id=? AND action=?
`, primaryOrderID, string(domain.ActionPlace))
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SecondaryOrderID 查询某账户为主订单下的订单 ID
func (l *Ledger) SecondaryOrderID(ctx context.Context, account, primaryOrderID string) (string, bool, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT secondary_order_id FROM order_links WHERE primary_order_id=? AND account=?
`, primaryOrderID, account)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}

// Recent 最近的复制记录（新的在前），附带每个账户的结果
func (l *Ledger) Recent(ctx context.Context, limit int) ([]ports.RecordSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id,action,primary_order_id,symbol,side,quantity,success_count,total,created_at
FROM replications ORDER BY rowid DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	var out []ports.RecordSummary
	index := map[string]int{}
	for rows.Next() {
		var r ports.RecordSummary
		var action, side, createdAt string
		if err := rows.Scan(&r.ID, &action, &r.PrimaryOrderID, &r.Symbol, &side, &r.Quantity, &r.SuccessCount, &r.Total, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		r.Action = domain.ActionKind(action)
		r.Side = domain.Side(side)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		index[r.ID] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(out)), ",")
	args := make([]interface{}, 0, len(out))
	for _, r := range out {
		args = append(args, r.ID)
	}
	orows, err := l.db.QueryContext(ctx, `
SELECT replication_id,account,ok,error,secondary_order_id,quantity
FROM replication_outcomes WHERE replication_id IN (`+placeholders+`) ORDER BY account
`, args...)
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		var repID string
		var o domain.AccountOutcome
		var ok int
		var errText, orderID, qty sql.NullString
		if err := orows.Scan(&repID, &o.Account, &ok, &errText, &orderID, &qty); err != nil {
			return nil, err
		}
		o.OK = ok != 0
		o.Err = errText.String
		o.OrderID = orderID.String
		if qty.Valid {
			o.Quantity, _ = decimal.NewFromString(qty.String)
		}
		if i, found := index[repID]; found {
			out[i].Outcomes = append(out[i].Outcomes, o)
		}
	}
	return out, orows.Err()
}

func decimalOrNull(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
