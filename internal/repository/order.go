package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

const orderColumns = `id, status, items, total, discounts, coupon_codes, created_at, updated_at`

const (
	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	transitionOrderSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + orderColumns

	upsertOrderSQL = `INSERT INTO orders (id, status, items, total, discounts, coupon_codes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			items = EXCLUDED.items,
			total = EXCLUDED.total,
			discounts = EXCLUDED.discounts,
			coupon_codes = EXCLUDED.coupon_codes,
			updated_at = now()`

	createReturnSQL = `INSERT INTO return_requests
		(id, order_id, product_id, reason, refund_method, kind, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns the order with the given ID.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// TransitionStatus updates the status in a single conditional UPDATE, so
// concurrent transitions from the same state cannot both apply.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from []order.Status, to order.Status) (*order.Order, bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, transitionOrderSQL, id, allowed, string(to))
	if err != nil {
		return nil, false, errors.Wrapf(err, "transition order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	switch {
	case err == nil:
		return &o, true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, false, errors.Wrapf(err, "transition order %q", id)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// CreateReturn stores a return or exchange request.
func (r *OrderRepository) CreateReturn(ctx context.Context, rec *order.ReturnRecord) error {
	_, err := r.pool.Exec(ctx, createReturnSQL,
		rec.ID, rec.OrderID, rec.ProductID, rec.Reason,
		string(rec.RefundMethod), string(rec.Kind), rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create return for order %q", rec.OrderID)
	}
	return nil
}

// Upsert inserts or replaces orders in one batch.
func (r *OrderRepository) Upsert(ctx context.Context, orders []order.Order) error {
	b := &pgx.Batch{}
	for _, o := range orders {
		codes := o.Coupons
		if codes == nil {
			codes = []string{}
		}
		b.Queue(upsertOrderSQL, o.ID, string(o.Status), encodeItems(o.Items), o.Total, o.Discounts, codes)
	}
	if err := r.pool.SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrap(err, "upsert orders")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
		items  []byte
	)
	if err := row.Scan(
		&o.ID, &status, &items, &o.Total, &o.Discounts, &o.Coupons, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return o, err
	}
	o.Status = order.ParseStatus(status)

	parsed, err := decodeItems(items)
	if err != nil {
		return o, errors.Wrapf(err, "order %q items", o.ID)
	}
	o.Items = parsed
	return o, nil
}

// encodeItems renders order lines as the JSONB column value. Prices are
// stored as strings to keep them exact.
func encodeItems(items []order.Item) []byte {
	e := &jx.Encoder{}
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		e.Str(it.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeItems(raw []byte) ([]order.Item, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []order.Item
	err := jx.DecodeBytes(raw).Arr(func(d *jx.Decoder) error {
		var it order.Item
		err := d.Obj(func(d *jx.Decoder, key string) (err error) {
			switch key {
			case "productId":
				it.ProductID, err = d.Str()
			case "name":
				it.Name, err = d.Str()
			case "quantity":
				it.Quantity, err = d.Int()
			case "price":
				it.Price, err = decodePrice(d)
			default:
				err = d.Skip()
			}
			return err
		})
		items = append(items, it)
		return err
	})
	return items, err
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	}
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
