package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const couponColumns = `id, code, type, value, min_amount, max_discount, description,
	valid_from, expires_at, max_uses, uses, active`

const (
	findCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	listActiveCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons
		WHERE active
		  AND (valid_from IS NULL OR valid_from <= $1)
		  AND (expires_at IS NULL OR expires_at > $1)
		  AND (max_uses = 0 OR uses < max_uses)
		ORDER BY min_amount, code`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, UPPER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_amount = EXCLUDED.min_amount,
			max_discount = EXCLUDED.max_discount,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			expires_at = EXCLUDED.expires_at,
			max_uses = EXCLUDED.max_uses,
			active = EXCLUDED.active`

	createImportTableSQL = `CREATE TEMP TABLE coupons_import
		(LIKE coupons INCLUDING DEFAULTS) ON COMMIT DROP`

	mergeImportSQL = `INSERT INTO coupons (` + couponColumns + `)
		SELECT ` + couponColumns + ` FROM coupons_import
		ON CONFLICT DO NOTHING`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon rule by code, case-insensitively, whether
// or not it is currently active.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	rule, err := pgx.CollectExactlyOneRow(rows, scanRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &rule, nil
}

// ListActive returns rules that are active, inside their window at now and
// under their usage cap.
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}
	rules, err := pgx.CollectRows(rows, scanRule)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}
	return rules, nil
}

// Upsert inserts rules or updates them by code in one batch. Usage counts
// of existing coupons are preserved.
func (r *CouponRepository) Upsert(ctx context.Context, rules []coupon.Rule) error {
	b := &pgx.Batch{}
	for _, rule := range rules {
		if err := checkWritable(rule); err != nil {
			return err
		}
		b.Queue(upsertCouponSQL, ruleArgs(rule)...)
	}
	if err := r.pool.SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	return nil
}

// Import bulk-loads rules with COPY and keeps existing coupons untouched on
// conflict. It returns the number of coupons inserted.
func (r *CouponRepository) Import(ctx context.Context, rules []coupon.Rule) (int64, error) {
	rows := make([][]any, 0, len(rules))
	for _, rule := range rules {
		if err := checkWritable(rule); err != nil {
			return 0, err
		}
		rule.Code = coupon.NormalizeCode(rule.Code)
		rows = append(rows, ruleArgs(rule))
	}

	var inserted int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createImportTableSQL); err != nil {
			return errors.Wrap(err, "create import table")
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"coupons_import"},
			[]string{"id", "code", "type", "value", "min_amount", "max_discount", "description",
				"valid_from", "expires_at", "max_uses", "uses", "active"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return errors.Wrap(err, "copy coupons")
		}
		tag, err := tx.Exec(ctx, mergeImportSQL)
		if err != nil {
			return errors.Wrap(err, "merge coupons")
		}
		inserted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "import coupons")
	}
	return inserted, nil
}

func checkWritable(rule coupon.Rule) error {
	if !rule.Type.Valid() {
		return errors.Errorf("coupon %q: unsupported type %q", rule.Code, rule.Type)
	}
	if rule.Type == coupon.TypeFixed && rule.MaxDiscount.Valid {
		return errors.Errorf("coupon %q: fixed coupons cannot carry a maximum discount", rule.Code)
	}
	return nil
}

func ruleArgs(rule coupon.Rule) []any {
	var expires *time.Time
	if !rule.ExpiresAt.IsZero() {
		expires = &rule.ExpiresAt
	}
	id := rule.ID
	if id == "" {
		id = coupon.NormalizeCode(rule.Code)
	}
	return []any{
		id, rule.Code, string(rule.Type), rule.Value, rule.MinAmount, rule.MaxDiscount,
		rule.Description, rule.ValidFrom, expires, rule.MaxUses, rule.Uses, rule.Active,
	}
}

func scanRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule    coupon.Rule
		typ     string
		expires *time.Time
	)
	err := row.Scan(
		&rule.ID, &rule.Code, &typ, &rule.Value, &rule.MinAmount, &rule.MaxDiscount,
		&rule.Description, &rule.ValidFrom, &expires, &rule.MaxUses, &rule.Uses, &rule.Active,
	)
	rule.Type = coupon.Type(typ)
	if expires != nil {
		rule.ExpiresAt = *expires
	}
	return rule, err
}
