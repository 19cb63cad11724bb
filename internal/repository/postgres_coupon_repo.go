package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

const couponColumns = `id, code, discount_type, discount_value, amount_cny, max_uses, used_count,
	is_active, wecom_external_user_id, description, created_at`

// PostgresCouponRepo はPostgreSQLを使用したクーポンリポジトリ。
type PostgresCouponRepo struct {
	db  *sql.DB
	log queryLogger
}

// NewPostgresCouponRepo はPostgresCouponRepoを生成する。
func NewPostgresCouponRepo(db *sql.DB, logger *slog.Logger) *PostgresCouponRepo {
	return &PostgresCouponRepo{db: db, log: newQueryLogger(logger)}
}

// FindByExternalUserID は外部ユーザーIDでクーポンを取得する。見つからない場合はnilを返す。
func (r *PostgresCouponRepo) FindByExternalUserID(ctx context.Context, externalUserID string) (c *model.Coupon, err error) {
	defer r.log.observe(ctx, "coupons.find_by_external_user_id", time.Now(), &err)

	c, err = scanCoupon(r.db.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE wecom_external_user_id = $1`,
		externalUserID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find coupon by external user id: %w", err)
	}
	return c, nil
}

// FindByCode はクーポンコードでクーポンを取得する。見つからない場合はnilを返す。
func (r *PostgresCouponRepo) FindByCode(ctx context.Context, code string) (c *model.Coupon, err error) {
	defer r.log.observe(ctx, "coupons.find_by_code", time.Now(), &err)

	c, err = scanCoupon(r.db.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`,
		code,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find coupon by code: %w", err)
	}
	return c, nil
}

// Create はクーポンを作成する。
// ユニーク制約違反は制約名に応じてErrDuplicateExternalUserまたはErrDuplicateCodeに変換する。
func (r *PostgresCouponRepo) Create(ctx context.Context, coupon *model.Coupon) (err error) {
	defer r.log.observe(ctx, "coupons.create", time.Now(), &err)

	var externalUserID sql.NullString
	if coupon.ExternalUserID != "" {
		externalUserID = sql.NullString{String: coupon.ExternalUserID, Valid: true}
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO coupons (
			id, code, discount_type, discount_value, amount_cny, max_uses, used_count,
			is_active, wecom_external_user_id, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING created_at`,
		coupon.ID, coupon.Code, coupon.DiscountType, coupon.DiscountValue, coupon.AmountCNY,
		coupon.MaxUses, coupon.UsedCount, coupon.IsActive, externalUserID, coupon.Description,
	).Scan(&coupon.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case constraintCouponExternalUser:
				return ErrDuplicateExternalUser
			case constraintCouponCode:
				return ErrDuplicateCode
			}
		}
		return fmt.Errorf("failed to insert coupon: %w", err)
	}

	return nil
}

// scanCoupon は1行をCouponに変換する。行が無い場合はnil, nilを返す。
func scanCoupon(row *sql.Row) (*model.Coupon, error) {
	c := &model.Coupon{}
	var externalUserID, description sql.NullString
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.AmountCNY, &c.MaxUses, &c.UsedCount,
		&c.IsActive, &externalUserID, &description, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ExternalUserID = externalUserID.String
	c.Description = description.String
	return c, nil
}
