package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, email, balance, bonus_balance, max_api_keys,
	wecom_nickname, wecom_avatar, wecom_bound_at, wecom_external_user_id, created_at`

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
// usersテーブルのうち企業微信の紐付け列のみ更新する。
type PostgresAccountRepo struct {
	db  *sql.DB
	log queryLogger
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB, logger *slog.Logger) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db, log: newQueryLogger(logger)}
}

// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (a *model.Account, err error) {
	defer r.log.observe(ctx, "users.find_by_email", time.Now(), &err)

	a, err = scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return a, nil
}

// FindByExternalUserID は紐付け済みの外部ユーザーIDでアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByExternalUserID(ctx context.Context, externalUserID string) (a *model.Account, err error) {
	defer r.log.observe(ctx, "users.find_by_external_user_id", time.Now(), &err)

	a, err = scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE wecom_external_user_id = $1`,
		externalUserID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find account by external user id: %w", err)
	}
	return a, nil
}

// BindExternalUser は条件付きUPDATEで外部ユーザーIDを紐付ける。
// 同じIDの再紐付けではwecom_bound_atを維持する。
func (r *PostgresAccountRepo) BindExternalUser(ctx context.Context, accountID, externalUserID string, boundAt time.Time) (err error) {
	defer r.log.observe(ctx, "users.bind_external_user", time.Now(), &err)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET wecom_external_user_id = $2,
		     wecom_bound_at = COALESCE(wecom_bound_at, $3)
		 WHERE id = $1
		   AND (wecom_external_user_id IS NULL OR wecom_external_user_id = $2)`,
		accountID, externalUserID, boundAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == constraintAccountExternalUser {
			return ErrBindingConflict
		}
		return fmt.Errorf("failed to bind external user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrBindingConflict
	}

	return nil
}

// scanAccount は1行をAccountに変換する。行が無い場合はnil, nilを返す。
// usersはプラットフォーム側のテーブルのため、数値列もNULLを許容して読む。
func scanAccount(row *sql.Row) (*model.Account, error) {
	a := &model.Account{}
	var (
		balance, bonus                   decimal.NullDecimal
		maxAPIKeys                       sql.NullInt64
		nickname, avatar, externalUserID sql.NullString
		boundAt                          sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &balance, &bonus, &maxAPIKeys,
		&nickname, &avatar, &boundAt, &externalUserID, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.Balance = balance.Decimal
	a.BonusBalance = bonus.Decimal
	a.MaxAPIKeys = int(maxAPIKeys.Int64)
	a.WecomNickname = nickname.String
	a.WecomAvatar = avatar.String
	a.ExternalUserID = externalUserID.String
	if boundAt.Valid {
		t := boundAt.Time
		a.WecomBoundAt = &t
	}
	return a, nil
}
