package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// PostgresUsageRepo はtransactionsテーブルを参照する利用台帳リポジトリ。
type PostgresUsageRepo struct {
	db  *sql.DB
	log queryLogger
}

// NewPostgresUsageRepo はPostgresUsageRepoを生成する。
func NewPostgresUsageRepo(db *sql.DB, logger *slog.Logger) *PostgresUsageRepo {
	return &PostgresUsageRepo{db: db, log: newQueryLogger(logger)}
}

// ListConsumptionSince はsince以降の完了済み消費記録を作成日時の昇順で返す。
func (r *PostgresUsageRepo) ListConsumptionSince(ctx context.Context, userID string, since time.Time) (records []model.UsageRecord, err error) {
	defer r.log.observe(ctx, "transactions.list_consumption_since", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, model_name, amount, type, transaction_status, created_at
		 FROM transactions
		 WHERE user_id = $1
		   AND created_at >= $2
		   AND transaction_status = $3
		   AND type = $4
		   AND amount > 0
		 ORDER BY created_at ASC`,
		userID, since.UTC(), model.TransactionStatusComplete, model.TransactionTypeConsume,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.UsageRecord
		var modelName sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &modelName, &rec.Amount, &rec.Type, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.ModelName = modelName.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}

	return records, nil
}
