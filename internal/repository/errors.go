package repository

import (
	"errors"

	"github.com/lib/pq"
)

// 制約名はマイグレーションで明示的に命名している。
const (
	constraintCouponExternalUser  = "coupons_wecom_external_user_id_key"
	constraintCouponCode          = "coupons_code_key"
	constraintAccountExternalUser = "users_wecom_external_user_id_key"
)

// uniqueViolation はerrがユニーク制約違反の場合に制約名を返す。
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return pqErr.Constraint, true
	}
	return "", false
}
