// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 兑换码の既定値
const (
	DiscountTypeCredits = "credits"
	DefaultMaxUses      = 1
)

// Coupon は企業微信ユーザーに発行する兑换码を表す。
// ExternalUserIDが空でない場合、同じ値を持つCouponは1件しか存在しない。
type Coupon struct {
	ID             string
	Code           string
	DiscountType   string
	DiscountValue  decimal.Decimal
	AmountCNY      decimal.Decimal
	MaxUses        int
	UsedCount      int
	IsActive       bool
	ExternalUserID string
	Description    string
	CreatedAt      time.Time
}

// Bound はCouponが外部ユーザーに紐付いているかを返す。
func (c *Coupon) Bound() bool {
	return c.ExternalUserID != ""
}
