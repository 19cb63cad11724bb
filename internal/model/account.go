package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account はプラットフォーム側のユーザーアカウントを表す。
// usersテーブルはプラットフォームが所有し、本サービスは企業微信の紐付け列のみ更新する。
type Account struct {
	ID             string
	Email          string
	Balance        decimal.Decimal
	BonusBalance   decimal.Decimal
	MaxAPIKeys     int
	WecomNickname  string
	WecomAvatar    string
	WecomBoundAt   *time.Time
	ExternalUserID string
	CreatedAt      time.Time
}

// 利用記録の種別とステータス
const (
	TransactionTypeConsume    = "consume"
	TransactionStatusComplete = "completed"
)

// UsageRecord はtransactionsテーブルの1行を表す。読み取り専用。
type UsageRecord struct {
	ID        string
	UserID    string
	ModelName string
	Amount    decimal.Decimal
	Type      string
	Status    string
	CreatedAt time.Time
}
