// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// ユニーク制約違反を呼び出し元が区別するためのエラー。
var (
	// ErrDuplicateExternalUser は同じ外部ユーザーIDのクーポンが既に存在することを表す。
	ErrDuplicateExternalUser = errors.New("coupon already issued for external user")
	// ErrDuplicateCode は生成したクーポンコードが既存のものと衝突したことを表す。
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrBindingConflict はアカウントまたは外部ユーザーIDが既に別の相手と紐付いていることを表す。
	ErrBindingConflict = errors.New("external user binding conflict")
)

// CouponRepository はクーポンの永続化インターフェース。
type CouponRepository interface {
	// FindByExternalUserID は外部ユーザーIDでクーポンを取得する。見つからない場合はnilを返す。
	FindByExternalUserID(ctx context.Context, externalUserID string) (*model.Coupon, error)

	// FindByCode はクーポンコードでクーポンを取得する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)

	// Create はクーポンを作成し、DBが採番したcreated_atをcouponに反映する。
	// 外部ユーザーIDの重複はErrDuplicateExternalUser、コードの重複はErrDuplicateCodeを返す。
	Create(ctx context.Context, coupon *model.Coupon) error
}

// AccountRepository はプラットフォームアカウントの参照と紐付け更新のインターフェース。
type AccountRepository interface {
	// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByExternalUserID は紐付け済みの外部ユーザーIDでアカウントを取得する。見つからない場合はnilを返す。
	FindByExternalUserID(ctx context.Context, externalUserID string) (*model.Account, error)

	// BindExternalUser はアカウントに外部ユーザーIDを紐付ける。
	// 未紐付けか同じIDが紐付いている場合のみ更新する。
	// 更新できなかった場合や外部ユーザーIDが他のアカウントに紐付いている場合はErrBindingConflictを返す。
	BindExternalUser(ctx context.Context, accountID, externalUserID string, boundAt time.Time) error
}

// UsageRepository は利用台帳（transactions）の参照インターフェース。
type UsageRepository interface {
	// ListConsumptionSince はsince以降の完了済み消費記録（amount > 0）を返す。
	ListConsumptionSince(ctx context.Context, userID string, since time.Time) ([]model.UsageRecord, error)
}
