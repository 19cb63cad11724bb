package handler

import (
	"context"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/account"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/coupon"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/weiban"
)

// IdentityResolver はサイドバーのcodeを企業微信の利用者情報に解決する。
type IdentityResolver interface {
	ResolveExternalIdentity(ctx context.Context, code string) (*weiban.Identity, error)
}

// CouponServiceInterface はクーポンハンドラーが必要とするサービスインターフェース。
type CouponServiceInterface interface {
	// IssueOrGet は外部ユーザーのクーポンを発行する。発行済みなら既存のクーポンを返す。
	IssueOrGet(ctx context.Context, externalUserID string) (*coupon.IssueResult, error)
	// FindByExternalUser は発行済みクーポンを返す。無い場合はnil, nil。
	FindByExternalUser(ctx context.Context, externalUserID string) (*model.Coupon, error)
}

// AccountServiceInterface はアカウント紐付けのサービスインターフェース。
type AccountServiceInterface interface {
	Bind(ctx context.Context, externalUserID, email string) (*model.Account, error)
}

// SnapshotBuilder はuser_infoの元になるアカウント情報を組み立てる。
type SnapshotBuilder interface {
	Build(ctx context.Context, couponCode, externalUserID string) (*account.Snapshot, error)
}

// Pinger はストレージの疎通確認を行う。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// --- compile-time interface checks ---

var _ IdentityResolver = (*weiban.Resolver)(nil)
var _ CouponServiceInterface = (*coupon.Service)(nil)
var _ AccountServiceInterface = (*account.Service)(nil)
var _ SnapshotBuilder = (*account.SnapshotBuilder)(nil)
