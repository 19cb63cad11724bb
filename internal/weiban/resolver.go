package weiban

import (
	"context"
	"errors"
	"log/slog"
)

// Identity は上流から解決した企業微信の利用者情報を表す。
type Identity struct {
	ExternalUserID string
	StaffID        string
	GroupChatID    string
}

// TokenSource は有効なaccess_tokenを提供する。
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
	Invalidate()
}

// AuthInfoFetcher はcodeを認証情報に交換する。
type AuthInfoFetcher interface {
	GetAuthInfo(ctx context.Context, accessToken, code string) (*AuthInfo, error)
}

// Resolver はサイドバーのcodeを外部ユーザーIDに解決する。
type Resolver struct {
	tokens TokenSource
	client AuthInfoFetcher
	logger *slog.Logger
}

// NewResolver はResolverを生成する。
func NewResolver(tokens TokenSource, client AuthInfoFetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tokens: tokens, client: client, logger: logger}
}

// ResolveExternalIdentity はcodeを上流に渡して利用者情報を取得する。
// codeの一回性は上流が保証するため、ここでは検査しない。
// 上流がtokenを拒否した場合はキャッシュを破棄してからエラーを返す。再試行はしない。
func (r *Resolver) ResolveExternalIdentity(ctx context.Context, code string) (*Identity, error) {
	token, err := r.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	info, err := r.client.GetAuthInfo(ctx, token, code)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) && upErr.TokenInvalid() {
			r.tokens.Invalidate()
		}
		return nil, err
	}

	r.logger.Debug("resolved weiban identity",
		slog.String("external_user_id", info.ExternalUserID),
		slog.String("staff_id", info.StaffID),
	)

	return &Identity{
		ExternalUserID: info.ExternalUserID,
		StaffID:        info.StaffID,
		GroupChatID:    info.GroupChatID,
	}, nil
}
