package weiban

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// RefreshMargin は有効期限までの残り時間がこれ未満になったtokenを再取得する。
const RefreshMargin = 300 * time.Second

// TokenFetcher はaccess_tokenを上流から取得する。
type TokenFetcher interface {
	FetchAccessToken(ctx context.Context) (*AccessToken, error)
}

// TokenCache はaccess_tokenをプロセス内でキャッシュする。
// サービスインスタンスが所有し、Resolverへ参照で渡す。
type TokenCache struct {
	fetcher  TokenFetcher
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewTokenCache はTokenCacheを生成する。
func NewTokenCache(fetcher TokenFetcher, logger *slog.Logger, recorder Recorder) *TokenCache {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &TokenCache{
		fetcher:  fetcher,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// GetValidToken は有効期限まで5分以上残っているキャッシュ済みtokenを返す。
// 該当しない場合は再取得してキャッシュを置き換える。
// 同時に発生した再取得は1回の上流呼び出しにまとめる。
func (c *TokenCache) GetValidToken(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	// 呼び出し元の1つがキャンセルされても相乗りした他の呼び出しを失敗させない
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("access_token", func() (any, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.refresh(fetchCtx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate はキャッシュを破棄する。上流がtokenを拒否した場合に呼ぶ。
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()

	c.logger.Info("weiban access token invalidated")
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" || c.expiresAt.Sub(c.now()) < RefreshMargin {
		return "", false
	}
	return c.token, true
}

// refresh は上流からtokenを取得する。失敗時はキャッシュを変更しない。
func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	issuedAt := c.now()

	at, err := c.fetcher.FetchAccessToken(ctx)
	if err != nil {
		c.recorder.RecordTokenRefresh(false)
		c.logger.Error("failed to refresh weiban access token", slog.String("error", err.Error()))
		return "", err
	}

	expiresAt := issuedAt.Add(at.ExpiresIn)

	c.mu.Lock()
	c.token = at.Token
	c.expiresAt = expiresAt
	c.mu.Unlock()

	c.recorder.RecordTokenRefresh(true)
	c.logger.Info("weiban access token refreshed", slog.Time("expires_at", expiresAt))

	return at.Token, nil
}
