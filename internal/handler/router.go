package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	HSTS              bool
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.HTTPStatusRecorder

	// 企業微信
	Resolver IdentityResolver

	// クーポン・アカウント
	CouponService  CouponServiceInterface
	AccountService AccountServiceInterface
	Snapshots      SnapshotBuilder

	// ヘルスチェック
	DB     Pinger
	Health HealthConfig

	// サイドバーH5ページの配置ディレクトリ。空なら配信しない。
	StaticDir string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// POSTのAPIにはさらにクライアントIPごとのレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	couponHandler := NewCouponHandler(deps.Resolver, deps.CouponService, deps.Snapshots, logger)
	accountHandler := NewAccountHandler(deps.Resolver, deps.AccountService, deps.Snapshots, logger)
	healthHandler := NewHealthHandler(deps.DB, deps.Health, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}
			r.Post("/create-coupon", couponHandler.CreateCoupon)
			r.Post("/get-user-info", couponHandler.GetUserInfo)
			r.Post("/bind-user", accountHandler.BindUser)
		})
	})

	if deps.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
