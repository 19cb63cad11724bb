package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/middleware"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// healthPingTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthPingTimeout = 3 * time.Second

// HealthConfig はヘルスチェックで返す公開可能な設定値。
type HealthConfig struct {
	CorpID       string
	CouponAmount decimal.Decimal
}

type healthConfigResponse struct {
	CorpID       string `json:"corp_id"`
	CouponAmount string `json:"coupon_amount"`
}

type healthResponse struct {
	Errcode int                  `json:"errcode"`
	Errmsg  string               `json:"errmsg"`
	Status  string               `json:"status"`
	Config  healthConfigResponse `json:"config"`
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db     Pinger
	config HealthConfig
	logger *slog.Logger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db Pinger, config HealthConfig, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{db: db, config: config, logger: logger}
}

// Health はDBの疎通を確認し、公開設定とともに状態を返す。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, "服务异常", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, healthResponse{
		Errcode: model.ErrcodeOK,
		Errmsg:  "ok",
		Status:  "healthy",
		Config: healthConfigResponse{
			CorpID:       h.config.CorpID,
			CouponAmount: h.config.CouponAmount.String(),
		},
	})
}
