package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/account"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/middleware"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// codeRequest はサイドバーから送られるcodeのみのリクエストボディ。
type codeRequest struct {
	Code string `json:"code"`
}

// createdCouponResponse は新規発行時のdata。
type createdCouponResponse struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	Amount        string            `json:"amount"`
	CreatedAt     time.Time         `json:"created_at"`
	Description   string            `json:"description"`
	AlreadyExists bool              `json:"already_exists"`
	UserInfo      *userInfoResponse `json:"user_info"`
}

// existingCouponResponse は発行済みの場合のdata。
type existingCouponResponse struct {
	Code          string            `json:"code"`
	CreatedAt     time.Time         `json:"created_at"`
	AlreadyExists bool              `json:"already_exists"`
	UserInfo      *userInfoResponse `json:"user_info"`
}

// userInfoLookupResponse はget-user-infoのdata。
type userInfoLookupResponse struct {
	HasCoupon bool              `json:"has_coupon"`
	Code      string            `json:"code,omitempty"`
	UserInfo  *userInfoResponse `json:"user_info"`
}

// CouponHandler はクーポン発行とuser_info取得のHTTPハンドラー。
type CouponHandler struct {
	resolver  IdentityResolver
	coupons   CouponServiceInterface
	snapshots SnapshotBuilder
	logger    *slog.Logger
}

// NewCouponHandler はCouponHandlerを生成する。
func NewCouponHandler(resolver IdentityResolver, coupons CouponServiceInterface, snapshots SnapshotBuilder, logger *slog.Logger) *CouponHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouponHandler{
		resolver:  resolver,
		coupons:   coupons,
		snapshots: snapshots,
		logger:    logger,
	}
}

// CreateCoupon はサイドバーのcodeから外部ユーザーを解決し、クーポンを発行する。
// POST /api/create-coupon
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	const failMsg = "创建失败"

	var req codeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIError(w, &model.APIError{Errcode: model.ErrcodeMissingParam, Message: "缺少code参数", Detail: err.Error()})
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeAPIError(w, model.NewMissingParamError("code"))
		return
	}

	externalUserID, ok := resolveExternalUser(w, r, h.resolver, h.logger, failMsg, code)
	if !ok {
		return
	}

	result, err := h.coupons.IssueOrGet(r.Context(), externalUserID)
	if err != nil {
		handleServiceError(w, r, h.logger, failMsg, err)
		return
	}

	userInfo := buildUserInfo(r.Context(), h.snapshots, h.logger, externalUserID)
	c := result.Coupon

	if result.AlreadyExisted {
		middleware.WriteJSON(w, http.StatusOK, envelope{
			Errcode: model.ErrcodeCouponExists,
			Errmsg:  "您已经生成过兑换码了",
			Data: existingCouponResponse{
				Code:          c.Code,
				CreatedAt:     c.CreatedAt,
				AlreadyExists: true,
				UserInfo:      userInfo,
			},
		})
		return
	}

	writeOK(w, createdCouponResponse{
		ID:            c.ID,
		Code:          c.Code,
		Amount:        c.AmountCNY.StringFixed(2),
		CreatedAt:     c.CreatedAt,
		Description:   c.Description,
		AlreadyExists: false,
		UserInfo:      userInfo,
	})
}

// GetUserInfo は外部ユーザーのクーポン有無とアカウント情報を返す。
// POST /api/get-user-info
func (h *CouponHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	const failMsg = "获取用户信息失败"

	var req codeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIError(w, &model.APIError{Errcode: model.ErrcodeMissingParam, Message: "缺少code参数", Detail: err.Error()})
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeAPIError(w, model.NewMissingParamError("code"))
		return
	}

	externalUserID, ok := resolveExternalUser(w, r, h.resolver, h.logger, failMsg, code)
	if !ok {
		return
	}

	var (
		c    *model.Coupon
		snap *account.Snapshot
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		c, err = h.coupons.FindByExternalUser(gctx, externalUserID)
		return err
	})
	g.Go(func() error {
		var err error
		snap, err = h.snapshots.Build(gctx, "", externalUserID)
		return err
	})
	if err := g.Wait(); err != nil {
		handleServiceError(w, r, h.logger, failMsg, err)
		return
	}

	resp := userInfoLookupResponse{
		HasCoupon: c != nil,
		UserInfo:  toUserInfoResponse(snap),
	}
	if c != nil {
		resp.Code = c.Code
	}
	writeOK(w, resp)
}

// buildUserInfo は発行・紐付けの結果に添えるuser_infoを組み立てる。
// 主処理は完了しているため、失敗してもログに残してnilを返す。
func buildUserInfo(ctx context.Context, snapshots SnapshotBuilder, logger *slog.Logger, externalUserID string) *userInfoResponse {
	snap, err := snapshots.Build(ctx, "", externalUserID)
	if err != nil {
		logger.Warn("failed to build user info",
			slog.String("external_user_id", externalUserID),
			slog.String("request_id", middleware.RequestIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return toUserInfoResponse(snap)
}
