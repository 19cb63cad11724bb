package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// bindRequest はbind-userのリクエストボディ。
type bindRequest struct {
	Code  string `json:"code"`
	Email string `json:"email"`
}

// bindResponse はbind-userのdata。
type bindResponse struct {
	UserInfo *userInfoResponse `json:"user_info"`
}

// AccountHandler はアカウント紐付けのHTTPハンドラー。
type AccountHandler struct {
	resolver  IdentityResolver
	accounts  AccountServiceInterface
	snapshots SnapshotBuilder
	logger    *slog.Logger
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(resolver IdentityResolver, accounts AccountServiceInterface, snapshots SnapshotBuilder, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{
		resolver:  resolver,
		accounts:  accounts,
		snapshots: snapshots,
		logger:    logger,
	}
}

// BindUser はemailのアカウントにサイドバー利用者の外部ユーザーIDを紐付ける。
// POST /api/bind-user
func (h *AccountHandler) BindUser(w http.ResponseWriter, r *http.Request) {
	const failMsg = "绑定失败"

	var req bindRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIError(w, &model.APIError{Errcode: model.ErrcodeMissingParam, Message: "缺少code或email参数", Detail: err.Error()})
		return
	}
	code := strings.TrimSpace(req.Code)
	email := strings.TrimSpace(req.Email)
	if code == "" || email == "" {
		writeAPIError(w, model.NewMissingParamError("code或email"))
		return
	}

	externalUserID, ok := resolveExternalUser(w, r, h.resolver, h.logger, failMsg, code)
	if !ok {
		return
	}

	if _, err := h.accounts.Bind(r.Context(), externalUserID, email); err != nil {
		handleServiceError(w, r, h.logger, failMsg, err)
		return
	}

	writeOK(w, bindResponse{
		UserInfo: buildUserInfo(r.Context(), h.snapshots, h.logger, externalUserID),
	})
}
