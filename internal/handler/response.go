package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/account"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/middleware"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/weiban"
)

// maxRequestBodyBytes はPOSTボディの上限。
const maxRequestBodyBytes = 64 << 10

// envelope は全APIレスポンスの外枠。
type envelope struct {
	Errcode int    `json:"errcode"`
	Errmsg  string `json:"errmsg"`
	Data    any    `json:"data,omitempty"`
}

// usageResponse はモデル別利用集計のレスポンス型。
type usageResponse struct {
	ModelName   string `json:"model_name"`
	CallCount   int    `json:"call_count"`
	AvgPrice    string `json:"avg_price"`
	TotalAmount string `json:"total_amount"`
}

// userInfoResponse はサイドバーに表示するアカウント情報のレスポンス型。
// 金額はすべて小数点以下2桁の文字列。
type userInfoResponse struct {
	UserID       string          `json:"user_id"`
	Email        string          `json:"email"`
	Balance      string          `json:"balance"`
	BonusBalance string          `json:"bonus_balance"`
	MaxAPIKeys   int             `json:"max_api_keys"`
	BoundAt      *time.Time      `json:"wecom_bound_at,omitempty"`
	Usage24h     []usageResponse `json:"usage_24h"`
	TotalSpent   string          `json:"total_spent"`
}

// toUserInfoResponse はSnapshotをレスポンス型に変換する。nilはnilのまま返す。
func toUserInfoResponse(s *account.Snapshot) *userInfoResponse {
	if s == nil || s.Account == nil {
		return nil
	}

	usage := make([]usageResponse, len(s.Usage))
	for i, u := range s.Usage {
		usage[i] = usageResponse{
			ModelName:   u.ModelName,
			CallCount:   u.CallCount,
			AvgPrice:    u.AvgPrice.StringFixed(2),
			TotalAmount: u.TotalAmount.StringFixed(2),
		}
	}

	return &userInfoResponse{
		UserID:       s.Account.ID,
		Email:        s.Account.Email,
		Balance:      s.Account.Balance.StringFixed(2),
		BonusBalance: s.Account.BonusBalance.StringFixed(2),
		MaxAPIKeys:   s.Account.MaxAPIKeys,
		BoundAt:      s.Account.WecomBoundAt,
		Usage24h:     usage,
		TotalSpent:   s.TotalSpent.StringFixed(2),
	}
}

// writeOK はerrcode 0のレスポンスを書き込む。
func writeOK(w http.ResponseWriter, data any) {
	middleware.WriteJSON(w, http.StatusOK, envelope{
		Errcode: model.ErrcodeOK,
		Errmsg:  "ok",
		Data:    data,
	})
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 空ボディは空オブジェクトとして扱い、必須項目の検査は呼び出し側で行う。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// mapErrcodeToHTTPStatus はerrcodeからHTTPステータスコードにマッピングする。
// 業務上想定される結果（発行済み・未登録・紐付け衝突）は200で返す。
func mapErrcodeToHTTPStatus(errcode int) int {
	switch errcode {
	case model.ErrcodeMissingParam, model.ErrcodeNoExternalUser:
		return http.StatusBadRequest
	case model.ErrcodeCouponExists, model.ErrcodeAccountNotFound, model.ErrcodeBindingConflict:
		return http.StatusOK
	case model.ErrcodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError は*model.APIErrorを対応するHTTPステータスで書き込む。
func writeAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, mapErrcodeToHTTPStatus(apiErr.Errcode), apiErr)
}

// handleServiceError はサービス層から返されたエラーをレスポンスに変換する。
// *model.APIError以外はerrcode -1の500として扱い、errmsgにはfailMsgを使う。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, failMsg string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIError(w, apiErr)
		return
	}

	logger.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w, failMsg, err)
}

// resolveExternalUser はcodeから外部ユーザーIDを解決する。
// 失敗時はレスポンスを書き込み、falseを返す。
//
// 上流が正常に応答した上でcodeを拒否した場合（期限切れ・使用済み）は400/40002、
// それ以外の上流障害は500/-1とする。
func resolveExternalUser(w http.ResponseWriter, r *http.Request, resolver IdentityResolver, logger *slog.Logger, failMsg, code string) (string, bool) {
	identity, err := resolver.ResolveExternalIdentity(r.Context(), code)
	if err != nil {
		var upErr *weiban.UpstreamError
		if errors.As(err, &upErr) && upErr.Op == weiban.OpAuthInfo && upErr.Rejected() {
			logger.Warn("weiban rejected code",
				slog.Int("upstream_errcode", upErr.Errcode),
				slog.String("upstream_message", upErr.Message),
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			)
			writeAPIError(w, model.NewNoExternalUserError(upErr.Message))
			return "", false
		}
		handleServiceError(w, r, logger, failMsg, err)
		return "", false
	}

	if identity == nil || identity.ExternalUserID == "" {
		writeAPIError(w, model.NewNoExternalUserError(""))
		return "", false
	}
	return identity.ExternalUserID, true
}
