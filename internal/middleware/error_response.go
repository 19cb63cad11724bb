package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// サイドバーのフロントエンドはerrcodeで分岐し、errmsgをそのまま表示する。
type ErrorResponseBody struct {
	Errcode int    `json:"errcode"`
	Errmsg  string `json:"errmsg"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON はvをJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, ErrorResponseBody{
		Errcode: apiErr.Errcode,
		Errmsg:  apiErr.Message,
		Error:   apiErr.Detail,
	})
}

// WriteInternalServerError はerrcode -1の500レスポンスを書き込む。
// errのメッセージはerrorフィールドに載る。
func WriteInternalServerError(w http.ResponseWriter, errmsg string, err error) {
	body := ErrorResponseBody{
		Errcode: model.ErrcodeInternal,
		Errmsg:  errmsg,
	}
	if err != nil {
		body.Error = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, body)
}
