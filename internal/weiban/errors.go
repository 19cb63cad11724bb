package weiban

import (
	"fmt"
	"net/http"
)

// 上流API呼び出しの種別。
const (
	OpAccessToken = "access_token"
	OpAuthInfo    = "auth_info"
)

// 微伴は企業微信と同じerrcode体系を返す。
var (
	tokenInvalidCodes = map[int]bool{
		40001: true, // invalid credential
		40014: true, // invalid access_token
		42001: true, // access_token expired
	}
	temporaryCodes = map[int]bool{
		-1:    true, // system busy
		45009: true, // api freq out of limit
	}
)

// UpstreamError は微伴API呼び出しの失敗を表す。
// Errは通信エラー、HTTPStatusはHTTPレベルの失敗、Errcodeは業務レベルの失敗を表す。
type UpstreamError struct {
	Op         string
	HTTPStatus int
	Errcode    int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("weiban %s: %v", e.Op, e.Err)
	case e.HTTPStatus != 0 && e.HTTPStatus != http.StatusOK:
		return fmt.Sprintf("weiban %s: http status %d: %s", e.Op, e.HTTPStatus, e.Message)
	case e.Errcode != 0:
		return fmt.Sprintf("weiban %s: errcode %d: %s", e.Op, e.Errcode, e.Message)
	default:
		return fmt.Sprintf("weiban %s: %s", e.Op, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Temporary は時間をおいて再試行すれば成功し得る失敗かを返す。
func (e *UpstreamError) Temporary() bool {
	if e.Err != nil {
		return true
	}
	if e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= http.StatusInternalServerError {
		return true
	}
	return temporaryCodes[e.Errcode]
}

// TokenInvalid は上流がaccess_tokenを拒否したかを返す。
func (e *UpstreamError) TokenInvalid() bool {
	return tokenInvalidCodes[e.Errcode]
}

// Rejected は上流が正常に応答した上でリクエストを拒否したかを返す。
// 期限切れや使用済みのcodeが該当し、再試行しても結果は変わらない。
func (e *UpstreamError) Rejected() bool {
	return e.Err == nil && e.HTTPStatus == http.StatusOK && e.Errcode != 0 &&
		!e.TokenInvalid() && !e.Temporary()
}
