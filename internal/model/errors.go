package model

import "fmt"

// APIError はレスポンスボディのerrcodeに対応するエラーを表す。
// Detailは内部向けの補足で、レスポンスのerrorフィールドに載せる。
type APIError struct {
	Errcode int
	Message string
	Detail  string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Errcode, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%d] %s", e.Errcode, e.Message)
}

// 定義済みerrcode
const (
	ErrcodeOK              = 0
	ErrcodeInternal        = -1
	ErrcodeMissingParam    = 40001
	ErrcodeNoExternalUser  = 40002
	ErrcodeCouponExists    = 40003
	ErrcodeAccountNotFound = 40004
	ErrcodeBindingConflict = 40005
	ErrcodeRateLimited     = 42900
)

// NewMissingParamError は必須パラメータ欠落エラーを生成する。
func NewMissingParamError(params string) *APIError {
	return &APIError{
		Errcode: ErrcodeMissingParam,
		Message: fmt.Sprintf("缺少%s参数", params),
	}
}

// NewNoExternalUserError は外部ユーザーIDを解決できなかった場合のエラーを生成する。
// detailには上流から返されたメッセージを渡す。
func NewNoExternalUserError(detail string) *APIError {
	return &APIError{
		Errcode: ErrcodeNoExternalUser,
		Message: "无法获取企业微信用户ID",
		Detail:  detail,
	}
}

// NewAccountNotFoundError はメールアドレスに対応するアカウントが無い場合のエラーを生成する。
func NewAccountNotFoundError(email string) *APIError {
	return &APIError{
		Errcode: ErrcodeAccountNotFound,
		Message: "未找到该邮箱对应的账户",
		Detail:  email,
	}
}

// NewBindingConflictError は別の企業微信ユーザーと紐付け済みの場合のエラーを生成する。
func NewBindingConflictError() *APIError {
	return &APIError{
		Errcode: ErrcodeBindingConflict,
		Message: "该账户已绑定其他企业微信用户",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Errcode: ErrcodeRateLimited,
		Message: "请求过于频繁，请稍后再试",
	}
}
