package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// TestWriteErrorResponse_WritesErrcodeFormat はerrcode形式でレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesErrcodeFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewNoExternalUserError("invalid code"))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if body.Errcode != model.ErrcodeNoExternalUser {
		t.Errorf("errcode = %d, want %d", body.Errcode, model.ErrcodeNoExternalUser)
	}
	if body.Errmsg != "无法获取企业微信用户ID" {
		t.Errorf("errmsg = %q", body.Errmsg)
	}
	if body.Error != "invalid code" {
		t.Errorf("error = %q, want %q", body.Error, "invalid code")
	}
}

// TestWriteErrorResponse_OmitsEmptyError はDetailが空の場合errorフィールドを出力しないことを検証する。
func TestWriteErrorResponse_OmitsEmptyError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingParamError("code"))

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if raw["errcode"] != float64(model.ErrcodeMissingParam) {
		t.Errorf("errcode = %v, want %d", raw["errcode"], model.ErrcodeMissingParam)
	}
	if raw["errmsg"] != "缺少code参数" {
		t.Errorf("errmsg = %v, want %q", raw["errmsg"], "缺少code参数")
	}
	if _, ok := raw["error"]; ok {
		t.Errorf("error field should be omitted, got %v", raw["error"])
	}
}

// TestWriteInternalServerError_IncludesCause は内部エラーがerrcode -1とエラー文言で返ることを検証する。
func TestWriteInternalServerError_IncludesCause(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w, "创建失败", errors.New("connection refused"))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if body.Errcode != model.ErrcodeInternal {
		t.Errorf("errcode = %d, want %d", body.Errcode, model.ErrcodeInternal)
	}
	if body.Errmsg != "创建失败" {
		t.Errorf("errmsg = %q, want %q", body.Errmsg, "创建失败")
	}
	if body.Error != "connection refused" {
		t.Errorf("error = %q, want %q", body.Error, "connection refused")
	}
}
