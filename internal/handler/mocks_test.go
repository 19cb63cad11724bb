package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/account"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/coupon"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/weiban"
)

// --- モック定義 ---

// mockResolver はIdentityResolverのモック実装。
type mockResolver struct {
	resolveFn func(ctx context.Context, code string) (*weiban.Identity, error)
	calls     int
}

func (m *mockResolver) ResolveExternalIdentity(ctx context.Context, code string) (*weiban.Identity, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, code)
	}
	return &weiban.Identity{ExternalUserID: "wm-ext-1", StaffID: "staff-1"}, nil
}

// mockCouponService はCouponServiceInterfaceのモック実装。
type mockCouponService struct {
	issueOrGetFn         func(ctx context.Context, externalUserID string) (*coupon.IssueResult, error)
	findByExternalUserFn func(ctx context.Context, externalUserID string) (*model.Coupon, error)
}

func (m *mockCouponService) IssueOrGet(ctx context.Context, externalUserID string) (*coupon.IssueResult, error) {
	if m.issueOrGetFn != nil {
		return m.issueOrGetFn(ctx, externalUserID)
	}
	return nil, nil
}

func (m *mockCouponService) FindByExternalUser(ctx context.Context, externalUserID string) (*model.Coupon, error) {
	if m.findByExternalUserFn != nil {
		return m.findByExternalUserFn(ctx, externalUserID)
	}
	return nil, nil
}

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	bindFn func(ctx context.Context, externalUserID, email string) (*model.Account, error)
}

func (m *mockAccountService) Bind(ctx context.Context, externalUserID, email string) (*model.Account, error) {
	if m.bindFn != nil {
		return m.bindFn(ctx, externalUserID, email)
	}
	return nil, nil
}

// mockSnapshotBuilder はSnapshotBuilderのモック実装。
type mockSnapshotBuilder struct {
	buildFn func(ctx context.Context, couponCode, externalUserID string) (*account.Snapshot, error)
}

func (m *mockSnapshotBuilder) Build(ctx context.Context, couponCode, externalUserID string) (*account.Snapshot, error) {
	if m.buildFn != nil {
		return m.buildFn(ctx, couponCode, externalUserID)
	}
	return nil, nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

var testCreatedAt = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testCoupon() *model.Coupon {
	return &model.Coupon{
		ID:             "coupon_1740821400000_abcdefghijklm",
		Code:           "NEW-ABCDEFGH2345",
		DiscountType:   model.DiscountTypeCredits,
		AmountCNY:      decimal.RequireFromString("10"),
		MaxUses:        model.DefaultMaxUses,
		IsActive:       true,
		ExternalUserID: "wm-ext-1",
		Description:    "新用户添加企业微信奖励",
		CreatedAt:      testCreatedAt,
	}
}

func testSnapshot() *account.Snapshot {
	return &account.Snapshot{
		Account: &model.Account{
			ID:             "user-1",
			Email:          "alice@example.com",
			Balance:        decimal.RequireFromString("12.5"),
			BonusBalance:   decimal.RequireFromString("3"),
			MaxAPIKeys:     5,
			ExternalUserID: "wm-ext-1",
		},
		Usage: []account.ModelUsage{
			{
				ModelName:   "gpt-x",
				CallCount:   3,
				AvgPrice:    decimal.RequireFromString("2"),
				TotalAmount: decimal.RequireFromString("6"),
			},
		},
		TotalSpent: decimal.RequireFromString("6"),
	}
}

// postJSON はhandlerFuncにJSONボディのPOSTリクエストを送るヘルパー。
func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// decodeBody はレスポンスボディをmapにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// assertErrcode はHTTPステータスとerrcodeを検証するヘルパー。
func assertErrcode(t *testing.T, w *httptest.ResponseRecorder, wantStatus, wantErrcode int) map[string]any {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d\nbody: %s", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody(t, w)
	if got := body["errcode"]; got != float64(wantErrcode) {
		t.Errorf("errcode = %v, want %d", got, wantErrcode)
	}
	return body
}

// dataOf はレスポンスのdataを取り出すヘルパー。
func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data is missing or not an object: %v", body["data"])
	}
	return data
}
