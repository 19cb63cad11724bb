package account

import (
	"context"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
)

// --- モック ---

type mockAccountRepo struct {
	findByEmailFn          func(ctx context.Context, email string) (*model.Account, error)
	findByExternalUserIDFn func(ctx context.Context, externalUserID string) (*model.Account, error)
	bindExternalUserFn     func(ctx context.Context, accountID, externalUserID string, boundAt time.Time) error
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByExternalUserID(ctx context.Context, externalUserID string) (*model.Account, error) {
	if m.findByExternalUserIDFn != nil {
		return m.findByExternalUserIDFn(ctx, externalUserID)
	}
	return nil, nil
}

func (m *mockAccountRepo) BindExternalUser(ctx context.Context, accountID, externalUserID string, boundAt time.Time) error {
	if m.bindExternalUserFn != nil {
		return m.bindExternalUserFn(ctx, accountID, externalUserID, boundAt)
	}
	return nil
}

type mockCouponRepo struct {
	findByCodeFn func(ctx context.Context, code string) (*model.Coupon, error)
}

func (m *mockCouponRepo) FindByExternalUserID(ctx context.Context, externalUserID string) (*model.Coupon, error) {
	return nil, nil
}

func (m *mockCouponRepo) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	if m.findByCodeFn != nil {
		return m.findByCodeFn(ctx, code)
	}
	return nil, nil
}

func (m *mockCouponRepo) Create(ctx context.Context, coupon *model.Coupon) error {
	return nil
}

type mockUsageRepo struct {
	listFn func(ctx context.Context, userID string, since time.Time) ([]model.UsageRecord, error)
}

func (m *mockUsageRepo) ListConsumptionSince(ctx context.Context, userID string, since time.Time) ([]model.UsageRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, since)
	}
	return nil, nil
}

type mockBindRecorder struct {
	results []string
}

func (m *mockBindRecorder) RecordBind(result string) {
	m.results = append(m.results, result)
}
