package account

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/repository"
	"github.com/shopspring/decimal"
)

// UsageWindow は利用集計の対象期間。
const UsageWindow = 24 * time.Hour

// unknownModel はmodel_nameが空の記録をまとめる名前。
const unknownModel = "unknown"

// ModelUsage はモデル別の利用集計を表す。
type ModelUsage struct {
	ModelName   string
	CallCount   int
	AvgPrice    decimal.Decimal
	TotalAmount decimal.Decimal
}

// Snapshot はサイドバーに表示するアカウント情報を表す。
type Snapshot struct {
	Account    *model.Account
	Usage      []ModelUsage
	TotalSpent decimal.Decimal
}

// SnapshotBuilder はアカウント情報と直近24時間の利用集計を組み立てる。
type SnapshotBuilder struct {
	coupons  repository.CouponRepository
	accounts repository.AccountRepository
	usage    repository.UsageRepository
	now      func() time.Time
}

// NewSnapshotBuilder はSnapshotBuilderを生成する。
func NewSnapshotBuilder(coupons repository.CouponRepository, accounts repository.AccountRepository, usage repository.UsageRepository) *SnapshotBuilder {
	return &SnapshotBuilder{
		coupons:  coupons,
		accounts: accounts,
		usage:    usage,
		now:      time.Now,
	}
}

// Build はcouponCodeまたはexternalUserIDからSnapshotを組み立てる。
// couponCodeが指定された場合はクーポンの紐付け先を使う。
// 紐付け先が無い場合や該当アカウントが無い場合はnil, nilを返す。
func (b *SnapshotBuilder) Build(ctx context.Context, couponCode, externalUserID string) (*Snapshot, error) {
	if couponCode != "" {
		c, err := b.coupons.FindByCode(ctx, couponCode)
		if err != nil {
			return nil, fmt.Errorf("failed to look up coupon: %w", err)
		}
		if c == nil || !c.Bound() {
			return nil, nil
		}
		externalUserID = c.ExternalUserID
	}
	if externalUserID == "" {
		return nil, nil
	}

	acct, err := b.accounts.FindByExternalUserID(ctx, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		return nil, nil
	}

	since := b.now().UTC().Add(-UsageWindow)
	records, err := b.usage.ListConsumptionSince(ctx, acct.ID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}

	usage, total := AggregateUsage(records)
	return &Snapshot{
		Account:    acct,
		Usage:      usage,
		TotalSpent: total,
	}, nil
}

// AggregateUsage はモデル名ごとに件数・平均・合計を集計する。
// 結果は合計の降順、同額の場合はモデル名の昇順に並ぶ。
func AggregateUsage(records []model.UsageRecord) ([]ModelUsage, decimal.Decimal) {
	byModel := make(map[string]*ModelUsage)
	total := decimal.Zero

	for _, r := range records {
		name := r.ModelName
		if name == "" {
			name = unknownModel
		}
		u, ok := byModel[name]
		if !ok {
			u = &ModelUsage{ModelName: name, TotalAmount: decimal.Zero}
			byModel[name] = u
		}
		u.CallCount++
		u.TotalAmount = u.TotalAmount.Add(r.Amount)
		total = total.Add(r.Amount)
	}

	usage := make([]ModelUsage, 0, len(byModel))
	for _, u := range byModel {
		u.AvgPrice = u.TotalAmount.Div(decimal.NewFromInt(int64(u.CallCount)))
		usage = append(usage, *u)
	}

	sort.Slice(usage, func(i, j int) bool {
		if c := usage[i].TotalAmount.Cmp(usage[j].TotalAmount); c != 0 {
			return c > 0
		}
		return usage[i].ModelName < usage[j].ModelName
	})

	return usage, total
}
