package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/metrics"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/repository"
	"github.com/shopspring/decimal"
)

// maxCodeAttempts はコード衝突時に再生成する上限回数。
const maxCodeAttempts = 3

// 発行結果のメトリクスラベル
const (
	ResultCreated       = "created"
	ResultExisting      = "existing"
	ResultRaceRecovered = "race_recovered"
)

// Recorder は発行結果を記録する。
type Recorder interface {
	RecordCouponIssued(result string)
}

// ServiceConfig は発行するクーポンの固定値を表す。
type ServiceConfig struct {
	Amount      decimal.Decimal
	Description string
}

// IssueResult は発行処理の結果を表す。
// AlreadyExistedがtrueの場合、Couponは既存の行で、今回の呼び出しでは何も書き込んでいない。
type IssueResult struct {
	Coupon         *model.Coupon
	AlreadyExisted bool
}

// Service はクーポンの発行処理を提供する。
type Service struct {
	repo     repository.CouponRepository
	cfg      ServiceConfig
	logger   *slog.Logger
	recorder Recorder

	now     func() time.Time
	newCode func() string
	newID   func(time.Time) string
}

// NewService はServiceを生成する。
func NewService(repo repository.CouponRepository, cfg ServiceConfig, logger *slog.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
		newCode:  NewCouponCode,
		newID:    NewCouponID,
	}
}

// FindByExternalUser は外部ユーザーに発行済みのクーポンを返す。未発行の場合はnilを返す。
func (s *Service) FindByExternalUser(ctx context.Context, externalUserID string) (*model.Coupon, error) {
	return s.repo.FindByExternalUserID(ctx, externalUserID)
}

// IssueOrGet は外部ユーザーのクーポンを返し、未発行であれば新規に発行する。
//
// 既存確認と挿入の間に同じ外部ユーザーの発行が割り込んだ場合、
// 挿入はユニーク制約違反になるため、勝った側の行を読み直して既存扱いで返す。
func (s *Service) IssueOrGet(ctx context.Context, externalUserID string) (*IssueResult, error) {
	if externalUserID == "" {
		return nil, errors.New("external user id is required")
	}

	existing, err := s.repo.FindByExternalUserID(ctx, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}
	if existing != nil {
		s.recorder.RecordCouponIssued(ResultExisting)
		s.logger.Info("coupon already issued",
			slog.String("external_user_id", externalUserID),
			slog.String("code", existing.Code),
		)
		return &IssueResult{Coupon: existing, AlreadyExisted: true}, nil
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		c := s.newCoupon(externalUserID)

		err := s.repo.Create(ctx, c)
		switch {
		case err == nil:
			s.recorder.RecordCouponIssued(ResultCreated)
			s.logger.Info("coupon issued",
				slog.String("external_user_id", externalUserID),
				slog.String("coupon_id", c.ID),
				slog.String("code", c.Code),
			)
			return &IssueResult{Coupon: c, AlreadyExisted: false}, nil

		case errors.Is(err, repository.ErrDuplicateExternalUser):
			return s.recoverFromRace(ctx, externalUserID)

		case errors.Is(err, repository.ErrDuplicateCode):
			s.logger.Warn("coupon code collision, regenerating",
				slog.String("code", c.Code),
				slog.Int("attempt", attempt),
			)
			continue

		default:
			return nil, fmt.Errorf("failed to create coupon: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to generate a unique coupon code after %d attempts", maxCodeAttempts)
}

// recoverFromRace は並行リクエストが先に挿入した行を読み直して返す。
func (s *Service) recoverFromRace(ctx context.Context, externalUserID string) (*IssueResult, error) {
	winner, err := s.repo.FindByExternalUserID(ctx, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read coupon after conflict: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("coupon for external user %q not found after unique violation", externalUserID)
	}

	s.recorder.RecordCouponIssued(ResultRaceRecovered)
	s.logger.Info("concurrent coupon issuance resolved",
		slog.String("external_user_id", externalUserID),
		slog.String("code", winner.Code),
	)
	return &IssueResult{Coupon: winner, AlreadyExisted: true}, nil
}

func (s *Service) newCoupon(externalUserID string) *model.Coupon {
	return &model.Coupon{
		ID:             s.newID(s.now()),
		Code:           s.newCode(),
		DiscountType:   model.DiscountTypeCredits,
		DiscountValue:  decimal.Zero,
		AmountCNY:      s.cfg.Amount,
		MaxUses:        model.DefaultMaxUses,
		UsedCount:      0,
		IsActive:       true,
		ExternalUserID: externalUserID,
		Description:    s.cfg.Description,
	}
}
