// Package account はプラットフォームアカウントと企業微信ユーザーの紐付け、
// およびサイドバー表示用のアカウント情報集計を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/metrics"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/model"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/repository"
)

// 紐付け結果のメトリクスラベル
const (
	BindResultBound     = "bound"
	BindResultUnchanged = "unchanged"
	BindResultConflict  = "conflict"
	BindResultNotFound  = "not_found"
)

// Recorder は紐付け結果を記録する。
type Recorder interface {
	RecordBind(result string)
}

// Service はアカウント紐付けを提供する。
type Service struct {
	accounts repository.AccountRepository
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(accounts repository.AccountRepository, logger *slog.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		accounts: accounts,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Bind はemailのアカウントに外部ユーザーIDを紐付け、紐付け後のアカウントを返す。
//
// アカウントが無い場合はerrcode 40004、別の外部ユーザーと紐付け済みの場合や
// 外部ユーザーIDが他のアカウントに紐付いている場合はerrcode 40005の*model.APIErrorを返す。
// 同じ組み合わせでの再紐付けは何も変更せずに成功する。
func (s *Service) Bind(ctx context.Context, externalUserID, email string) (*model.Account, error) {
	email = strings.TrimSpace(email)

	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		s.recorder.RecordBind(BindResultNotFound)
		return nil, model.NewAccountNotFoundError(email)
	}

	switch acct.ExternalUserID {
	case externalUserID:
		s.recorder.RecordBind(BindResultUnchanged)
		return acct, nil
	case "":
	default:
		s.recorder.RecordBind(BindResultConflict)
		s.logger.Warn("account already bound to another external user",
			slog.String("account_id", acct.ID),
			slog.String("external_user_id", externalUserID),
		)
		return nil, model.NewBindingConflictError()
	}

	boundAt := s.now().UTC()
	if err := s.accounts.BindExternalUser(ctx, acct.ID, externalUserID, boundAt); err != nil {
		if errors.Is(err, repository.ErrBindingConflict) {
			s.recorder.RecordBind(BindResultConflict)
			s.logger.Warn("binding conflict on update",
				slog.String("account_id", acct.ID),
				slog.String("external_user_id", externalUserID),
			)
			return nil, model.NewBindingConflictError()
		}
		return nil, fmt.Errorf("failed to bind account: %w", err)
	}

	acct.ExternalUserID = externalUserID
	acct.WecomBoundAt = &boundAt

	s.recorder.RecordBind(BindResultBound)
	s.logger.Info("account bound to external user",
		slog.String("account_id", acct.ID),
		slog.String("external_user_id", externalUserID),
	)
	return acct, nil
}
