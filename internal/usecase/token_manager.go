package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
	"github.com/k-negishi/calendar-digest-notifier/internal/logging"
)

// RefreshedCheckInterval 更新成功後、次のチェックまでの間隔
const RefreshedCheckInterval = 55 * time.Minute

// TokenStore トークンを永続化するポート
// 存在しない場合は nil, nil を返す
type TokenStore interface {
	Load(ctx context.Context) (*domain.TokenRecord, error)
	Save(ctx context.Context, record *domain.TokenRecord) error
}

// TokenRefresher リフレッシュトークンを新しいトークンに交換するポート
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenRecord, error)
}

// TokenManager トークンの読み込み・更新・保存を管理する
type TokenManager struct {
	store     TokenStore
	refresher TokenRefresher
	clock     func() time.Time
	logger    *slog.Logger
}

// NewTokenManager TokenManager を生成
func NewTokenManager(store TokenStore, refresher TokenRefresher, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		store:     store,
		refresher: refresher,
		clock:     time.Now,
		logger:    logging.Component(logger, "token"),
	}
}

// Load 保存済みトークンを読み込む。存在しない・壊れている場合は nil
func (m *TokenManager) Load(ctx context.Context) *domain.TokenRecord {
	record, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("トークンの読み込みに失敗しました", "err", err)
		return nil
	}
	if record == nil {
		return nil
	}
	if !record.Valid() {
		m.logger.Error("保存済みトークンの形式が不正です")
		return nil
	}
	return record
}

// Save トークンを保存する。失敗はログのみ
func (m *TokenManager) Save(ctx context.Context, record *domain.TokenRecord) {
	if err := m.store.Save(ctx, record); err != nil {
		m.logger.Error("トークンの保存に失敗しました", "err", err)
		return
	}
	m.logger.Info("トークンを保存しました")
}

// GetValidToken 有効なアクセストークンを返す。期限が近い場合は先に更新する
func (m *TokenManager) GetValidToken(ctx context.Context) (string, error) {
	record := m.Load(ctx)
	if record == nil {
		return "", ErrNoToken
	}

	if record.NeedsRefresh(m.clock()) {
		m.logger.Info("トークンの期限が近いため更新します")
		refreshed, err := m.refresh(ctx, record)
		if err != nil {
			return "", err
		}
		return refreshed.AccessToken, nil
	}

	return record.AccessToken, nil
}

// Refresh 保存済みのリフレッシュトークンで更新する
func (m *TokenManager) Refresh(ctx context.Context) error {
	record := m.Load(ctx)
	if record == nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNoToken)
	}
	_, err := m.refresh(ctx, record)
	return err
}

// CheckAndRefresh 期限を確認し、必要なら更新して次回チェックまでの時間を返す
func (m *TokenManager) CheckAndRefresh(ctx context.Context) (time.Duration, error) {
	record := m.Load(ctx)
	if record == nil {
		return 0, ErrNoToken
	}

	remaining := record.Remaining(m.clock())
	if remaining < domain.RefreshMargin {
		m.logger.Info("定期チェック: トークンの期限が近いため更新します", "remaining", remaining.Round(time.Second))
		if _, err := m.refresh(ctx, record); err != nil {
			return 0, err
		}
		return RefreshedCheckInterval, nil
	}

	next := remaining - domain.RefreshMargin
	m.logger.Info("定期チェック: トークンは有効です",
		"remaining", remaining.Round(time.Second),
		"next_check", next.Round(time.Second))
	return next, nil
}

func (m *TokenManager) refresh(ctx context.Context, current *domain.TokenRecord) (*domain.TokenRecord, error) {
	issued, err := m.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		m.logger.Error("トークンの更新に失敗しました", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if issued == nil || issued.AccessToken == "" {
		m.logger.Error("トークン更新のレスポンスにアクセストークンがありません")
		return nil, fmt.Errorf("%w: アクセストークンが空です", ErrRefreshFailed)
	}

	refreshToken := issued.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken
	}
	expiresIn := issued.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = domain.DefaultExpiresIn
	}

	record := domain.NewTokenRecord(issued.AccessToken, refreshToken, expiresIn, m.clock())
	m.Save(ctx, record)
	m.logger.Info("トークンを更新しました", "expires_in", expiresIn)
	return record, nil
}
