package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
	"github.com/k-negishi/calendar-digest-notifier/internal/logging"
)

// CalendarRepository カレンダーからイベントを取得するポート
// 返すイベントは window と重なるものに限る
type CalendarRepository interface {
	FetchEvents(ctx context.Context, accessToken string, window domain.Window) ([]domain.Event, error)
}

// Notifier 通知を送信するポート
type Notifier interface {
	Send(ctx context.Context, message string) error
	Style() domain.MessageStyle
}

// AccessTokenProvider アクセストークンを供給するポート（TokenManager が実装）
type AccessTokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// NotifyScheduleUseCase 予定通知ユースケース
type NotifyScheduleUseCase struct {
	tokens       AccessTokenProvider
	calendarRepo CalendarRepository
	notifier     Notifier
	location     *time.Location
	logger       *slog.Logger
}

// NewNotifyScheduleUseCase ユースケースを生成
func NewNotifyScheduleUseCase(tokens AccessTokenProvider, calendarRepo CalendarRepository, notifier Notifier, location *time.Location, logger *slog.Logger) *NotifyScheduleUseCase {
	return &NotifyScheduleUseCase{
		tokens:       tokens,
		calendarRepo: calendarRepo,
		notifier:     notifier,
		location:     location,
		logger:       logging.Component(logger, "digest"),
	}
}

// Execute 昨日から明後日までの予定を取得し、当日分のダイジェストを送信する
// 取得に失敗した場合は「予定なし」を送らずにエラーを返す
func (uc *NotifyScheduleUseCase) Execute(ctx context.Context, now time.Time) error {
	accessToken, err := uc.tokens.GetValidToken(ctx)
	if err != nil {
		uc.logger.Error("アクセストークンの取得に失敗しました", "err", err)
		return err
	}

	window := domain.FetchWindow(now, uc.location)
	uc.logger.Info("予定を取得します",
		"from", window.Start.Format("2006-01-02"),
		"to", window.End.Format("2006-01-02"))

	events, err := uc.calendarRepo.FetchEvents(ctx, accessToken, window)
	if err != nil {
		uc.logger.Error("予定の取得に失敗しました", "err", err)
		if errors.Is(err, ErrUnauthorized) {
			// 次回の実行で新しいトークンを使えるよう更新しておく
			if refreshErr := uc.tokens.Refresh(ctx); refreshErr != nil {
				return fmt.Errorf("%w: %w", err, refreshErr)
			}
		}
		return err
	}
	uc.logger.Info("予定を取得しました", "count", len(events))

	message := BuildDigest(events, now, uc.location, uc.notifier.Style())
	if err := uc.notifier.Send(ctx, message); err != nil {
		uc.logger.Error("通知の送信に失敗しました", "err", err)
		return err
	}

	uc.logger.Info("通知を送信しました")
	return nil
}
