package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/k-negishi/calendar-digest-notifier/internal/scheduler"
	"github.com/k-negishi/calendar-digest-notifier/internal/usecase"
)

// minCheckInterval 同じ時刻に再登録して空回りしないための下限
const minCheckInterval = time.Second

// TokenChecker 定期的なトークン確認（TokenManager が実装）
type TokenChecker interface {
	CheckAndRefresh(ctx context.Context) (time.Duration, error)
}

// DigestExecutor ダイジェスト送信（NotifyScheduleUseCase が実装）
type DigestExecutor interface {
	Execute(ctx context.Context, now time.Time) error
}

// TokenCheckJob トークンを確認し、次回の確認時刻で再登録する
// トークンがない、または更新に失敗した場合は致命的エラー
func TokenCheckJob(tokens TokenChecker) scheduler.JobFunc {
	return func(ctx context.Context, now time.Time) (time.Time, error) {
		delay, err := tokens.CheckAndRefresh(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", scheduler.ErrFatal, err)
		}
		if delay < minCheckInterval {
			delay = minCheckInterval
		}
		return now.Add(delay), nil
	}
}

// DigestJob ダイジェストを送信し、cron式に従って次回を登録する
// 送信の失敗は次回に持ち越すが、トークン更新の失敗は致命的エラー
func DigestJob(digest DigestExecutor, schedule *scheduler.CronSchedule) scheduler.JobFunc {
	return func(ctx context.Context, now time.Time) (time.Time, error) {
		next := schedule.Next(now)
		err := digest.Execute(ctx, now)
		if err != nil && errors.Is(err, usecase.ErrRefreshFailed) {
			return time.Time{}, fmt.Errorf("%w: %w", scheduler.ErrFatal, err)
		}
		return next, err
	}
}

// OneShotJob 一度だけダイジェストを送信する（テスト送信用）
func OneShotJob(digest DigestExecutor) scheduler.JobFunc {
	return func(ctx context.Context, now time.Time) (time.Time, error) {
		return time.Time{}, digest.Execute(ctx, now)
	}
}
