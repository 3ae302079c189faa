package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/k-negishi/calendar-digest-notifier/internal/app"
	"github.com/k-negishi/calendar-digest-notifier/internal/config"
	"github.com/k-negishi/calendar-digest-notifier/internal/logging"
)

// LambdaEvent Lambda実行時のイベント構造体
type LambdaEvent struct {
	// EventBridge Schedulerからの実行なので特に使用しない
}

// LambdaResponse Lambda実行結果のレスポンス
type LambdaResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// handler ダイジェストを1回送信する
// トークンは Parameter Store に保存され、実行のたびに必要なら更新される
func handler(ctx context.Context, _ LambdaEvent) (LambdaResponse, error) {
	cfg, err := config.Load(ctx, os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("設定の読み込みに失敗しました", "err", err)
		return LambdaResponse{
			StatusCode: 500,
			Message:    "設定読み込みエラー",
		}, err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("初期化に失敗しました", "err", err)
		return LambdaResponse{
			StatusCode: 500,
			Message:    "初期化エラー",
		}, err
	}

	if err := a.Digest.Execute(ctx, time.Now()); err != nil {
		return LambdaResponse{
			StatusCode: 500,
			Message:    "ダイジェスト送信エラー",
		}, err
	}

	return LambdaResponse{
		StatusCode: 200,
		Message:    "通知送信完了",
	}, nil
}

func main() {
	lambda.Start(handler)
}
