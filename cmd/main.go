package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k-negishi/calendar-digest-notifier/internal/app"
	"github.com/k-negishi/calendar-digest-notifier/internal/config"
	"github.com/k-negishi/calendar-digest-notifier/internal/logging"
	"github.com/k-negishi/calendar-digest-notifier/internal/scheduler"
)

type options struct {
	configPath string
	authorize  bool
	testPush   time.Duration
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML設定ファイルのパス")
	flag.BoolVar(&opts.authorize, "authorize", false, "認可フローを実行してトークンを保存し、終了する")
	flag.DurationVar(&opts.testPush, "test-push", 0, "起動後この時間が経過したらダイジェストを1回送信する（例: 30s）")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("シグナルを受信しました。終了します", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		slog.Error("異常終了しました", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return fmt.Errorf("設定読み込みエラー: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if opts.authorize {
		a, err := app.NewTokenOnly(ctx, cfg, app.NewHTTPClient(cfg), logger)
		if err != nil {
			return err
		}
		return app.Authorize(ctx, a.OAuth, a.Store, os.Stdin, os.Stdout)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("初期化エラー: %w", err)
	}

	// 起動時に有効なトークンがなければ続行しない
	if _, err := a.Tokens.GetValidToken(ctx); err != nil {
		return fmt.Errorf("有効なトークンがありません（-authorize で認可してください）: %w", err)
	}

	schedule, err := scheduler.ParseCron(cfg.DigestSchedule, cfg.Location())
	if err != nil {
		return err
	}

	now := time.Now()
	loop := scheduler.New(logging.Component(logger, "scheduler"))
	loop.Schedule("token-check", now, app.TokenCheckJob(a.Tokens))
	loop.Schedule("digest", schedule.Next(now), app.DigestJob(a.Digest, schedule))
	if opts.testPush > 0 {
		loop.Schedule("test-push", now.Add(opts.testPush), app.OneShotJob(a.Digest))
	}

	logger.Info("スケジューラを開始します",
		"provider", cfg.CalendarProvider,
		"notifier", cfg.Notifier,
		"schedule", schedule.String(),
		"timezone", cfg.Location().String(),
		"next_digest", schedule.Next(now).Format(time.RFC3339))

	if err := loop.Run(ctx); err != nil {
		if errors.Is(err, scheduler.ErrFatal) {
			return err
		}
		return fmt.Errorf("スケジューラが停止しました: %w", err)
	}
	return nil
}
